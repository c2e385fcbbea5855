package cli

import (
	"fmt"
	"io"
	"time"

	"string-scout/internal/report"

	"github.com/fatih/color"
)

// printSummary writes a one-line run summary. Color is applied only when
// colorOutput is set.
func printSummary(w io.Writer, run *report.Run, outPath string, colorOutput bool) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	for _, c := range []*color.Color{bold, green, yellow, cyan} {
		if colorOutput {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	errs := fmt.Sprintf("%d unreadable", run.Errors())
	if run.Errors() > 0 {
		errs = yellow.Sprint(errs)
	}

	fmt.Fprintf(w, "%s %d files, %s, %s -> %s (%s)\n",
		bold.Sprint("scan:"),
		run.Files,
		green.Sprintf("%d strings", run.Matches()),
		errs,
		cyan.Sprint(outPath),
		run.Duration().Round(time.Millisecond),
	)
}
