package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"string-scout/internal/interpolation"
	"string-scout/internal/textutil"

	"github.com/gofrs/flock"
)

// Format selects the report serialization.
type Format string

const (
	// FormatText is "{file}:{line}:{text}" per match and
	// "Error reading {file}: {message}" per error.
	FormatText Format = "text"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. Empty selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatTSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, tsv or json)", s)
	}
}

// jsonEntry is the JSON shape of an Entry.
type jsonEntry struct {
	Kind         Kind     `json:"kind"`
	File         string   `json:"file"`
	Line         int      `json:"line,omitempty"`
	Text         string   `json:"text,omitempty"`
	Placeholders []string `json:"placeholders,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Render writes entries to w in the given format, in slice order.
func Render(w io.Writer, entries []Entry, format Format) error {
	switch format {
	case FormatText, "":
		return renderText(w, entries)
	case FormatTSV:
		return renderTSV(w, entries)
	case FormatJSON:
		return renderJSON(w, entries)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func renderText(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := io.WriteString(w, e.String()+"\n"); err != nil {
			return fmt.Errorf("write report line: %w", err)
		}
	}
	return nil
}

func renderTSV(w io.Writer, entries []Entry) error {
	if _, err := fmt.Fprintln(w, "kind\tfile\tline\ttext\tplaceholders"); err != nil {
		return fmt.Errorf("write TSV header: %w", err)
	}
	for _, e := range entries {
		var line, text, placeholders string
		if e.Kind == KindError {
			text = e.Message
		} else {
			line = strconv.Itoa(e.Line)
			text = e.Text
			placeholders = strings.Join(interpolation.Find(e.Text), " ")
		}
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Kind,
			textutil.EscapeTSV(e.File),
			line,
			textutil.EscapeTSV(text),
			textutil.EscapeTSV(placeholders),
		)
		if err != nil {
			return fmt.Errorf("write TSV row: %w", err)
		}
	}
	return nil
}

func renderJSON(w io.Writer, entries []Entry) error {
	out := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		je := jsonEntry{Kind: e.Kind, File: e.File}
		if e.Kind == KindError {
			je.Message = e.Message
		} else {
			je.Line = e.Line
			je.Text = e.Text
			je.Placeholders = interpolation.Find(e.Text)
		}
		out = append(out, je)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// WriteFile truncates (or creates) path and writes the report to it. An
// advisory lock on path+".lock" is held for the duration of the write.
func WriteFile(path string, entries []Entry, format Format) (err error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock report %s: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Render(bw, entries, format); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush report file: %w", err)
	}
	return nil
}
