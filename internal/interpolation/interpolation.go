package interpolation

import (
	"cmp"
	"regexp"
	"slices"
)

// span stores a detected placeholder position.
type span struct {
	start, end int
	value      string
}

// patterns to detect interpolation placeholders inside source literals.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\{[a-zA-Z_][a-zA-Z0-9_.]*\}`),                   // ${value}
	regexp.MustCompile(`\{[0-9]*\}`),                                      // {0}, {} (MessageFormat, SLF4J)
	regexp.MustCompile(`%[-#+0,(]*[0-9]*(?:\.[0-9]+)?[bhscdoxXeEfgGaAn]`), // %d, %s, %.2f
	regexp.MustCompile(`%%`),                                              // escaped percent literal
}

// Find returns the interpolation placeholders found in text, in position
// order. When two patterns overlap, the one starting first (then the longer
// one) wins.
func Find(text string) []string {
	var all []span
	for _, p := range patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			all = append(all, span{start: loc[0], end: loc[1], value: text[loc[0]:loc[1]]})
		}
	}
	if len(all) == 0 {
		return nil
	}

	slices.SortStableFunc(all, func(a, b span) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(b.end-b.start, a.end-a.start)
	})

	var found []string
	lastEnd := -1
	for _, s := range all {
		if s.start >= lastEnd {
			found = append(found, s.value)
			lastEnd = s.end
		}
	}
	return found
}

// Count is a convenience for len(Find(text)).
func Count(text string) int {
	return len(Find(text))
}
