package parser

import (
	"regexp"
	"unicode/utf8"
)

// ws is the whitespace class used between words. It is wider than RE2's \s
// and also covers \v, the ASCII separators and Unicode spaces.
const ws = `[\t\n\v\f\r \x{1c}-\x{1f}\x{85}\p{Z}]`

// literalPattern matches a double-quoted literal that starts with an uppercase
// letter and contains at least two whitespace-separated words. Group 1 is the
// literal content.
var literalPattern = regexp.MustCompile(`"([A-Z][A-Za-z0-9]*(?:` + ws + `+[A-Za-z0-9]+)+[^"]*)"`)

// bareTokenPattern matches identifier-like values such as file names or keys.
var bareTokenPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// minTextLength is exclusive: a literal must be longer than this.
const minTextLength = 4

// ExtractLine applies the capture pattern to a single line and returns every
// captured literal that also passes IsCandidate, in match order.
func ExtractLine(line string) []string {
	matches := literalPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}

	var texts []string
	for _, m := range matches {
		if IsCandidate(m[1]) {
			texts = append(texts, m[1])
		}
	}
	return texts
}

// IsCandidate reports whether a captured literal should be reported: it must
// be longer than four characters and must not be a bare token.
func IsCandidate(text string) bool {
	if utf8.RuneCountInString(text) <= minTextLength {
		return false
	}
	return !IsBareToken(text)
}

// IsBareToken reports whether s consists only of letters, digits, dots,
// underscores and hyphens.
func IsBareToken(s string) bool {
	return bareTokenPattern.MatchString(s)
}
