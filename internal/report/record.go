package report

import (
	"fmt"
	"time"
)

// Kind distinguishes report entries.
type Kind string

const (
	KindMatch Kind = "match"
	KindError Kind = "error"
)

// Entry is one line of the report: either a matched literal or a file that
// could not be read.
type Entry struct {
	Kind Kind
	// File is the path as produced by the walker.
	File string
	// Line is the 1-based line number (matches only).
	Line int
	// Text is the literal content (matches only).
	Text string
	// Message is the read error description (errors only).
	Message string
}

// Match creates a match entry.
func Match(file string, line int, text string) Entry {
	return Entry{Kind: KindMatch, File: file, Line: line, Text: text}
}

// ReadError creates an error entry for a file that could not be scanned.
func ReadError(file string, err error) Entry {
	return Entry{Kind: KindError, File: file, Message: err.Error()}
}

// String renders the entry in the plain text report format. Colons inside
// the path or text are not escaped.
func (e Entry) String() string {
	if e.Kind == KindError {
		return fmt.Sprintf("Error reading %s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d:%s", e.File, e.Line, e.Text)
}

// Run is the outcome of one scan: its entries in discovery order plus
// bookkeeping used by the summary and publishers.
type Run struct {
	ID         string
	Root       string
	Suffix     string
	Encoding   string
	StartedAt  time.Time
	FinishedAt time.Time
	// Files is the number of candidate files visited.
	Files   int
	Entries []Entry
}

// Add appends entries, keeping insertion order.
func (r *Run) Add(entries ...Entry) {
	r.Entries = append(r.Entries, entries...)
}

// Matches counts match entries.
func (r *Run) Matches() int { return r.count(KindMatch) }

// Errors counts error entries.
func (r *Run) Errors() int { return r.count(KindError) }

// Duration is the wall time of the scan.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Run) count(k Kind) int {
	n := 0
	for _, e := range r.Entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}
