// Package scan drives a walk over a source tree, scans each candidate file
// for human-readable literals and accumulates the report entries in
// discovery order.
package scan

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"time"

	"string-scout/internal/parser"
	"string-scout/internal/report"
	"string-scout/internal/textutil"
	"string-scout/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Source yields candidate files under a root.
type Source interface {
	Files(root string) iter.Seq[string]
	Suffix() string
}

// Scanner combines a file source with a parser.
type Scanner struct {
	source  Source
	parser  parser.Parser
	workers int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets how many files are parsed concurrently. With more than one
// worker the candidate list is collected up front; output order is unchanged.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Scanner. It scans one file at a time unless WithWorkers says
// otherwise.
func New(source Source, p parser.Parser, opts ...Option) *Scanner {
	s := &Scanner{
		source:  source,
		parser:  p,
		workers: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans root and returns the finished run. Unreadable files become error
// entries; only context cancellation aborts the run.
func (s *Scanner) Run(ctx context.Context, root string) (*report.Run, error) {
	run := &report.Run{
		ID:        uuid.NewString(),
		Root:      root,
		Suffix:    s.source.Suffix(),
		StartedAt: time.Now(),
	}
	if enc, ok := s.parser.(interface{ Encoding() string }); ok {
		run.Encoding = enc.Encoding()
	}

	log.Info().
		Str("run", run.ID).
		Str("root", root).
		Str("suffix", run.Suffix).
		Int("workers", s.workers).
		Msg("Starting scan")

	var err error
	if s.workers > 1 {
		err = s.runParallel(ctx, root, run)
	} else {
		err = s.runSequential(ctx, root, run)
	}
	if err != nil {
		return nil, err
	}

	run.FinishedAt = time.Now()
	log.Info().
		Str("run", run.ID).
		Int("files", run.Files).
		Int("matches", run.Matches()).
		Int("errors", run.Errors()).
		Dur("elapsed", run.Duration()).
		Msg("Scan complete")

	return run, nil
}

func (s *Scanner) runSequential(ctx context.Context, root string, run *report.Run) error {
	for path := range s.candidates(root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		run.Files++
		run.Add(ScanFile(s.parser, path)...)
	}
	return ctx.Err()
}

func (s *Scanner) runParallel(ctx context.Context, root string, run *report.Run) error {
	files := slices.Collect(s.candidates(root))

	pool := worker.NewPool[string, []report.Entry](s.workers, func(ctx context.Context, path string) ([]report.Entry, error) {
		return ScanFile(s.parser, path), nil
	})
	log.Debug().Int("count", len(files)).Int("workers", pool.Workers()).Msg("Scanning files in parallel")
	results := pool.Execute(ctx, files)
	for _, r := range results {
		if !r.Done {
			return cmp.Or(ctx.Err(), context.Canceled)
		}
	}

	for _, r := range results {
		run.Files++
		run.Add(r.Result...)
	}
	return nil
}

// candidates filters the source's files down to those the parser accepts.
func (s *Scanner) candidates(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for path := range s.source.Files(root) {
			if !s.parser.CanParse(path) {
				log.Debug().Str("file", path).Msg("Skipping file the parser does not accept")
				continue
			}
			if !yield(path) {
				return
			}
		}
	}
}

// ScanFile parses one file and converts the outcome to report entries: one
// entry per literal in line order, or a single error entry if the file could
// not be read.
func ScanFile(p parser.Parser, path string) []report.Entry {
	result, err := p.Parse(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Failed to read file")
		return []report.Entry{report.ReadError(path, err)}
	}

	entries := make([]report.Entry, 0, len(result.Texts))
	for _, et := range result.Texts {
		entries = append(entries, report.Match(path, et.Line, et.Text))
		log.Trace().Str("file", path).Int("line", et.Line).Str("text", textutil.Truncate(et.Text, 40)).Msg("Literal found")
	}
	log.Debug().Str("file", path).Int("lines", result.Lines).Int("matches", len(entries)).Msg("File scanned")
	return entries
}
