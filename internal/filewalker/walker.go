package filewalker

import (
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultSuffix selects Java sources.
const DefaultSuffix = ".java"

// Walker traverses directories and yields files whose name ends with a suffix.
type Walker struct {
	suffix     string
	ignoreDirs map[string]bool
}

// Option configures a Walker.
type Option func(*Walker)

// WithIgnoreDirs skips any directory whose base name is listed.
func WithIgnoreDirs(names ...string) Option {
	return func(w *Walker) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				w.ignoreDirs[n] = true
			}
		}
	}
}

// NewWalker creates a Walker for the given file name suffix.
func NewWalker(suffix string, opts ...Option) *Walker {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	w := &Walker{
		suffix:     suffix,
		ignoreDirs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Suffix returns the file name suffix the walker filters on.
func (w *Walker) Suffix() string { return w.suffix }

// Files returns a lazy sequence of candidate files under root. Each directory
// yields its own files first, in name order, then descends into its
// subdirectories in name order. A missing or non-directory root yields
// nothing.
func (w *Walker) Files(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		info, err := os.Stat(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("Scan root not accessible")
			return
		}
		if !info.IsDir() {
			log.Warn().Str("root", root).Msg("Scan root is not a directory")
			return
		}
		w.walkDir(root, yield)
	}
}

// walkDir returns false when the consumer stopped the iteration.
func (w *Walker) walkDir(dir string, yield func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Error walking path")
		if len(entries) == 0 {
			return true
		}
	}

	var subdirs []string
	for _, e := range entries {
		path := joinPath(dir, e.Name())

		if e.IsDir() {
			if !w.ignoreDirs[e.Name()] {
				subdirs = append(subdirs, path)
			}
			continue
		}
		// Symlinked directories are neither descended nor reported.
		if e.Type()&os.ModeSymlink != 0 {
			if fi, err := os.Stat(path); err == nil && fi.IsDir() {
				continue
			}
		}

		if !strings.HasSuffix(e.Name(), w.suffix) {
			continue
		}
		if !yield(path) {
			return false
		}
	}

	for _, sub := range subdirs {
		if !w.walkDir(sub, yield) {
			return false
		}
	}
	return true
}

// joinPath appends name to dir without cleaning dir, so paths keep the root
// exactly as it was given ("./src/" yields "./src/A.java").
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) || strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + string(filepath.Separator) + name
}
