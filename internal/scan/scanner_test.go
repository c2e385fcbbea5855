package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"string-scout/internal/filewalker"
	"string-scout/internal/parser"
	"string-scout/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel string, lines ...string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func newScanner(t *testing.T, opts ...Option) *Scanner {
	t.Helper()
	p, err := parser.NewSourceParser(".java", "")
	require.NoError(t, err)
	return New(filewalker.NewWalker(".java"), p, opts...)
}

func render(t *testing.T, run *report.Run) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, report.Render(&sb, run.Entries, report.FormatText))
	return sb.String()
}

// fixture lays out a small tree and returns its root.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write(t, root, "A.java",
		"package demo;",
		"class A {",
		`  String msg = "Hello World";`,
		"",
		`  String id = "OK";`,
		"}",
	)
	write(t, root, "B.java", `String s = "example.txt";`)
	write(t, root, "notes.txt", `"Not a Java file at all"`)
	write(t, root, "sub/D.java",
		`log("Sensor started", "Waiting for data");`,
		`throw new Exception("Connection lost: retrying");`,
	)
	write(t, root, "sub/deeper/E.java", `label("Save changes?");`)
	return root
}

func TestScanner_Run(t *testing.T) {
	root := fixture(t)
	run, err := newScanner(t).Run(context.Background(), root)
	require.NoError(t, err)

	a := filepath.Join(root, "A.java")
	d := filepath.Join(root, "sub", "D.java")
	e := filepath.Join(root, "sub", "deeper", "E.java")
	want := a + ":3:Hello World\n" +
		d + ":1:Sensor started\n" +
		d + ":1:Waiting for data\n" +
		d + ":2:Connection lost: retrying\n" +
		e + ":1:Save changes?\n"
	assert.Equal(t, want, render(t, run))

	assert.Equal(t, 4, run.Files)
	assert.Equal(t, 5, run.Matches())
	assert.Zero(t, run.Errors())
	assert.Equal(t, ".java", run.Suffix)
	assert.Equal(t, "UTF-8", run.Encoding)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestScanner_ShortAndLowercaseLiteralsExcluded(t *testing.T) {
	run, err := newScanner(t).Run(context.Background(), fixture(t))
	require.NoError(t, err)

	out := render(t, run)
	assert.NotContains(t, out, "OK")
	assert.NotContains(t, out, "example.txt")
	assert.NotContains(t, out, "B.java")
	assert.NotContains(t, out, "notes.txt")
}

func TestScanner_UnreadableFileIsIsolated(t *testing.T) {
	root := t.TempDir()
	write(t, root, "A.java", `String msg = "Hello World";`)
	c := filepath.Join(root, "C.java")
	require.NoError(t, os.Symlink(filepath.Join(root, "missing-target"), c))
	write(t, root, "D.java", `String msg = "Goodbye World";`)

	run, err := newScanner(t).Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, run.Entries, 3)
	assert.Equal(t, report.Match(filepath.Join(root, "A.java"), 1, "Hello World"), run.Entries[0])
	assert.Equal(t, report.KindError, run.Entries[1].Kind)
	assert.Equal(t, c, run.Entries[1].File)
	assert.True(t, strings.HasPrefix(run.Entries[1].String(), "Error reading "+c+": "))
	assert.Equal(t, report.Match(filepath.Join(root, "D.java"), 1, "Goodbye World"), run.Entries[2])
	assert.Equal(t, 1, run.Errors())
}

func TestScanner_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files regardless of mode")
	}
	root := t.TempDir()
	c := write(t, root, "C.java", `String msg = "Hello World";`)
	require.NoError(t, os.Chmod(c, 0o000))
	t.Cleanup(func() { os.Chmod(c, 0o644) })
	write(t, root, "D.java", `String msg = "Goodbye World";`)

	run, err := newScanner(t).Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, run.Entries, 2)
	assert.Equal(t, report.KindError, run.Entries[0].Kind)
	assert.Contains(t, run.Entries[0].Message, "permission denied")
	assert.Equal(t, "Goodbye World", run.Entries[1].Text)
}

func TestScanner_DecodeErrorDropsPartialMatches(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "Bad.java")
	require.NoError(t, os.WriteFile(bad, []byte("String a = \"Hello World\";\nString b = \"Caf\xe9 au lait\";\n"), 0o644))
	write(t, root, "Good.java", `String msg = "Still scanned here";`)

	run, err := newScanner(t).Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, run.Entries, 2)
	assert.Equal(t, report.KindError, run.Entries[0].Kind)
	assert.Equal(t, bad, run.Entries[0].File)
	assert.Contains(t, run.Entries[0].Message, "decode error")
	assert.Equal(t, "Still scanned here", run.Entries[1].Text)
}

func TestScanner_MissingRootIsEmpty(t *testing.T) {
	run, err := newScanner(t).Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, run.Entries)
	assert.Zero(t, run.Files)
}

func TestScanner_OrderIsWalkThenLine(t *testing.T) {
	root := t.TempDir()
	write(t, root, "Z.java", `a("Zeta line one");`, `b("Zeta line two");`)
	write(t, root, "a/A.java", `a("Alpha line one");`)
	write(t, root, "M.java", `a("Mu first here");`, `x = 1;`, `b("Mu third here");`)

	run, err := newScanner(t).Run(context.Background(), root)
	require.NoError(t, err)

	var got []string
	for _, e := range run.Entries {
		rel, err := filepath.Rel(root, e.File)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel)+":"+e.Text)
	}
	assert.Equal(t, []string{
		"M.java:Mu first here",
		"M.java:Mu third here",
		"Z.java:Zeta line one",
		"Z.java:Zeta line two",
		"a/A.java:Alpha line one",
	}, got)
}

func TestScanner_ReportListsFilesBeforeEarlierSortedSubdirectory(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a/X.java", `a("Nested file text");`)
	write(t, root, "b.java", `b("Top level text");`)
	t.Chdir(root)

	sep := string(filepath.Separator)
	want := "." + sep + "b.java:1:Top level text\n" +
		"." + sep + "a" + sep + "X.java:1:Nested file text\n"

	for _, workers := range []int{1, 4} {
		run, err := newScanner(t, WithWorkers(workers)).Run(context.Background(), ".")
		require.NoError(t, err)
		assert.Equal(t, want, render(t, run), "workers=%d", workers)
	}
}

func TestScanner_ParallelMatchesSequential(t *testing.T) {
	root := fixture(t)
	for i := 0; i < 20; i++ {
		write(t, root, filepath.Join("gen", string(rune('a'+i))+".java"),
			`log("Generated message one");`,
			`log("Generated message two");`,
		)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "gen", "Broken.java")))

	seq, err := newScanner(t).Run(context.Background(), root)
	require.NoError(t, err)
	par, err := newScanner(t, WithWorkers(4)).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, seq.Entries, par.Entries)
	assert.Equal(t, seq.Files, par.Files)
}

func TestScanner_IdempotentReport(t *testing.T) {
	root := fixture(t)
	out := t.TempDir()
	first := filepath.Join(out, "first.txt")
	second := filepath.Join(out, "second.txt")

	for _, dst := range []string{first, second} {
		run, err := newScanner(t).Run(context.Background(), root)
		require.NoError(t, err)
		require.NoError(t, report.WriteFile(dst, run.Entries, report.FormatText))
	}

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestScanner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(t).Run(ctx, fixture(t))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = newScanner(t, WithWorkers(3)).Run(ctx, fixture(t))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakePublisher struct {
	name string
	err  error
	got  []*report.Run
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(ctx context.Context, run *report.Run) error {
	f.got = append(f.got, run)
	return f.err
}

func TestPublishAll(t *testing.T) {
	run := &report.Run{ID: "run-1"}
	ok := &fakePublisher{name: "ok"}
	bad := &fakePublisher{name: "bad", err: errors.New("unreachable")}
	last := &fakePublisher{name: "last"}

	err := PublishAll(context.Background(), run, ok, bad, last)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish bad: unreachable")
	assert.Len(t, ok.got, 1)
	assert.Len(t, last.got, 1)

	assert.NoError(t, PublishAll(context.Background(), run))
}
