package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"string-scout/internal/report"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	table   pgx.Identifier
	columns []string
	copied  [][]any
	execErr error
	copyErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.table = tableName
	f.columns = columnNames
	for rowSrc.Next() {
		vals, err := rowSrc.Values()
		if err != nil {
			return 0, err
		}
		f.copied = append(f.copied, vals)
	}
	return int64(len(f.copied)), rowSrc.Err()
}

func sampleRun() *report.Run {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &report.Run{
		ID:         "6f1c2a5e-0000-4000-8000-000000000001",
		Root:       "src",
		Suffix:     ".java",
		Encoding:   "UTF-8",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Files:      2,
	}
	r.Add(
		report.Match("src/A.java", 3, "Hello {0} World"),
		report.ReadError("src/C.java", errors.New("permission denied")),
	)
	return r
}

func TestFindingStore_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewFindingStore(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, len(schema))
	assert.Contains(t, db.execs[0].sql, "scan_runs")
	assert.Contains(t, db.execs[1].sql, "scan_findings")
}

func TestFindingStore_Publish(t *testing.T) {
	db := &fakeDB{}
	run := sampleRun()
	require.NoError(t, NewFindingStore(db).Publish(context.Background(), run))

	require.Len(t, db.execs, 1)
	assert.Equal(t, []any{run.ID, "src", ".java", "UTF-8", run.StartedAt, run.FinishedAt, 2, 1, 1}, db.execs[0].args)

	assert.Equal(t, pgx.Identifier{"scan_findings"}, db.table)
	assert.Equal(t, findingColumns, db.columns)
	require.Len(t, db.copied, 2)

	match := db.copied[0]
	assert.Equal(t, run.ID, match[0])
	assert.Equal(t, 1, match[1])
	assert.Equal(t, "match", match[2])
	assert.Equal(t, 3, match[4])
	assert.Equal(t, "Hello {0} World", match[5])
	assert.Nil(t, match[6])
	assert.Equal(t, []string{"{0}"}, match[7])
	assert.Len(t, match[8], 64)

	failed := db.copied[1]
	assert.Equal(t, 2, failed[1])
	assert.Equal(t, "error", failed[2])
	assert.Nil(t, failed[4])
	assert.Nil(t, failed[5])
	assert.Equal(t, "permission denied", failed[6])
}

func TestFindingStore_PublishEmptyRun(t *testing.T) {
	db := &fakeDB{}
	run := &report.Run{ID: "empty"}
	require.NoError(t, NewFindingStore(db).Publish(context.Background(), run))
	assert.Len(t, db.execs, 1)
	assert.Nil(t, db.copied)
}

func TestFindingStore_PublishErrors(t *testing.T) {
	err := NewFindingStore(&fakeDB{execErr: errors.New("down")}).Publish(context.Background(), sampleRun())
	assert.ErrorContains(t, err, "insert run")

	err = NewFindingStore(&fakeDB{copyErr: errors.New("copy failed")}).Publish(context.Background(), sampleRun())
	assert.ErrorContains(t, err, "copy findings")
}

func TestFindingHash(t *testing.T) {
	a := report.Match("A.java", 3, "Hello World")
	assert.Equal(t, FindingHash(a), FindingHash(report.Match("A.java", 3, "Hello World")))
	assert.NotEqual(t, FindingHash(a), FindingHash(report.Match("A.java", 4, "Hello World")))
	assert.NotEqual(t, FindingHash(a), FindingHash(report.ReadError("A.java", errors.New("x"))))
}
