package store

import (
	"context"
	"fmt"
	"strconv"

	"string-scout/internal/interpolation"
	"string-scout/internal/report"
	"string-scout/internal/textutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scan_runs (
		id          UUID PRIMARY KEY,
		root        TEXT NOT NULL,
		suffix      TEXT NOT NULL,
		encoding    TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		files       INTEGER NOT NULL,
		matches     INTEGER NOT NULL,
		errors      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scan_findings (
		run_id       UUID NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		kind         TEXT NOT NULL,
		file         TEXT NOT NULL,
		line         INTEGER,
		text         TEXT,
		message      TEXT,
		placeholders TEXT[],
		finding_hash TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS scan_findings_hash_idx ON scan_findings (finding_hash)`,
}

const insertRun = `INSERT INTO scan_runs
	(id, root, suffix, encoding, started_at, finished_at, files, matches, errors)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

var findingColumns = []string{"run_id", "seq", "kind", "file", "line", "text", "message", "placeholders", "finding_hash"}

// FindingStore persists scan runs and their entries in PostgreSQL.
type FindingStore struct {
	db DB
}

// NewFindingStore creates a store on top of a pool (or any DB).
func NewFindingStore(db DB) *FindingStore {
	return &FindingStore{db: db}
}

// Connect opens and pings a PostgreSQL pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

func (s *FindingStore) Name() string { return "postgres" }

// EnsureSchema creates the tables if they do not exist.
func (s *FindingStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure findings schema: %w", err)
		}
	}
	return nil
}

// Publish stores the run row, then bulk-copies its entries.
func (s *FindingStore) Publish(ctx context.Context, run *report.Run) error {
	_, err := s.db.Exec(ctx, insertRun,
		run.ID, run.Root, run.Suffix, run.Encoding,
		run.StartedAt, run.FinishedAt,
		run.Files, run.Matches(), run.Errors(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	rows := findingRows(run)
	if len(rows) == 0 {
		return nil
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"scan_findings"}, findingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy findings for run %s: %w", run.ID, err)
	}

	log.Info().Str("run", run.ID).Int64("rows", n).Msg("Stored findings")
	return nil
}

// findingRows converts entries into COPY rows, in report order.
func findingRows(run *report.Run) [][]any {
	rows := make([][]any, 0, len(run.Entries))
	for i, e := range run.Entries {
		var line, text, message any
		var placeholders []string
		if e.Kind == report.KindError {
			message = e.Message
		} else {
			line = e.Line
			text = e.Text
			placeholders = interpolation.Find(e.Text)
		}
		rows = append(rows, []any{
			run.ID,
			i + 1,
			string(e.Kind),
			e.File,
			line,
			text,
			message,
			placeholders,
			FindingHash(e),
		})
	}
	return rows
}

// FindingHash identifies an entry independently of the run, so the same
// literal at the same location can be tracked across runs.
func FindingHash(e report.Entry) string {
	if e.Kind == report.KindError {
		return textutil.Hash(string(e.Kind), e.File)
	}
	return textutil.Hash(string(e.Kind), e.File, strconv.Itoa(e.Line), e.Text)
}
