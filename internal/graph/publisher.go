package graph

import (
	"context"
	"fmt"
	"time"

	"string-scout/internal/interpolation"
	"string-scout/internal/report"
	"string-scout/internal/worker"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

const defaultBatchSize = 500

// Runner executes one write statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// sessionRunner opens a short-lived write session per statement.
type sessionRunner struct {
	driver neo4j.DriverWithContext
}

func (r sessionRunner) Run(ctx context.Context, cypher string, params map[string]any) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// Connect creates a driver and verifies the server is reachable.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("connect Neo4j: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")
	return driver, nil
}

// Publisher writes scan results as a graph of source files and the literals
// they contain:
//
//	(:ScanRun)-[:SCANNED]->(:SourceFile)-[:CONTAINS {line}]->(:Literal)
type Publisher struct {
	runner    Runner
	batchSize int
}

// NewPublisher creates a publisher backed by a Neo4j driver.
func NewPublisher(driver neo4j.DriverWithContext) *Publisher {
	return NewPublisherWithRunner(sessionRunner{driver: driver})
}

// NewPublisherWithRunner creates a publisher on top of any Runner.
func NewPublisherWithRunner(r Runner) *Publisher {
	return &Publisher{runner: r, batchSize: defaultBatchSize}
}

func (p *Publisher) Name() string { return "neo4j" }

// EnsureSchema creates uniqueness constraints.
func (p *Publisher) EnsureSchema(ctx context.Context) error {
	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (r:ScanRun) REQUIRE r.id IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (f:SourceFile) REQUIRE f.path IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (l:Literal) REQUIRE l.text IS UNIQUE",
	}
	for _, c := range constraints {
		if err := p.runner.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	log.Info().Msg("Graph schema ensured")
	return nil
}

func (p *Publisher) Publish(ctx context.Context, run *report.Run) error {
	err := p.runner.Run(ctx, `
		MERGE (r:ScanRun {id: $id})
		SET r.root = $root,
		    r.suffix = $suffix,
		    r.started_at = $started_at,
		    r.files = $files,
		    r.matches = $matches,
		    r.errors = $errors
	`, map[string]any{
		"id":         run.ID,
		"root":       run.Root,
		"suffix":     run.Suffix,
		"started_at": run.StartedAt.UTC().Format(time.RFC3339),
		"files":      run.Files,
		"matches":    run.Matches(),
		"errors":     run.Errors(),
	})
	if err != nil {
		return fmt.Errorf("upsert run node: %w", err)
	}

	matches, failures := splitRows(run.Entries)

	for _, batch := range worker.Batch(matches, p.batchSize) {
		err := p.runner.Run(ctx, `
			UNWIND $rows AS row
			MATCH (r:ScanRun {id: $run_id})
			MERGE (f:SourceFile {path: row.file})
			MERGE (l:Literal {text: row.text})
			MERGE (r)-[:SCANNED]->(f)
			MERGE (f)-[c:CONTAINS {line: row.line}]->(l)
			SET c.run_id = $run_id,
			    l.placeholders = row.placeholders
			REMOVE f.error
		`, map[string]any{"run_id": run.ID, "rows": batch})
		if err != nil {
			return fmt.Errorf("upsert literals: %w", err)
		}
	}

	for _, batch := range worker.Batch(failures, p.batchSize) {
		err := p.runner.Run(ctx, `
			UNWIND $rows AS row
			MATCH (r:ScanRun {id: $run_id})
			MERGE (f:SourceFile {path: row.file})
			MERGE (r)-[:SCANNED]->(f)
			SET f.error = row.message
		`, map[string]any{"run_id": run.ID, "rows": batch})
		if err != nil {
			return fmt.Errorf("mark unreadable files: %w", err)
		}
	}

	log.Info().
		Str("run", run.ID).
		Int("literals", len(matches)).
		Int("unreadable", len(failures)).
		Msg("Published literal graph")
	return nil
}

// splitRows builds UNWIND rows; the driver packs []any of maps natively.
func splitRows(entries []report.Entry) (matches, failures []any) {
	for _, e := range entries {
		if e.Kind == report.KindError {
			failures = append(failures, map[string]any{"file": e.File, "message": e.Message})
			continue
		}
		matches = append(matches, map[string]any{
			"file":         e.File,
			"line":         e.Line,
			"text":         e.Text,
			"placeholders": interpolation.Count(e.Text),
		})
	}
	return matches, failures
}
