package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"string-scout/internal/archive"
	"string-scout/internal/config"
	"string-scout/internal/filewalker"
	"string-scout/internal/graph"
	"string-scout/internal/parser"
	"string-scout/internal/report"
	"string-scout/internal/scan"
	"string-scout/internal/store"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a source tree and write the string report",
		Long: `Walks root recursively, reads every file with the configured suffix and
records each string literal that reads like user-facing text as
file:line:text. Files that cannot be read are reported in place and the
scan continues.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := setupContext(cmd.Context())
			defer cancel()
			return runScan(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().String("out", "strings_report.txt", "Report output path")
	cmd.Flags().String("suffix", filewalker.DefaultSuffix, "File name suffix to scan")
	cmd.Flags().String("encoding", parser.DefaultEncoding, "Source file encoding")
	cmd.Flags().String("format", string(report.FormatText), "Report format: text, tsv or json")
	cmd.Flags().Int("workers", 1, "Number of files read concurrently")
	cmd.Flags().StringArray("ignore-dir", nil, "Directory name to skip (repeatable)")
	cmd.Flags().StringArray("publish", nil, "Publish target: postgres, neo4j or s3 (repeatable)")
	cmd.Flags().String("config", "", "YAML config file")

	return cmd
}

// resolveConfig layers environment, the optional YAML file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	flags := cmd.Flags()

	// The level is applied before Load, which logs.
	level := os.Getenv("LOG_LEVEL")
	if flags.Changed("log-level") {
		level, _ = flags.GetString("log-level")
	}
	if err := setupLogging(level); err != nil {
		return nil, err
	}

	cfg := config.Load()

	if path, _ := flags.GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if flags.Changed("out") {
		cfg.OutputPath, _ = flags.GetString("out")
	}
	if flags.Changed("suffix") {
		cfg.Suffix, _ = flags.GetString("suffix")
	}
	if flags.Changed("encoding") {
		cfg.Encoding, _ = flags.GetString("encoding")
	}
	if flags.Changed("format") {
		cfg.OutputFormat, _ = flags.GetString("format")
	}
	if flags.Changed("workers") {
		cfg.WorkerCount, _ = flags.GetInt("workers")
	}
	if flags.Changed("ignore-dir") {
		cfg.IgnoreDirs, _ = flags.GetStringArray("ignore-dir")
	}
	if flags.Changed("publish") {
		cfg.Publish, _ = flags.GetStringArray("publish")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if len(args) == 1 {
		cfg.Root = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runScan(ctx context.Context, cfg *config.Config, summary io.Writer) error {
	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}

	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}
	p, err := parser.NewSourceParser(cfg.Suffix, cfg.Encoding)
	if err != nil {
		return err
	}
	w := filewalker.NewWalker(cfg.Suffix, filewalker.WithIgnoreDirs(cfg.IgnoreDirs...))
	scanner := scan.New(w, p, scan.WithWorkers(cfg.WorkerCount))

	run, err := scanner.Run(ctx, cfg.Root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", cfg.Root, err)
	}

	if err := report.WriteFile(cfg.OutputPath, run.Entries, format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().
		Str("output", cfg.OutputPath).
		Str("format", string(format)).
		Int("entries", len(run.Entries)).
		Msg("Report written")
	printSummary(summary, run, cfg.OutputPath, isTerminal(summary))

	if len(cfg.Publish) == 0 {
		return nil
	}
	publishers, closeAll, err := openPublishers(ctx, cfg, format)
	defer closeAll()
	if err != nil {
		return err
	}
	return scan.PublishAll(ctx, run, publishers...)
}

// openPublishers connects every requested target, once each, in the order
// postgres, neo4j, s3. Targets are validated beforehand by config.Validate.
// The returned close func is always safe to call, including after an error.
func openPublishers(ctx context.Context, cfg *config.Config, format report.Format) ([]scan.Publisher, func(), error) {
	var (
		publishers []scan.Publisher
		closers    []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Publishes(config.PublishPostgres) {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, pool.Close)
		fs := store.NewFindingStore(pool)
		if err := fs.EnsureSchema(ctx); err != nil {
			return nil, closeAll, err
		}
		publishers = append(publishers, fs)
	}

	if cfg.Publishes(config.PublishNeo4j) {
		driver, err := graph.Connect(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { driver.Close(context.Background()) })
		gp := graph.NewPublisher(driver)
		if err := gp.EnsureSchema(ctx); err != nil {
			return nil, closeAll, err
		}
		publishers = append(publishers, gp)
	}

	if cfg.Publishes(config.PublishS3) {
		a, err := archive.NewS3Archive(archive.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
			Format:    format,
		})
		if err != nil {
			return nil, closeAll, err
		}
		publishers = append(publishers, a)
	}
	return publishers, closeAll, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
