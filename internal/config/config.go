package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"string-scout/internal/filewalker"
	"string-scout/internal/parser"
	"string-scout/internal/report"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Publish targets.
const (
	PublishPostgres = "postgres"
	PublishNeo4j    = "neo4j"
	PublishS3       = "s3"
)

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Config struct {
	Root         string      `yaml:"root"`
	Suffix       string      `yaml:"suffix"`
	Encoding     string      `yaml:"encoding"`
	OutputPath   string      `yaml:"output"`
	OutputFormat string      `yaml:"format"`
	WorkerCount  int         `yaml:"workers"`
	IgnoreDirs   []string    `yaml:"ignore_dirs"`
	LogLevel     string      `yaml:"log_level"`
	Publish      []string    `yaml:"publish"`
	DatabaseURL  string      `yaml:"database_url"`
	Neo4j        Neo4jConfig `yaml:"neo4j"`
	S3           S3Config    `yaml:"s3"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		Root:         getEnv("SCAN_ROOT", "."),
		Suffix:       getEnv("SCAN_SUFFIX", filewalker.DefaultSuffix),
		Encoding:     getEnv("SCAN_ENCODING", parser.DefaultEncoding),
		OutputPath:   getEnv("OUTPUT_PATH", "strings_report.txt"),
		OutputFormat: getEnv("OUTPUT_FORMAT", string(report.FormatText)),
		WorkerCount:  getEnvInt("WORKER_COUNT", 1),
		IgnoreDirs:   getEnvList("IGNORE_DIRS"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Publish:      getEnvList("PUBLISH"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		Neo4j: Neo4jConfig{
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", ""),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			Prefix:    getEnv("S3_PREFIX", "string-scout"),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
		},
	}
}

// LoadFile overlays the keys present in a YAML file onto c. Unknown keys are
// rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the scan settings and the settings of every requested
// publish target.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Suffix) == "" {
		errs = append(errs, errors.New("suffix must not be empty"))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.WorkerCount))
	}
	if _, err := report.ParseFormat(c.OutputFormat); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := parser.LookupEncoding(c.Encoding); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errs = append(errs, errors.New("output path must not be empty"))
	}

	for _, target := range c.Publish {
		switch target {
		case PublishPostgres:
			if c.DatabaseURL == "" {
				errs = append(errs, errors.New("publish postgres requires DATABASE_URL"))
			}
		case PublishNeo4j:
			if c.Neo4j.URI == "" {
				errs = append(errs, errors.New("publish neo4j requires NEO4J_URI"))
			}
		case PublishS3:
			if c.S3.Endpoint == "" || c.S3.Bucket == "" {
				errs = append(errs, errors.New("publish s3 requires S3_ENDPOINT and S3_BUCKET"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown publish target %q", target))
		}
	}
	return errors.Join(errs...)
}

// Publishes reports whether target was requested.
func (c *Config) Publishes(target string) bool {
	return slices.Contains(c.Publish, target)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
