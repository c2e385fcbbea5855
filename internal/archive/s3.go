package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"string-scout/internal/report"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// Format of the uploaded report; empty means plain text.
	Format report.Format
}

// objectClient is the subset of *minio.Client the archive uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Archive uploads rendered reports to an S3-compatible bucket.
type S3Archive struct {
	client objectClient
	bucket string
	region string
	prefix string
	format report.Format

	initOnce sync.Once
	initErr  error
}

func NewS3Archive(cfg S3Config) (*S3Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: regionOrDefault(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newS3Archive(client, cfg)
}

func newS3Archive(client objectClient, cfg S3Config) (*S3Archive, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	format := cfg.Format
	if format == "" {
		format = report.FormatText
	}
	return &S3Archive{
		client: client,
		bucket: bucket,
		region: regionOrDefault(cfg.Region),
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		format: format,
	}, nil
}

func (a *S3Archive) Name() string { return "s3" }

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// Publish uploads the run's report under <prefix>/<run id>/report.<ext>.
func (a *S3Archive) Publish(ctx context.Context, run *report.Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, run.Entries, a.format); err != nil {
		return err
	}

	key := a.ObjectKey(run.ID)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: contentType(a.format),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	log.Info().Str("bucket", a.bucket).Str("key", key).Int("bytes", buf.Len()).Msg("Report archived")
	return nil
}

// ObjectKey returns the object name a run's report is stored under.
func (a *S3Archive) ObjectKey(runID string) string {
	name := "report." + extension(a.format)
	if a.prefix == "" {
		return runID + "/" + name
	}
	return a.prefix + "/" + runID + "/" + name
}

func regionOrDefault(region string) string {
	if r := strings.TrimSpace(region); r != "" {
		return r
	}
	return "us-east-1"
}

func extension(f report.Format) string {
	switch f {
	case report.FormatTSV:
		return "tsv"
	case report.FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

func contentType(f report.Format) string {
	switch f {
	case report.FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	case report.FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
