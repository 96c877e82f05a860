package storage

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ObjectConfig configures an ObjectStore.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	Region    string // optional; skips the bucket location lookup when set
	MaxSize   int64
}

// ObjectStore reads prior submissions from S3-compatible object storage.
// Objects live at <prefix><submission id>/<file name>.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	prefix  string
	maxSize int64
}

// NewObjectStore connects to the endpoint and checks the bucket exists.
// The bucket is never created; submissions are written elsewhere.
func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
	}

	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		maxSize: cfg.MaxSize,
	}, nil
}

// ObjectKey returns the key a submitted file is stored under.
func (s *ObjectStore) ObjectKey(submissionID, name string) string {
	return s.prefix + path.Join(submissionID, path.Base("/"+name))
}

// Fetcher implements SubmissionSource.
func (s *ObjectStore) Fetcher(submissionID string) core.Fetcher {
	return core.FetcherFunc(func(ctx context.Context, name string) (string, error) {
		return s.Fetch(ctx, submissionID, name)
	})
}

// Fetch downloads one submitted file and returns its transport string, or
// core.ErrNotFound when the object does not exist.
func (s *ObjectStore) Fetch(ctx context.Context, submissionID, name string) (string, error) {
	key := s.ObjectKey(submissionID, name)
	ctx, span := tracer.Start(ctx, "minio.fetch_submitted_file",
		trace.WithAttributes(
			attribute.String("bucket", s.bucket),
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", s.objectError(span, key, err)
	}
	defer obj.Close()

	transport, err := core.DecodeBlobToTransportString(ctx, obj, s.maxSize)
	if err != nil {
		return "", s.objectError(span, key, err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return transport, nil
}

func (s *ObjectStore) objectError(span trace.Span, key string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
		span.SetAttributes(attribute.Bool("found", false))
		return core.ErrNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "get object failed")
	return fmt.Errorf("get object %s: %w", key, err)
}
