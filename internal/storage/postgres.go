package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Querier is the part of *pgxpool.Pool and pgx.Tx that Submissions needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// latestSubmittedFile picks the newest row for a submission and file name.
// File names compare case-insensitively, like widget matching.
const latestSubmittedFile = `
SELECT contents
FROM submitted_files
WHERE submission_id = $1
  AND lower(file_name) = lower($2)
ORDER BY submitted_at DESC
LIMIT 1`

// Submissions reads prior submissions from the submitted_files table:
//
//	submission_id text, file_name text, contents bytea, submitted_at timestamptz
type Submissions struct {
	db      Querier
	maxSize int64
}

// NewSubmissions returns a table reader. Rows larger than maxSize bytes are
// refused (unbounded when maxSize <= 0).
func NewSubmissions(db Querier, maxSize int64) *Submissions {
	return &Submissions{db: db, maxSize: maxSize}
}

// Fetcher implements SubmissionSource.
func (s *Submissions) Fetcher(submissionID string) core.Fetcher {
	return core.FetcherFunc(func(ctx context.Context, name string) (string, error) {
		return s.Fetch(ctx, submissionID, name)
	})
}

// Fetch returns the transport string of the newest row for name, or
// core.ErrNotFound.
func (s *Submissions) Fetch(ctx context.Context, submissionID, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "postgres.fetch_submitted_file",
		trace.WithAttributes(
			attribute.String("submission_id", submissionID),
			attribute.String("file_name", name),
		),
	)
	defer span.End()

	var contents []byte
	err := s.db.QueryRow(ctx, latestSubmittedFile, submissionID, name).Scan(&contents)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return "", core.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return "", fmt.Errorf("query submitted file %s: %w", name, err)
	}

	if s.maxSize > 0 && int64(len(contents)) > s.maxSize {
		err := fmt.Errorf("%w: exceeds %d bytes", core.ErrFileTooLarge, s.maxSize)
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(
		attribute.Bool("found", true),
		attribute.Int("size_bytes", len(contents)),
	)
	return core.EncodeTransport(contents), nil
}
