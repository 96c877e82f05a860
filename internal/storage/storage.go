// Package storage provides the prior-submission loaders and the field value
// cache that back widgets in the web server.
//
// A SubmissionSource turns a submission id into a core.Fetcher. Sources can
// be chained: the first one that has a file wins, and ErrNotFound from one
// source falls through to the next.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("csvsubmit-storage")

// SubmissionSource yields a fetcher for one prior submission.
type SubmissionSource interface {
	Fetcher(submissionID string) core.Fetcher
}

// SourceFunc adapts a function to SubmissionSource.
type SourceFunc func(submissionID string) core.Fetcher

// Fetcher calls f(submissionID).
func (f SourceFunc) Fetcher(submissionID string) core.Fetcher { return f(submissionID) }

// Chain returns a source that asks each source in order. Nil sources are
// skipped; with none left, Chain returns nil.
func Chain(sources ...SubmissionSource) SubmissionSource {
	var live []SubmissionSource
	for _, s := range sources {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return SourceFunc(func(submissionID string) core.Fetcher {
		fetchers := make([]core.Fetcher, len(live))
		for i, s := range live {
			fetchers[i] = s.Fetcher(submissionID)
		}
		return chainFetcher(fetchers)
	})
}

type chainFetcher []core.Fetcher

func (c chainFetcher) Fetch(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, f := range c {
		transport, err := f.Fetch(ctx, name)
		if err == nil {
			return transport, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("fetch %s: %w", name, errors.Join(errs...))
	}
	return "", core.ErrNotFound
}
