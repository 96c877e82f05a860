package core

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("csvsubmit-core")

// DefaultFetchConcurrency bounds parallel fetches per load.
const DefaultFetchConcurrency = 4

// Fetcher delivers previously submitted content as a transport string.
// It returns ErrNotFound when nothing was submitted for name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, name string) (string, error)

// Fetch calls f(ctx, name).
func (f FetcherFunc) Fetch(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// LoadReport summarizes a prior-submission load. Names are sorted.
type LoadReport struct {
	Loaded  []string `json:"loaded"`  // Saved as Present
	Missing []string `json:"missing"` // No prior content, back to NotStarted
	Failed  []string `json:"failed"`  // Marked Failed
	Skipped []string `json:"skipped"` // Already present or superseded by a user save
}

// LoadPriorSubmission fetches every tracked file that has no content yet.
//
// Fetches run concurrently, at most limit at a time (DefaultFetchConcurrency
// when limit <= 0). A failure marks only its own file Failed; siblings keep
// going. Results that arrive after a user save of the same file are
// discarded, and loaded files never enable the unload check.
func LoadPriorSubmission(ctx context.Context, w *Widget, f Fetcher, limit int) LoadReport {
	if limit <= 0 {
		limit = DefaultFetchConcurrency
	}

	ctx, span := tracer.Start(ctx, "core.load_prior_submission",
		trace.WithAttributes(
			attribute.String("widget_id", w.ID()),
			attribute.String("mode", string(w.Mode())),
		),
	)
	defer span.End()

	var (
		report LoadReport
		mu     sync.Mutex
		g      errgroup.Group
	)
	g.SetLimit(limit)

	record := func(list *[]string, name string) {
		mu.Lock()
		*list = append(*list, name)
		mu.Unlock()
	}

	for _, name := range w.Names() {
		ticket, ok := w.BeginFetch(name)
		if !ok {
			record(&report.Skipped, name)
			continue
		}

		g.Go(func() error {
			switch err := fetchOne(ctx, w, f, ticket); {
			case err == nil:
				record(&report.Loaded, ticket.Name)
			case errors.Is(err, ErrStaleFetch):
				record(&report.Skipped, ticket.Name)
			case errors.Is(err, ErrNotFound):
				record(&report.Missing, ticket.Name)
			default:
				record(&report.Failed, ticket.Name)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Loaded)
	sort.Strings(report.Missing)
	sort.Strings(report.Failed)
	sort.Strings(report.Skipped)

	span.SetAttributes(
		attribute.Int("files_loaded", len(report.Loaded)),
		attribute.Int("files_failed", len(report.Failed)),
	)
	return report
}

// fetchOne runs one fetch and settles its ticket.
func fetchOne(ctx context.Context, w *Widget, f Fetcher, ticket FetchTicket) error {
	ctx, span := tracer.Start(ctx, "core.fetch_file",
		trace.WithAttributes(attribute.String("file_name", ticket.Name)),
	)
	defer span.End()

	transport, err := f.Fetch(ctx, ticket.Name)
	if errors.Is(err, ErrNotFound) {
		if !w.CancelFetch(ticket) {
			return ErrStaleFetch
		}
		span.SetAttributes(attribute.Bool("found", false))
		return err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if !w.FailFetch(ticket, err) {
			return ErrStaleFetch
		}
		return err
	}

	if err := w.CompleteFetch(ticket, transport); err != nil {
		if !errors.Is(err, ErrStaleFetch) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid content")
		}
		return err
	}
	return nil
}
