package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

// ExecutorConfig bounds executor requests
type ExecutorConfig struct {
	MaxResultWindow  int
	ChunkSize        int
	ChunkConcurrency int
	ScrollKeepAlive  time.Duration
	Timeout          time.Duration
}

// DefaultExecutorConfig mirrors the index engine defaults
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxResultWindow:  10000,
		ChunkSize:        1000,
		ChunkConcurrency: 4,
		ScrollKeepAlive:  2 * time.Minute,
		Timeout:          10 * time.Second,
	}
}

// SearchExecutor runs built requests against the document index in offset,
// scroll or batched id mode
type SearchExecutor struct {
	index   repositories.DocumentIndex
	cfg     ExecutorConfig
	metrics *observability.Metrics
}

// NewSearchExecutor creates a new search executor. Zero config values fall
// back to DefaultExecutorConfig.
func NewSearchExecutor(index repositories.DocumentIndex, cfg ExecutorConfig, metrics *observability.Metrics) *SearchExecutor {
	def := DefaultExecutorConfig()
	if cfg.MaxResultWindow <= 0 {
		cfg.MaxResultWindow = def.MaxResultWindow
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = def.ChunkConcurrency
	}
	if cfg.ScrollKeepAlive <= 0 {
		cfg.ScrollKeepAlive = def.ScrollKeepAlive
	}
	return &SearchExecutor{index: index, cfg: cfg, metrics: metrics}
}

// Page runs req as a single offset page
func (e *SearchExecutor) Page(ctx context.Context, index string, req dsl.SearchRequest, from, size int) (*repositories.SearchResponse, error) {
	if from < 0 || size < 0 {
		return nil, apperrors.NewValidationError("from and size must not be negative")
	}
	if from+size > e.cfg.MaxResultWindow {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"result window too large: from + size must be <= %d, use scroll mode for deep pagination", e.cfg.MaxResultWindow))
	}

	req.From = dsl.Int(from)
	req.Size = dsl.Int(size)
	req.TrackTotalHits = true

	ctx, cancel := e.bound(ctx)
	defer cancel()

	return e.run(ctx, "page", index, func(ctx context.Context) (*repositories.SearchResponse, error) {
		return e.index.Search(ctx, index, req)
	})
}

// MatchesAny reports whether any document matches q
func (e *SearchExecutor) MatchesAny(ctx context.Context, index string, q dsl.Query) (bool, error) {
	resp, err := e.Page(ctx, index, dsl.SearchRequest{Query: q}, 0, 0)
	if err != nil {
		return false, err
	}
	return resp.Total > 0, nil
}

// OpenScroll runs req and returns the first batch with a cursor
func (e *SearchExecutor) OpenScroll(ctx context.Context, index string, req dsl.SearchRequest, size int) (*repositories.SearchResponse, error) {
	if size <= 0 {
		return nil, apperrors.NewValidationError("scroll size must be positive")
	}
	req.From = nil
	req.Size = dsl.Int(size)
	req.TrackTotalHits = true

	ctx, cancel := e.bound(ctx)
	defer cancel()

	return e.run(ctx, "open_scroll", index, func(ctx context.Context) (*repositories.SearchResponse, error) {
		return e.index.OpenScroll(ctx, index, req, e.cfg.ScrollKeepAlive)
	})
}

// ContinueScroll returns the next batch for cursor, renewing its keep-alive.
// No query is resent; an expired cursor fails with ErrorTypeCursorExpired.
func (e *SearchExecutor) ContinueScroll(ctx context.Context, cursor dsl.Cursor) (*repositories.SearchResponse, error) {
	if cursor == "" {
		return nil, apperrors.NewValidationError("scroll cursor is required")
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	resp, err := e.run(ctx, "scroll", "", func(ctx context.Context) (*repositories.SearchResponse, error) {
		return e.index.Scroll(ctx, cursor, e.cfg.ScrollKeepAlive)
	})
	if apperrors.IsType(err, apperrors.ErrorTypeCursorExpired) {
		observability.RecordCursorExpired(ctx, e.metrics)
	}
	return resp, err
}

// ByIDs fetches documents by id. Ids are split into chunks of the configured
// size, each fetched with a constant-score terms query. Chunks run
// concurrently; the result keeps chunk order and sums chunk totals. The
// first failing chunk cancels the rest and fails the whole call.
func (e *SearchExecutor) ByIDs(ctx context.Context, index string, ids []string, source []string) (*repositories.SearchResponse, error) {
	if len(ids) == 0 {
		return &repositories.SearchResponse{}, nil
	}

	chunks := chunkIDs(ids, e.cfg.ChunkSize)
	observability.RecordChunks(ctx, e.metrics, index, len(chunks))

	ctx, cancel := e.bound(ctx)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "SearchExecutor.ByIDs",
		attribute.String("search.index", index),
		attribute.Int("search.ids", len(ids)),
		attribute.Int("search.chunks", len(chunks)),
	)
	defer span.End()

	results := make([]*repositories.SearchResponse, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ChunkConcurrency)

	for i, chunk := range chunks {
		values := make([]any, len(chunk))
		for j, id := range chunk {
			values[j] = id
		}
		req := dsl.SearchRequest{
			Source: source,
			Size:   dsl.Int(len(chunk)),
			Query:  dsl.ConstantScore{Filter: dsl.Terms{Field: "_id", Values: values}},
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := e.run(gctx, "by_ids", index, func(ctx context.Context) (*repositories.SearchResponse, error) {
				return e.index.Search(ctx, index, req)
			})
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	merged := &repositories.SearchResponse{}
	for _, r := range results {
		merged.Total += r.Total
		merged.Hits = append(merged.Hits, r.Hits...)
	}
	return merged, nil
}

func (e *SearchExecutor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

func (e *SearchExecutor) run(ctx context.Context, op, index string, fn func(context.Context) (*repositories.SearchResponse, error)) (*repositories.SearchResponse, error) {
	start := time.Now()
	logger := observability.ComponentLogger(ctx, "search_executor")
	logger.Debug().Str("operation", op).Str("index", index).Msg("dispatching search")

	resp, err := fn(ctx)
	if err == nil && resp == nil {
		resp = &repositories.SearchResponse{}
	}
	err = classify(op, err)
	observability.RecordSearchMetric(ctx, e.metrics, op, index, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// classify passes typed errors through and marks everything else retryable
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUnavailableError(fmt.Sprintf("search %s timed out", op), err)
	}
	return apperrors.NewUnavailableError(fmt.Sprintf("search %s failed", op), err)
}

func chunkIDs(ids []string, size int) [][]string {
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
