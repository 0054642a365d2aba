package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	"github.com/zatekoja/crmdataplatform/pkg/config"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

const searchContextMissing = "search_context_missing_exception"

// OpenSearchAdapter implements DocumentIndex on an OpenSearch cluster. Calls
// pass a client-side rate limiter and a circuit breaker that trips on
// transport failures and 5xx responses.
type OpenSearchAdapter struct {
	transport opensearchapi.Transport
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
}

// Ensure OpenSearchAdapter implements DocumentIndex
var _ repositories.DocumentIndex = (*OpenSearchAdapter)(nil)

// NewOpenSearchAdapter creates a new OpenSearch adapter
func NewOpenSearchAdapter(transport opensearchapi.Transport, cfg config.OpenSearchConfig) *OpenSearchAdapter {
	failures := uint32(max(cfg.BreakerFailures, 1))
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &OpenSearchAdapter{
		transport: transport,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "opensearch",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
		}),
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
	}
}

// Search implements repositories.DocumentIndex
func (a *OpenSearchAdapter) Search(ctx context.Context, index string, req dsl.SearchRequest) (*repositories.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode search request", err)
	}
	return a.do(ctx, opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	})
}

// OpenScroll implements repositories.DocumentIndex
func (a *OpenSearchAdapter) OpenScroll(ctx context.Context, index string, req dsl.SearchRequest, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode search request", err)
	}
	return a.do(ctx, opensearchapi.SearchRequest{
		Index:  []string{index},
		Body:   bytes.NewReader(body),
		Scroll: keepAlive,
	})
}

// Scroll implements repositories.DocumentIndex. Only the cursor is sent.
func (a *OpenSearchAdapter) Scroll(ctx context.Context, cursor dsl.Cursor, keepAlive time.Duration) (*repositories.SearchResponse, error) {
	resp, err := a.do(ctx, opensearchapi.ScrollRequest{
		ScrollID: string(cursor),
		Scroll:   keepAlive,
	})
	var expired *cursorMissingError
	if errors.As(err, &expired) {
		return nil, apperrors.NewCursorExpiredError(string(cursor))
	}
	return resp, err
}

type cursorMissingError struct {
	reason string
}

func (e *cursorMissingError) Error() string {
	return "scroll context missing: " + e.reason
}

type request interface {
	Do(ctx context.Context, transport opensearchapi.Transport) (*opensearchapi.Response, error)
}

// outcome carries a non-retryable error out of the breaker so it is not
// counted as a failure
type outcome struct {
	err error
}

func (a *OpenSearchAdapter) do(ctx context.Context, req request) (*repositories.SearchResponse, error) {
	var resp *repositories.SearchResponse
	err := a.send(ctx, req, func(body io.Reader) error {
		var err error
		resp, err = decodeResponse(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// send runs req through the limiter and the breaker and hands a successful
// body to decode
func (a *OpenSearchAdapter) send(ctx context.Context, req request, decode func(io.Reader) error) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return apperrors.NewUnavailableError("opensearch rate limit wait aborted", err)
	}

	result, err := a.breaker.Execute(func() (interface{}, error) {
		res, err := req.Do(ctx, a.transport)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError {
			return nil, responseError(res)
		}
		if res.IsError() {
			return outcome{err: responseError(res)}, nil
		}
		return outcome{err: decode(res.Body)}, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.NewUnavailableError("opensearch circuit open", err)
	case err != nil:
		return apperrors.NewUnavailableError("opensearch request failed", err)
	}
	return result.(outcome).err
}

// IndexDocuments bulk-loads docs into index, replacing documents with the
// same id. Per-item failures fail the whole call.
func (a *OpenSearchAdapter) IndexDocuments(ctx context.Context, index string, docs []repositories.SearchHit) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, d := range docs {
		action, err := json.Marshal(map[string]any{"index": map[string]string{"_index": index, "_id": d.ID}})
		if err != nil {
			return apperrors.NewInternalError("failed to encode bulk action", err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(bytes.TrimSpace(d.Source))
		buf.WriteByte('\n')
	}

	return a.send(ctx, opensearchapi.BulkRequest{Body: &buf}, func(body io.Reader) error {
		var res bulkBody
		if err := json.NewDecoder(body).Decode(&res); err != nil {
			return apperrors.NewInternalError("failed to decode bulk response", err)
		}
		if !res.Errors {
			return nil
		}
		for _, item := range res.Items {
			if r := item["index"]; r.Error != nil {
				return apperrors.NewExternalError(
					fmt.Sprintf("opensearch rejected document %s", r.ID),
					fmt.Errorf("%s: %s", r.Error.Type, r.Error.Reason),
				)
			}
		}
		return apperrors.NewExternalError("opensearch bulk request reported errors", nil)
	})
}

type bulkBody struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type errorBody struct {
	Error struct {
		Type      string `json:"type"`
		Reason    string `json:"reason"`
		RootCause []struct {
			Type string `json:"type"`
		} `json:"root_cause"`
	} `json:"error"`
}

func responseError(res *opensearchapi.Response) error {
	data, _ := io.ReadAll(res.Body)

	var body errorBody
	_ = json.Unmarshal(data, &body)

	missing := body.Error.Type == searchContextMissing
	for _, rc := range body.Error.RootCause {
		missing = missing || rc.Type == searchContextMissing
	}
	if missing || (res.StatusCode == http.StatusNotFound && strings.Contains(string(data), searchContextMissing)) {
		return &cursorMissingError{reason: body.Error.Reason}
	}

	if body.Error.Reason != "" {
		return apperrors.NewExternalError(
			fmt.Sprintf("opensearch error status %d", res.StatusCode),
			fmt.Errorf("%s: %s", body.Error.Type, body.Error.Reason),
		)
	}
	return apperrors.NewExternalError(fmt.Sprintf("opensearch error status %d", res.StatusCode), nil)
}

type searchBody struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			ID     string          `json:"_id"`
			Score  *float64        `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      json.RawMessage `json:"key"`
			DocCount int64           `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

func decodeResponse(r io.Reader) (*repositories.SearchResponse, error) {
	var body searchBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, apperrors.NewInternalError("failed to decode opensearch response", err)
	}

	total, err := decodeTotal(body.Hits.Total)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode opensearch hit total", err)
	}

	resp := &repositories.SearchResponse{
		Total:  total,
		Hits:   make([]repositories.SearchHit, 0, len(body.Hits.Hits)),
		Cursor: dsl.Cursor(body.ScrollID),
	}
	for _, h := range body.Hits.Hits {
		hit := repositories.SearchHit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		resp.Hits = append(resp.Hits, hit)
	}

	if len(body.Aggregations) > 0 {
		resp.Aggregations = make(map[string][]dsl.Bucket, len(body.Aggregations))
		for name, agg := range body.Aggregations {
			buckets := make([]dsl.Bucket, 0, len(agg.Buckets))
			for _, b := range agg.Buckets {
				buckets = append(buckets, dsl.Bucket{Key: bucketKey(b.Key), DocCount: b.DocCount})
			}
			resp.Aggregations[name] = buckets
		}
	}
	return resp, nil
}

// bucketKey renders string keys unquoted and numeric keys as written
func bucketKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodeTotal accepts both the numeric and the {"value": n} total forms
func decodeTotal(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, err
	}
	return obj.Value, nil
}
