package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
)

// SearchHit is one matched document
type SearchHit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// SearchResponse is one page of hits. Cursor is set only for scroll requests;
// an empty Hits with a non-empty Cursor means the scroll is exhausted.
// Aggregations holds the buckets of each requested aggregation by name.
type SearchResponse struct {
	Total        int64
	Hits         []SearchHit
	Cursor       dsl.Cursor
	Aggregations map[string][]dsl.Bucket
}

// DocumentIndex defines the interface for the document index engine
type DocumentIndex interface {
	// Search runs a single request against index
	Search(ctx context.Context, index string, req dsl.SearchRequest) (*SearchResponse, error)

	// OpenScroll runs req and keeps a cursor alive for keepAlive
	OpenScroll(ctx context.Context, index string, req dsl.SearchRequest, keepAlive time.Duration) (*SearchResponse, error)

	// Scroll returns the next batch for cursor and renews its keep-alive.
	// An unknown or expired cursor yields an ErrorTypeCursorExpired error.
	Scroll(ctx context.Context, cursor dsl.Cursor, keepAlive time.Duration) (*SearchResponse, error)
}
