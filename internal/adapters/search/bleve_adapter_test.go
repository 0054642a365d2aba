package search

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/crmdataplatform/internal/adapters/cache"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	"github.com/zatekoja/crmdataplatform/internal/query/services"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

var companyDocs = []string{
	`{"id":1,"name":"Acme Robotics","country":"United States","employees":120,"subsidiary":false,"popularity":50,"categories":[{"id":4,"name":"Robotics"}],"last_updated":"2024-05-20T00:00:00Z"}`,
	`{"id":2,"name":"Acme Payments","country":"United Kingdom","employees":15,"subsidiary":true,"popularity":90,"categories":[{"id":9,"name":"Fintech"}],"last_updated":"2023-01-01T00:00:00Z"}`,
	`{"id":3,"name":"Globex","country":"United States","employees":4000,"subsidiary":false,"categories":[{"id":4,"name":"Robotics"},{"id":9,"name":"Fintech"}],"last_updated":"2024-05-30T00:00:00Z"}`,
	`{"id":4,"name":"Initech Labs","country":"Germany","employees":45,"popularity":10,"categories":[]}`,
}

func newLoadedBleve(t *testing.T) *BleveAdapter {
	t.Helper()
	adapter, err := NewBleveAdapter()
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	hits := make([]repositories.SearchHit, 0, len(companyDocs))
	for _, raw := range companyDocs {
		var doc struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &doc))
		hits = append(hits, repositories.SearchHit{ID: dsl.FormatID(doc.ID), Source: json.RawMessage(raw)})
	}
	require.NoError(t, adapter.IndexDocuments(context.Background(), "companies", hits))
	return adapter
}

func hitIDs(resp *repositories.SearchResponse) []string {
	ids := make([]string, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestBleveAdapter_AgreesWithEvaluate(t *testing.T) {
	adapter := newLoadedBleve(t)

	tests := []struct {
		name  string
		query dsl.Query
	}{
		{name: "match all", query: dsl.MatchAll{}},
		{name: "keyword term", query: dsl.Terms{Field: "country.keyword", Values: []any{"United States"}}},
		{name: "analyzed term", query: dsl.Term{Field: "name", Value: "acme"}},
		{name: "numeric terms", query: dsl.Terms{Field: "categories.id", Values: []any{int64(9)}}},
		{name: "empty terms", query: dsl.Terms{Field: "categories.id", Values: []any{}}},
		{name: "match and", query: dsl.Match{Field: "name", Query: "acme payments", Operator: "and"}},
		{name: "match or", query: dsl.Match{Field: "name", Query: "acme globex"}},
		{name: "phrase prefix", query: dsl.MatchPhrasePrefix{Field: "name", Query: "acme rob"}},
		{name: "numeric range", query: dsl.Range{Field: "employees", GTE: int64(11), LTE: int64(200)}},
		{name: "date range", query: dsl.Range{Field: "last_updated", GTE: "2024-05-02T12:00:00Z"}},
		{name: "bool flag", query: dsl.Match{Field: "subsidiary", Query: true}},
		{name: "ids", query: dsl.IDs{Values: []string{"2", "4"}}},
		{
			name: "must not exists",
			query: &dsl.Bool{
				Filter:  []dsl.Query{dsl.Range{Field: "employees", GTE: int64(1)}},
				MustNot: []dsl.Query{dsl.Exists{Field: "popularity"}},
			},
		},
		{
			name: "should with minimum",
			query: &dsl.Bool{
				Filter: []dsl.Query{&dsl.Bool{
					Should: []dsl.Query{
						dsl.Terms{Field: "categories.id", Values: []any{int64(4)}},
						dsl.Match{Field: "name", Query: "initech", Operator: "and"},
					},
					MinimumShouldMatch: dsl.Int(1),
				}},
				MustNot: []dsl.Query{dsl.Match{Field: "subsidiary", Query: true}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			want := []string{}
			for _, raw := range companyDocs {
				var doc map[string]any
				require.NoError(t, json.Unmarshal([]byte(raw), &doc))
				if dsl.Evaluate(tt.query, doc) {
					want = append(want, dsl.FormatID(doc["id"]))
				}
			}

			// Act
			resp, err := adapter.Search(context.Background(), "companies", dsl.SearchRequest{Query: tt.query, Size: dsl.Int(100)})

			// Assert
			require.NoError(t, err)
			got := hitIDs(resp)
			sort.Strings(got)
			sort.Strings(want)
			assert.Equal(t, want, got)
			assert.EqualValues(t, len(want), resp.Total)
		})
	}
}

func TestBleveAdapter_SortsAndPages(t *testing.T) {
	adapter := newLoadedBleve(t)
	req := dsl.SearchRequest{
		Query: dsl.MatchAll{},
		Sort: []dsl.SortField{
			{Field: "popularity", Order: dsl.Desc, UnmappedType: "long", Missing: dsl.MissingLast},
			{Field: "id", Order: dsl.Asc},
		},
		From: dsl.Int(1),
		Size: dsl.Int(2),
	}

	resp, err := adapter.Search(context.Background(), "companies", req)

	require.NoError(t, err)
	assert.EqualValues(t, 4, resp.Total)
	assert.Equal(t, []string{"1", "4"}, hitIDs(resp))
}

func TestBleveAdapter_ProjectsSource(t *testing.T) {
	adapter := newLoadedBleve(t)

	resp, err := adapter.Search(context.Background(), "companies", dsl.SearchRequest{
		Query:  dsl.IDs{Values: []string{"3"}},
		Source: []string{"id", "name", "categories.id"},
	})

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.JSONEq(t, `{"id":3,"name":"Globex","categories":[{"id":4,"name":"Robotics"},{"id":9,"name":"Fintech"}]}`, string(resp.Hits[0].Source))
}

func TestBleveAdapter_UnknownIndexIsEmpty(t *testing.T) {
	adapter, err := NewBleveAdapter()
	require.NoError(t, err)

	resp, err := adapter.Search(context.Background(), "missing", dsl.SearchRequest{})

	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Hits)
}

func TestBleveAdapter_ScrollThroughEmulatedIndex(t *testing.T) {
	ctx := context.Background()
	index := services.NewEmulatedIndex(newLoadedBleve(t), cache.NewMemoryCursorStore())
	req := dsl.SearchRequest{Query: dsl.MatchAll{}, Size: dsl.Int(3), Sort: []dsl.SortField{{Field: "id", Order: dsl.Asc}}}

	first, err := index.OpenScroll(ctx, "companies", req, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, hitIDs(first))

	second, err := index.Scroll(ctx, first.Cursor, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, hitIDs(second))

	_, err = index.Scroll(ctx, "unknown", time.Minute)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCursorExpired))
}

func TestBleveAdapter_TermsAggregation(t *testing.T) {
	adapter := newLoadedBleve(t)

	resp, err := adapter.Search(context.Background(), "companies", dsl.SearchRequest{
		Query: dsl.MatchPhrasePrefix{Field: "country", Query: "unit"},
		Size:  dsl.Int(0),
		Aggs:  []dsl.TermsAggregation{{Name: "countries", Field: "country.keyword", Size: 10}},
	})

	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	assert.Empty(t, resp.Hits)
	assert.Equal(t, []dsl.Bucket{
		{Key: "United States", DocCount: 2},
		{Key: "United Kingdom", DocCount: 1},
	}, resp.Aggregations["countries"])
}
