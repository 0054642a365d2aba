package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense/api"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

type fakeCollectionSearcher struct {
	collections []string
	filters     []string
	docs        []map[string]interface{}
	err         error
}

func (f *fakeCollectionSearcher) SearchCollection(_ context.Context, collection string, params *api.SearchCollectionParams) (*api.SearchResult, error) {
	f.collections = append(f.collections, collection)
	f.filters = append(f.filters, *params.FilterBy)
	if f.err != nil {
		return nil, f.err
	}
	hits := make([]api.SearchResultHit, 0, len(f.docs))
	for i := range f.docs {
		hits = append(hits, api.SearchResultHit{Document: &f.docs[i]})
	}
	return &api.SearchResult{Hits: &hits}, nil
}

func TestBuildNameFilter(t *testing.T) {
	assert.Equal(t, "name_normalized:=[`fintech`,`machine learning`]", buildNameFilter([]string{"FinTech", " Machine Learning"}))
	assert.Equal(t, "name_normalized:=[`ab`]", buildNameFilter([]string{"a`b"}))
}

func TestTypesenseTaxonomyAdapter_ResolveIDs(t *testing.T) {
	// Arrange
	searcher := &fakeCollectionSearcher{docs: []map[string]interface{}{
		{"id": "4", "taxonomy_id": float64(4), "name": "Fintech"},
		{"id": "9", "taxonomy_id": float64(9), "name": "Payments"},
	}}
	adapter := NewTypesenseTaxonomyAdapter(searcher)

	// Act
	ids, err := adapter.ResolveIDs(context.Background(), entities.TaxonomyCategories, []string{"fintech", "payments"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, ids)
	assert.Equal(t, []string{"categories"}, searcher.collections)
}

func TestTypesenseTaxonomyAdapter_PagesLargeNameLists(t *testing.T) {
	searcher := &fakeCollectionSearcher{}
	adapter := NewTypesenseTaxonomyAdapter(searcher)

	names := make([]string, taxonomyPageSize+1)
	for i := range names {
		names[i] = "tech"
	}

	ids, err := adapter.ResolveIDs(context.Background(), entities.TaxonomyTechnologies, names)

	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, searcher.filters, 2)
}

func TestTypesenseTaxonomyAdapter_FailureIsUnavailable(t *testing.T) {
	adapter := NewTypesenseTaxonomyAdapter(&fakeCollectionSearcher{err: errors.New("timeout")})

	_, err := adapter.ResolveIDs(context.Background(), entities.TaxonomyRankings, []string{"top 100"})

	assert.True(t, apperrors.IsRetryable(err))
}
