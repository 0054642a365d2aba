package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/mocks"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
)

func testIndexName(base string) string {
	return base + "_test"
}

func TestIndexTaxonomyResolver_CategoriesUseKeywordField(t *testing.T) {
	// Arrange
	index := mocks.NewMockDocumentIndex(t)
	index.On("Search", mock.Anything, "categories_test", dsl.SearchRequest{
		Source: []string{"id"},
		Size:   dsl.Int(taxonomyLookupSize),
		Query:  dsl.Terms{Field: "name.keyword", Values: []any{"fintech", "machine learning"}},
	}).Return(&repositories.SearchResponse{
		Total: 2,
		Hits: []repositories.SearchHit{
			{ID: "4", Source: json.RawMessage(`{"id": 4}`)},
			{ID: "8", Source: json.RawMessage(`{"id": 8}`)},
		},
	}, nil)
	resolver := NewIndexTaxonomyResolver(index, testIndexName)

	// Act
	ids, err := resolver.ResolveIDs(context.Background(), entities.TaxonomyCategories, []string{"FinTech", "Machine Learning"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 8}, ids)
}

func TestIndexTaxonomyResolver_TechnologiesUseAnalyzedName(t *testing.T) {
	index := mocks.NewMockDocumentIndex(t)
	index.On("Search", mock.Anything, "technologies_test", mock.MatchedBy(func(req dsl.SearchRequest) bool {
		terms, ok := req.Query.(dsl.Terms)
		return ok && terms.Field == "name"
	})).Return(&repositories.SearchResponse{}, nil)
	resolver := NewIndexTaxonomyResolver(index, testIndexName)

	ids, err := resolver.ResolveIDs(context.Background(), entities.TaxonomyTechnologies, []string{"unknown"})

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIndexTaxonomyResolver_NoNames(t *testing.T) {
	resolver := NewIndexTaxonomyResolver(mocks.NewMockDocumentIndex(t), testIndexName)

	ids, err := resolver.ResolveIDs(context.Background(), entities.TaxonomyRankings, nil)

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCachedTaxonomyResolver_HitsSkipLookup(t *testing.T) {
	// Arrange
	next := mocks.NewMockTaxonomyResolver(t)
	next.On("ResolveIDs", mock.Anything, entities.TaxonomyTechnologies, []string{"go", "redis"}).
		Return([]int64{1, 2}, nil).Once()
	resolver := NewCachedTaxonomyResolver(next, 16, time.Minute, nil)

	// Act
	first, err1 := resolver.ResolveIDs(context.Background(), entities.TaxonomyTechnologies, []string{"go", "redis"})
	second, err2 := resolver.ResolveIDs(context.Background(), entities.TaxonomyTechnologies, []string{"Redis", "Go"})

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, []int64{1, 2}, first)
	assert.Equal(t, []int64{1, 2}, second)
}

func TestCachedTaxonomyResolver_KeysByTaxonomy(t *testing.T) {
	next := mocks.NewMockTaxonomyResolver(t)
	next.On("ResolveIDs", mock.Anything, entities.TaxonomyTechnologies, []string{"cloud"}).Return([]int64{1}, nil).Once()
	next.On("ResolveIDs", mock.Anything, entities.TaxonomyCategories, []string{"cloud"}).Return([]int64{2}, nil).Once()
	resolver := NewCachedTaxonomyResolver(next, 16, time.Minute, nil)

	tech, _ := resolver.ResolveIDs(context.Background(), entities.TaxonomyTechnologies, []string{"cloud"})
	cats, _ := resolver.ResolveIDs(context.Background(), entities.TaxonomyCategories, []string{"cloud"})

	assert.Equal(t, []int64{1}, tech)
	assert.Equal(t, []int64{2}, cats)
}

func TestCachedTaxonomyResolver_ErrorsAreNotCached(t *testing.T) {
	next := mocks.NewMockTaxonomyResolver(t)
	next.On("ResolveIDs", mock.Anything, entities.TaxonomyRankings, []string{"top"}).Return(nil, errors.New("boom")).Once()
	next.On("ResolveIDs", mock.Anything, entities.TaxonomyRankings, []string{"top"}).Return([]int64{3}, nil).Once()
	resolver := NewCachedTaxonomyResolver(next, 16, time.Minute, nil)

	_, err := resolver.ResolveIDs(context.Background(), entities.TaxonomyRankings, []string{"top"})
	require.Error(t, err)

	ids, err := resolver.ResolveIDs(context.Background(), entities.TaxonomyRankings, []string{"top"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)
}
