package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/mocks"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

func TestCriteriaNormalizer_ResolvesNamesAndUnionsIDs(t *testing.T) {
	// Arrange
	resolver := mocks.NewMockTaxonomyResolver(t)
	resolver.On("ResolveIDs", mock.Anything, entities.TaxonomyTechnologies, []string{"go", "redis"}).
		Return([]int64{7, 3}, nil)
	normalizer := NewCriteriaNormalizer(resolver)

	criteria := entities.SearchCriteria{
		Technologies: entities.FacetValues{IDs: []int64{3, 9}, Names: []string{"Go", "Redis"}},
		Industries:   []string{"Computer Software"},
		ZipCodes:     []string{"SW1A"},
	}

	// Act
	n, err := normalizer.Normalize(context.Background(), criteria)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, n.Technologies)
	assert.Equal(t, []int64{3, 9, 7}, n.Technologies.IDs)
	assert.Equal(t, []string{"computer software"}, n.Industries)
	assert.Equal(t, []string{"sw1a"}, n.ZipCodes)
	assert.Nil(t, n.Categories)
	assert.Nil(t, n.Rankings)
}

func TestCriteriaNormalizer_AllMissIsPresentAndEmpty(t *testing.T) {
	// Arrange
	resolver := mocks.NewMockTaxonomyResolver(t)
	resolver.On("ResolveIDs", mock.Anything, entities.TaxonomyRankings, []string{"nowhere"}).
		Return([]int64{}, nil)
	normalizer := NewCriteriaNormalizer(resolver)

	// Act
	n, err := normalizer.Normalize(context.Background(), entities.SearchCriteria{
		Rankings: entities.FacetValues{Names: []string{"Nowhere"}},
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, n.Rankings)
	assert.Empty(t, n.Rankings.IDs)
}

func TestCriteriaNormalizer_KeepsCategoryNamesVerbatim(t *testing.T) {
	// Arrange
	resolver := mocks.NewMockTaxonomyResolver(t)
	resolver.On("ResolveIDs", mock.Anything, entities.TaxonomyCategories, []string{"machine learning"}).
		Return([]int64{12}, nil)
	resolver.On("ResolveIDs", mock.Anything, entities.TaxonomyCategories, []string{"gaming"}).
		Return([]int64{40}, nil)
	normalizer := NewCriteriaNormalizer(resolver)

	// Act
	n, err := normalizer.Normalize(context.Background(), entities.SearchCriteria{
		Categories:         entities.FacetValues{Names: []string{"Machine Learning"}},
		CategoryExclusions: []string{"Gaming"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"Machine Learning"}, n.CategoryNames)
	assert.Equal(t, []int64{12}, n.Categories.IDs)
	assert.Equal(t, []int64{40}, n.CategoryExclusions.IDs)
}

func TestCriteriaNormalizer_SubsidiaryDefault(t *testing.T) {
	normalizer := NewCriteriaNormalizer(mocks.NewMockTaxonomyResolver(t))

	tests := []struct {
		name       string
		subsidiary *bool
		want       bool
	}{
		{name: "unset excludes subsidiaries", subsidiary: nil, want: true},
		{name: "explicit false", subsidiary: boolPtr(false), want: false},
		{name: "explicit true", subsidiary: boolPtr(true), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := normalizer.Normalize(context.Background(), entities.SearchCriteria{Subsidiary: tt.subsidiary})

			require.NoError(t, err)
			assert.Equal(t, tt.want, n.ExcludeSubsidiaries)
			assert.Equal(t, tt.subsidiary, n.Subsidiary)
		})
	}
}

func TestCriteriaNormalizer_ResolverFailureIsFatal(t *testing.T) {
	// Arrange
	resolver := mocks.NewMockTaxonomyResolver(t)
	resolver.On("ResolveIDs", mock.Anything, entities.TaxonomyTechnologies, []string{"go"}).
		Return(nil, errors.New("connection refused"))
	normalizer := NewCriteriaNormalizer(resolver)

	// Act
	n, err := normalizer.Normalize(context.Background(), entities.SearchCriteria{
		Technologies: entities.FacetValues{Names: []string{"go"}},
	})

	// Assert
	assert.Nil(t, n)
	assert.True(t, apperrors.IsRetryable(err))
}

func boolPtr(v bool) *bool {
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

func intPtr(v int) *int {
	return &v
}
