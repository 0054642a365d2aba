package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	tsclient "github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

// taxonomyPageSize is the largest page Typesense serves
const taxonomyPageSize = 250

// CollectionSearcher runs a Typesense search against one collection
type CollectionSearcher interface {
	SearchCollection(ctx context.Context, collection string, params *api.SearchCollectionParams) (*api.SearchResult, error)
}

// TypesenseTaxonomyAdapter resolves taxonomy names through Typesense
type TypesenseTaxonomyAdapter struct {
	client CollectionSearcher
}

// Ensure TypesenseTaxonomyAdapter implements TaxonomyResolver
var _ repositories.TaxonomyResolver = (*TypesenseTaxonomyAdapter)(nil)

// NewTypesenseTaxonomyAdapter creates a new Typesense taxonomy adapter
func NewTypesenseTaxonomyAdapter(client CollectionSearcher) *TypesenseTaxonomyAdapter {
	return &TypesenseTaxonomyAdapter{client: client}
}

// ResolveIDs matches names exactly against name_normalized. Names are sent in
// pages so large name lists do not exceed the per-page limit.
func (a *TypesenseTaxonomyAdapter) ResolveIDs(ctx context.Context, taxonomy entities.Taxonomy, names []string) ([]int64, error) {
	ids := []int64{}
	for start := 0; start < len(names); start += taxonomyPageSize {
		end := min(start+taxonomyPageSize, len(names))
		params := &api.SearchCollectionParams{
			Q:             pointer.String("*"),
			QueryBy:       pointer.String("name"),
			FilterBy:      pointer.String(buildNameFilter(names[start:end])),
			IncludeFields: pointer.String("taxonomy_id"),
			PerPage:       pointer.Int(taxonomyPageSize),
		}

		result, err := a.client.SearchCollection(ctx, string(taxonomy), params)
		if err != nil {
			return nil, apperrors.NewUnavailableError(fmt.Sprintf("failed to resolve %s names", taxonomy), err)
		}
		if result == nil || result.Hits == nil {
			continue
		}

		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			doc := *hit.Document
			if val, ok := doc["taxonomy_id"].(float64); ok {
				ids = append(ids, int64(val))
			}
		}
	}
	return ids, nil
}

// buildNameFilter renders name_normalized:=[`a`,`b`]. Backticks inside a
// name cannot be escaped and are dropped.
func buildNameFilter(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ReplaceAll(tsclient.NormalizeName(n), "`", "")
		quoted = append(quoted, "`"+n+"`")
	}
	return "name_normalized:=[" + strings.Join(quoted, ",") + "]"
}
