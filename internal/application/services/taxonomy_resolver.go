package services

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

// taxonomyLookupSize caps the hits returned by one name lookup
const taxonomyLookupSize = 1000

// IndexTaxonomyResolver resolves names against the taxonomy indices of the
// document index
type IndexTaxonomyResolver struct {
	index     repositories.DocumentIndex
	indexName func(base string) string
}

// NewIndexTaxonomyResolver creates a resolver. indexName maps a taxonomy to
// its environment-scoped index, e.g. categories to categories_production.
func NewIndexTaxonomyResolver(index repositories.DocumentIndex, indexName func(base string) string) *IndexTaxonomyResolver {
	return &IndexTaxonomyResolver{index: index, indexName: indexName}
}

// ResolveIDs implements repositories.TaxonomyResolver. Categories match on
// name.keyword, other taxonomies on the analyzed name.
func (r *IndexTaxonomyResolver) ResolveIDs(ctx context.Context, taxonomy entities.Taxonomy, names []string) ([]int64, error) {
	if len(names) == 0 {
		return []int64{}, nil
	}

	values := make([]any, len(names))
	for i, n := range names {
		values[i] = strings.ToLower(n)
	}
	req := dsl.SearchRequest{
		Source: []string{"id"},
		Size:   dsl.Int(taxonomyLookupSize),
		Query:  dsl.Terms{Field: taxonomy.NameField(), Values: values},
	}

	resp, err := r.index.Search(ctx, r.indexName(string(taxonomy)), req)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		var doc struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, apperrors.NewInternalError("invalid "+string(taxonomy)+" document "+hit.ID, err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// CachedTaxonomyResolver memoizes another resolver. Entries are keyed by
// taxonomy and the sorted, lower-cased name set and expire after ttl.
type CachedTaxonomyResolver struct {
	next    repositories.TaxonomyResolver
	cache   *expirable.LRU[string, []int64]
	metrics *observability.Metrics
}

// NewCachedTaxonomyResolver wraps next with an LRU of size entries
func NewCachedTaxonomyResolver(next repositories.TaxonomyResolver, size int, ttl time.Duration, metrics *observability.Metrics) *CachedTaxonomyResolver {
	return &CachedTaxonomyResolver{
		next:    next,
		cache:   expirable.NewLRU[string, []int64](size, nil, ttl),
		metrics: metrics,
	}
}

// ResolveIDs implements repositories.TaxonomyResolver. Failures are not cached.
func (r *CachedTaxonomyResolver) ResolveIDs(ctx context.Context, taxonomy entities.Taxonomy, names []string) ([]int64, error) {
	key := taxonomyCacheKey(taxonomy, names)
	if ids, ok := r.cache.Get(key); ok {
		observability.RecordCacheHit(ctx, r.metrics, "taxonomy")
		return slices.Clone(ids), nil
	}
	observability.RecordCacheMiss(ctx, r.metrics, "taxonomy")

	ids, err := r.next.ResolveIDs(ctx, taxonomy, names)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, slices.Clone(ids))
	return ids, nil
}

func taxonomyCacheKey(taxonomy entities.Taxonomy, names []string) string {
	normalized := make([]string, len(names))
	for i, n := range names {
		normalized[i] = strings.ToLower(n)
	}
	slices.Sort(normalized)
	return string(taxonomy) + "\x00" + strings.Join(slices.Compact(normalized), "\x00")
}
