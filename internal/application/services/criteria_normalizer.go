package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

// IDSet is a resolved id filter. A present set with no ids matches nothing.
type IDSet struct {
	IDs []int64
}

// NormalizedCriteria is SearchCriteria with every name resolved to ids and
// every exact-match value lower-cased. Nil pointers and nil slices mean the
// facet was not supplied; a non-nil empty slice matches nothing.
type NormalizedCriteria struct {
	Technologies *IDSet
	Categories   *IDSet
	Rankings     *IDSet
	// CategoryNames are the supplied category names, kept for text relevance
	CategoryNames []string

	CompanyTypes []string
	Status       []string
	Industries   []string
	ZipCodes     []string

	LastUpdated         *time.Time
	CustomEmployeeRange *entities.Range
	Employee            *entities.Range
	Revenue             *entities.Range
	VerifiedAt          *entities.VerifiedAt
	Locations           []entities.Location

	IndustryExclusions []string
	CategoryExclusions *IDSet

	// Subsidiary is nil when the key was absent or had no boolean value
	Subsidiary *bool
	// ExcludeSubsidiaries is true unless the caller supplied the subsidiary
	// key, whatever its value
	ExcludeSubsidiaries bool

	IDs []int64
}

// CriteriaNormalizer resolves taxonomy names in search criteria
type CriteriaNormalizer struct {
	resolver repositories.TaxonomyResolver
}

// NewCriteriaNormalizer creates a new criteria normalizer
func NewCriteriaNormalizer(resolver repositories.TaxonomyResolver) *CriteriaNormalizer {
	return &CriteriaNormalizer{resolver: resolver}
}

// Normalize resolves names to ids. Names that resolve to nothing are dropped;
// a facet whose names all miss stays present with an empty id set. Resolver
// failures abort normalization.
func (n *CriteriaNormalizer) Normalize(ctx context.Context, c entities.SearchCriteria) (*NormalizedCriteria, error) {
	out := &NormalizedCriteria{
		CategoryNames:       append([]string(nil), c.Categories.Names...),
		CompanyTypes:        lowerAll(c.CompanyTypes),
		Status:              lowerAll(c.Status),
		Industries:          lowerAll(c.Industries),
		ZipCodes:            lowerAll(c.ZipCodes),
		LastUpdated:         c.LastUpdated,
		CustomEmployeeRange: c.CustomEmployeeRange,
		Employee:            c.Employee,
		Revenue:             c.Revenue,
		VerifiedAt:          c.VerifiedAt,
		Locations:           c.Locations,
		IndustryExclusions:  c.IndustryExclusions,
		Subsidiary:          c.Subsidiary,
		ExcludeSubsidiaries: !c.SubsidiarySpecified && c.Subsidiary == nil,
		IDs:                 c.IDs,
	}

	g, gctx := errgroup.WithContext(ctx)
	resolve := func(dest **IDSet, taxonomy entities.Taxonomy, facet entities.FacetValues) {
		if !facet.Present() {
			return
		}
		g.Go(func() error {
			set, err := n.resolveFacet(gctx, taxonomy, facet)
			if err != nil {
				return err
			}
			*dest = set
			return nil
		})
	}

	resolve(&out.Technologies, entities.TaxonomyTechnologies, c.Technologies)
	resolve(&out.Categories, entities.TaxonomyCategories, c.Categories)
	resolve(&out.Rankings, entities.TaxonomyRankings, c.Rankings)
	resolve(&out.CategoryExclusions, entities.TaxonomyCategories, entities.FacetValues{
		Names:    c.CategoryExclusions,
		Supplied: c.CategoryExclusions != nil,
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *CriteriaNormalizer) resolveFacet(ctx context.Context, taxonomy entities.Taxonomy, facet entities.FacetValues) (*IDSet, error) {
	ids := append([]int64(nil), facet.IDs...)

	if len(facet.Names) > 0 {
		resolved, err := n.resolver.ResolveIDs(ctx, taxonomy, lowerAll(facet.Names))
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperrors.NewUnavailableError("failed to resolve "+string(taxonomy)+" names", err)
		}
		ids = append(ids, resolved...)
	}

	return &IDSet{IDs: dedupe(ids)}, nil
}

// lowerAll keeps nil and empty inputs distinct
func lowerAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// dedupe keeps the first occurrence of every id; the result is never nil
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
