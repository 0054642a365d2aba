package repositories

import (
	"context"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// TaxonomyResolver resolves human-readable names to taxonomy ids
type TaxonomyResolver interface {
	// ResolveIDs returns the ids whose name equals one of names, compared
	// case-insensitively. Misses are dropped.
	ResolveIDs(ctx context.Context, taxonomy entities.Taxonomy, names []string) ([]int64, error)
}
