package repositories

import (
	"context"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// RefreshProcessRepository reads refresh process records written by the
// enrichment subsystem
type RefreshProcessRepository interface {
	// GetRunning returns the highest-id process for the entity whose search
	// state is not processed, or nil when none is running
	GetRunning(ctx context.Context, kind entities.EntityKind, entityID int64) (*entities.RefreshProcess, error)

	// GetLatest returns the highest-id process for the entity in any state,
	// or nil when the entity was never refreshed
	GetLatest(ctx context.Context, kind entities.EntityKind, entityID int64) (*entities.RefreshProcess, error)
}
