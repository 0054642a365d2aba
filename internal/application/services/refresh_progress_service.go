package services

import (
	"context"
	"time"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
)

// ContactRefreshAfter is the default age at which a contact profile becomes
// eligible for a refresh. Company profiles use CompanyFreshnessWindow.
const ContactRefreshAfter = 45 * 24 * time.Hour

// RefreshProgressService reports the state of asynchronous profile refreshes.
// Lookups never fail: repository errors are logged and reported as absence.
type RefreshProgressService struct {
	repo       repositories.RefreshProcessRepository
	aggregator *ProgressAggregator
}

// NewRefreshProgressService creates a new refresh progress service
func NewRefreshProgressService(repo repositories.RefreshProcessRepository) *RefreshProgressService {
	return &RefreshProgressService{
		repo:       repo,
		aggregator: NewProgressAggregator(),
	}
}

// RunningProcess returns the aggregated progress of the entity's running
// refresh, or nil when none is running
func (s *RefreshProgressService) RunningProcess(ctx context.Context, kind entities.EntityKind, entityID int64) *entities.RunningProcessData {
	process := s.running(ctx, kind, entityID)
	return s.aggregator.Aggregate(process, ProgressSchemaFor(kind))
}

// AttributeProgress returns the status of one attribute in the running
// refresh, not_required when nothing runs
func (s *RefreshProgressService) AttributeProgress(ctx context.Context, kind entities.EntityKind, entityID int64, attribute string) entities.ProgressStatus {
	process := s.running(ctx, kind, entityID)
	if process == nil {
		return entities.ProgressNotRequired
	}
	return StatusForAttribute(process, attribute)
}

// LastRefreshTime returns when the entity's most recent refresh was
// requested, or nil if it never was
func (s *RefreshProgressService) LastRefreshTime(ctx context.Context, kind entities.EntityKind, entityID int64) *time.Time {
	process, err := s.repo.GetLatest(ctx, kind, entityID)
	if err != nil {
		observability.ComponentLogger(ctx, "refresh_progress").Warn().
			Err(err).
			Str("entity_kind", string(kind)).
			Int64("entity_id", entityID).
			Msg("failed to load latest refresh process")
		return nil
	}
	if process == nil {
		return nil
	}
	created := process.CreatedAt
	return &created
}

func (s *RefreshProgressService) running(ctx context.Context, kind entities.EntityKind, entityID int64) *entities.RefreshProcess {
	process, err := s.repo.GetRunning(ctx, kind, entityID)
	if err != nil {
		observability.ComponentLogger(ctx, "refresh_progress").Warn().
			Err(err).
			Str("entity_kind", string(kind)).
			Int64("entity_id", entityID).
			Msg("failed to load running refresh process")
		return nil
	}
	return process
}

// RequiresRefresh reports whether profile data last synced at lastSync is
// due for a refresh at now. A never-synced profile always is. customDays,
// when non-negative, replaces the default window of kind.
func RequiresRefresh(kind entities.EntityKind, lastSync *time.Time, customDays *int, now time.Time) bool {
	if lastSync == nil || lastSync.IsZero() {
		return true
	}
	if customDays != nil && *customDays >= 0 {
		return !lastSync.After(now.AddDate(0, 0, -*customDays))
	}
	window := entities.CompanyFreshnessWindow
	if kind == entities.EntityKindContact {
		window = ContactRefreshAfter
	}
	return !lastSync.After(now.Add(-window))
}
