package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

// refreshTables names the refresh table of one entity kind and the request
// table holding its bad_data flag
type refreshTables struct {
	refreshes     string
	requests      string
	entityColumn  string
	requestColumn string
}

var tablesByKind = map[entities.EntityKind]refreshTables{
	entities.EntityKindCompany: {
		refreshes:     "account_profile_refreshes",
		requests:      "account_profile_refresh_requests",
		entityColumn:  "company_id",
		requestColumn: "account_profile_refresh_request_id",
	},
	entities.EntityKindContact: {
		refreshes:     "contact_profile_refreshes",
		requests:      "contact_profile_refresh_requests",
		entityColumn:  "contact_id",
		requestColumn: "contact_profile_refresh_request_id",
	},
}

// RefreshProcessAdapter implements the RefreshProcessRepository interface
type RefreshProcessAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewRefreshProcessAdapter creates a new refresh process adapter
func NewRefreshProcessAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.RefreshProcessRepository {
	return &RefreshProcessAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// GetRunning returns the newest process that has not been processed
func (a *RefreshProcessAdapter) GetRunning(ctx context.Context, kind entities.EntityKind, entityID int64) (*entities.RefreshProcess, error) {
	return a.latest(ctx, "refresh_process.get_running", kind, entityID, true)
}

// GetLatest returns the newest process in any state
func (a *RefreshProcessAdapter) GetLatest(ctx context.Context, kind entities.EntityKind, entityID int64) (*entities.RefreshProcess, error) {
	return a.latest(ctx, "refresh_process.get_latest", kind, entityID, false)
}

func (a *RefreshProcessAdapter) latest(ctx context.Context, op string, kind entities.EntityKind, entityID int64, runningOnly bool) (*entities.RefreshProcess, error) {
	tables, ok := tablesByKind[kind]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity kind %q", kind))
	}

	ds := a.db.From(goqu.T(tables.refreshes).As("r")).
		LeftJoin(
			goqu.T(tables.requests).As("q"),
			goqu.On(goqu.I("q.id").Eq(goqu.I("r."+tables.requestColumn))),
		).
		Select(
			goqu.I("r.id"),
			goqu.I("r.search_state"),
			goqu.I("r.requested_attributes"),
			goqu.COALESCE(goqu.I("q.bad_data"), false).As("bad_data"),
			goqu.I("r.created_at"),
		).
		Where(goqu.I("r." + tables.entityColumn).Eq(entityID)).
		Order(goqu.I("r.id").Desc()).
		Limit(1)
	if runningOnly {
		ds = ds.Where(goqu.I("r.search_state").Neq(entities.SearchStateProcessed))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	process := &entities.RefreshProcess{EntityKind: kind, EntityID: entityID}
	var attrs []byte
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&process.ID,
		&process.SearchState,
		&attrs,
		&process.BadData,
		&process.CreatedAt,
	)
	observability.RecordDBMetric(ctx, a.metrics, op, time.Since(start))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyDBError("failed to get refresh process", err)
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &process.RequestedAttributes); err != nil {
			return nil, apperrors.NewInternalError("failed to decode requested attributes", err)
		}
	}
	if process.RequestedAttributes == nil {
		process.RequestedAttributes = []entities.RequestedAttribute{}
	}

	return process, nil
}

// classifyDBError marks connection and availability failures retryable
func classifyDBError(message string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return apperrors.NewUnavailableError(message, err)
		}
		return apperrors.NewInternalError(message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.NewUnavailableError(message, err)
	}
	return apperrors.NewInternalError(message, err)
}
