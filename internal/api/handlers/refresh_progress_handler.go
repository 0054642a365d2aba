package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// ProgressReader reads enrichment progress for one entity
type ProgressReader interface {
	RunningProcess(ctx context.Context, kind entities.EntityKind, entityID int64) *entities.RunningProcessData
	AttributeProgress(ctx context.Context, kind entities.EntityKind, entityID int64, attribute string) entities.ProgressStatus
	LastRefreshTime(ctx context.Context, kind entities.EntityKind, entityID int64) *time.Time
}

// RefreshProgressHandler handles refresh progress HTTP requests
type RefreshProgressHandler struct {
	progress ProgressReader
}

// NewRefreshProgressHandler creates a new refresh progress handler
func NewRefreshProgressHandler(progress ProgressReader) *RefreshProgressHandler {
	return &RefreshProgressHandler{progress: progress}
}

type progressResponse struct {
	RunningProcess      *entities.RunningProcessData `json:"running_process"`
	LastRefreshedAt     *time.Time                   `json:"last_refreshed_at"`
	PersonalEmailStatus entities.ProgressStatus      `json:"personal_email_status,omitempty"`
}

// CompanyProgress handles GET /api/v0/companies/{id}/refresh-progress
func (h *RefreshProgressHandler) CompanyProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	ctx := r.Context()
	respondWithJSON(w, http.StatusOK, progressResponse{
		RunningProcess:  h.progress.RunningProcess(ctx, entities.EntityKindCompany, id),
		LastRefreshedAt: h.progress.LastRefreshTime(ctx, entities.EntityKindCompany, id),
	})
}

// ContactProgress handles GET /api/v0/contacts/{id}/refresh-progress
func (h *RefreshProgressHandler) ContactProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	ctx := r.Context()
	respondWithJSON(w, http.StatusOK, progressResponse{
		RunningProcess:      h.progress.RunningProcess(ctx, entities.EntityKindContact, id),
		LastRefreshedAt:     h.progress.LastRefreshTime(ctx, entities.EntityKindContact, id),
		PersonalEmailStatus: h.progress.AttributeProgress(ctx, entities.EntityKindContact, id, "personal_email"),
	})
}
