package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// ContactFetcher loads contacts by id for a user
type ContactFetcher interface {
	ByIDs(ctx context.Context, ids []int64, userID int64) (*entities.ContactPage, error)
}

// ContactHandler handles contact HTTP requests
type ContactHandler struct {
	contacts ContactFetcher
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contacts ContactFetcher) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// ByIDs handles POST /api/v0/contacts/by-ids
func (h *ContactHandler) ByIDs(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	var req byIDsRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	page, err := h.contacts.ByIDs(r.Context(), req.IDs, user)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}
