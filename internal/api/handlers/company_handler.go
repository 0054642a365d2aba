package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	"github.com/zatekoja/crmdataplatform/internal/query/services"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

const (
	defaultSearchSize       = 25
	defaultScrollSize       = 100
	defaultAutocompleteSize = 10
)

// CompanySearcher is the company search surface used by the handler
type CompanySearcher interface {
	Search(ctx context.Context, criteria entities.SearchCriteria, from, size int, opts services.SearchOptions) (*entities.CompanyPage, error)
	OpenScroll(ctx context.Context, criteria entities.SearchCriteria, size int, opts services.SearchOptions) (*entities.CompanyPage, error)
	ContinueScroll(ctx context.Context, cursor dsl.Cursor, opts services.SearchOptions) (*entities.CompanyPage, error)
	ByIDs(ctx context.Context, ids []int64, opts services.SearchOptions) (*entities.CompanyPage, error)
	Autocomplete(ctx context.Context, prefix string, employeeLow *int64, from, size int, opts services.SearchOptions) (*entities.CompanyPage, error)
	IndustryAutocomplete(ctx context.Context, prefix string, limit int) ([]string, error)
	DefaultIndustries(ctx context.Context) ([]string, error)
}

// CompanyHandler handles company search HTTP requests
type CompanyHandler struct {
	search CompanySearcher
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(search CompanySearcher) *CompanyHandler {
	return &CompanyHandler{search: search}
}

type searchRequest struct {
	Criteria     entities.SearchCriteria `json:"criteria"`
	From         int                     `json:"from"`
	Size         *int                    `json:"size"`
	IsCurrent    *bool                   `json:"is_current"`
	SelectFields []string                `json:"select_fields"`
}

type scrollRequest struct {
	Criteria  entities.SearchCriteria `json:"criteria"`
	Size      *int                    `json:"size"`
	ScrollID  string                  `json:"scroll_id"`
	IsCurrent *bool                   `json:"is_current"`
}

type byIDsRequest struct {
	IDs []int64 `json:"ids"`
}

// Search handles POST /api/v0/companies/search
func (h *CompanyHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	size := defaultSearchSize
	if req.Size != nil {
		size = *req.Size
	}
	opts := services.SearchOptions{UserID: user, IsCurrent: req.IsCurrent, SelectFields: req.SelectFields}

	page, err := h.search.Search(r.Context(), req.Criteria, req.From, size, opts)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// Scroll handles POST /api/v0/companies/scroll. A body with scroll_id
// continues that scroll; otherwise a new scroll is opened for criteria.
func (h *CompanyHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	var req scrollRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	opts := services.SearchOptions{UserID: user, IsCurrent: req.IsCurrent}

	var page *entities.CompanyPage
	if req.ScrollID != "" {
		page, err = h.search.ContinueScroll(r.Context(), dsl.Cursor(req.ScrollID), opts)
	} else {
		size := defaultScrollSize
		if req.Size != nil {
			size = *req.Size
		}
		page, err = h.search.OpenScroll(r.Context(), req.Criteria, size, opts)
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// ByIDs handles POST /api/v0/companies/by-ids
func (h *CompanyHandler) ByIDs(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.search.ByIDs(r.Context(), req.IDs, services.SearchOptions{UserID: user})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// Autocomplete handles GET /api/v0/companies/autocomplete?q=
func (h *CompanyHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		respondWithError(w, http.StatusBadRequest, "q is required")
		return
	}
	from, err := queryInt(r, "from", 0)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", defaultAutocompleteSize)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var employeeLow *int64
	if raw := r.URL.Query().Get("employee_low"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithAppError(w, r, apperrors.NewValidationError("employee_low must be an integer"))
			return
		}
		employeeLow = &v
	}

	page, err := h.search.Autocomplete(r.Context(), prefix, employeeLow, from, size, services.SearchOptions{UserID: user})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

type industriesResponse struct {
	Industries []string `json:"industries"`
}

// IndustryAutocomplete handles GET /api/v0/industries/autocomplete?q=
func (h *CompanyHandler) IndustryAutocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		respondWithError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := queryInt(r, "size", defaultAutocompleteSize)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	industries, err := h.search.IndustryAutocomplete(r.Context(), prefix, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, industriesResponse{Industries: industries})
}

// DefaultIndustries handles GET /api/v0/industries
func (h *CompanyHandler) DefaultIndustries(w http.ResponseWriter, r *http.Request) {
	industries, err := h.search.DefaultIndustries(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, industriesResponse{Industries: industries})
}
