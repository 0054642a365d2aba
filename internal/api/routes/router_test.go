package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/crmdataplatform/internal/api/handlers"
	"github.com/zatekoja/crmdataplatform/internal/api/routes"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	"github.com/zatekoja/crmdataplatform/internal/query/services"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, entities.SearchCriteria, int, int, services.SearchOptions) (*entities.CompanyPage, error) {
	return &entities.CompanyPage{Companies: []entities.CompanyResult{}}, nil
}

func (stubSearcher) OpenScroll(context.Context, entities.SearchCriteria, int, services.SearchOptions) (*entities.CompanyPage, error) {
	return &entities.CompanyPage{Companies: []entities.CompanyResult{}, ScrollID: "s"}, nil
}

func (stubSearcher) ContinueScroll(_ context.Context, cursor dsl.Cursor, _ services.SearchOptions) (*entities.CompanyPage, error) {
	return nil, apperrors.NewCursorExpiredError(string(cursor))
}

func (stubSearcher) ByIDs(context.Context, []int64, services.SearchOptions) (*entities.CompanyPage, error) {
	return &entities.CompanyPage{Companies: []entities.CompanyResult{}}, nil
}

func (stubSearcher) Autocomplete(context.Context, string, *int64, int, int, services.SearchOptions) (*entities.CompanyPage, error) {
	return &entities.CompanyPage{Companies: []entities.CompanyResult{}}, nil
}

func (stubSearcher) IndustryAutocomplete(context.Context, string, int) ([]string, error) {
	return []string{"software"}, nil
}

func (stubSearcher) DefaultIndustries(context.Context) ([]string, error) {
	return []string{}, nil
}

type stubContacts struct{}

func (stubContacts) ByIDs(context.Context, []int64, int64) (*entities.ContactPage, error) {
	return &entities.ContactPage{Contacts: []entities.ContactResult{}}, nil
}

type stubProgress struct{}

func (stubProgress) RunningProcess(context.Context, entities.EntityKind, int64) *entities.RunningProcessData {
	return nil
}

func (stubProgress) AttributeProgress(context.Context, entities.EntityKind, int64, string) entities.ProgressStatus {
	return entities.ProgressNotRequired
}

func (stubProgress) LastRefreshTime(context.Context, entities.EntityKind, int64) *time.Time {
	return nil
}

func newTestServer(t *testing.T, origins []string) *httptest.Server {
	t.Helper()
	router := routes.NewRouter(
		handlers.NewCompanyHandler(stubSearcher{}),
		handlers.NewContactHandler(stubContacts{}),
		handlers.NewRefreshProgressHandler(stubProgress{}),
		handlers.NewProgressStreamHandler(stubProgress{}, time.Millisecond),
		origins,
		nil,
	)
	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestServer(t, []string{"*"})

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{method: http.MethodGet, path: "/health", status: http.StatusOK},
		{method: http.MethodPost, path: "/api/v0/companies/search", body: `{}`, status: http.StatusOK},
		{method: http.MethodPost, path: "/api/v0/companies/scroll", body: `{"criteria":{}}`, status: http.StatusOK},
		{method: http.MethodPost, path: "/api/v0/companies/scroll", body: `{"scroll_id":"old"}`, status: http.StatusGone},
		{method: http.MethodPost, path: "/api/v0/companies/by-ids", body: `{"ids":[1]}`, status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/companies/autocomplete?q=ac", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/industries", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/industries/autocomplete?q=soft", status: http.StatusOK},
		{method: http.MethodPost, path: "/api/v0/contacts/by-ids", body: `{"ids":[2]}`, status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/companies/42/refresh-progress", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/contacts/7/refresh-progress", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/contacts/7/refresh-progress/stream", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v0/companies/search", status: http.StatusMethodNotAllowed},
		{method: http.MethodGet, path: "/api/v0/unknown", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t, []string{"https://app.example.com"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v0/companies/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}
