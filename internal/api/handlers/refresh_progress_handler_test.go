package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/crmdataplatform/internal/api/handlers"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

type MockProgressReader struct {
	mock.Mock
}

func (m *MockProgressReader) RunningProcess(ctx context.Context, kind entities.EntityKind, entityID int64) *entities.RunningProcessData {
	args := m.Called(ctx, kind, entityID)
	data, _ := args.Get(0).(*entities.RunningProcessData)
	return data
}

func (m *MockProgressReader) AttributeProgress(ctx context.Context, kind entities.EntityKind, entityID int64, attribute string) entities.ProgressStatus {
	args := m.Called(ctx, kind, entityID, attribute)
	return args.Get(0).(entities.ProgressStatus)
}

func (m *MockProgressReader) LastRefreshTime(ctx context.Context, kind entities.EntityKind, entityID int64) *time.Time {
	args := m.Called(ctx, kind, entityID)
	at, _ := args.Get(0).(*time.Time)
	return at
}

func newProgressRequest(path, id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.SetPathValue("id", id)
	return req
}

func TestRefreshProgressHandler_CompanyProgress(t *testing.T) {
	// Arrange
	reader := new(MockProgressReader)
	handler := handlers.NewRefreshProgressHandler(reader)
	started := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	reader.On("RunningProcess", mock.Anything, entities.EntityKindCompany, int64(42)).Return(&entities.RunningProcessData{
		ProgressStatuses: []entities.GroupStatus{{Name: "company_profile", Status: entities.ProgressInProgress}},
		Status:           entities.ProgressInProgress,
		StartedTime:      started,
	})
	reader.On("LastRefreshTime", mock.Anything, entities.EntityKindCompany, int64(42)).Return(nil)

	// Act
	rec := httptest.NewRecorder()
	handler.CompanyProgress(rec, newProgressRequest("/api/v0/companies/42/refresh-progress", "42"))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"running_process": {
			"progress_statuses": [{"name": "company_profile", "status": "in_progress"}],
			"status": "in_progress",
			"started_time": "2024-06-01T09:00:00Z"
		},
		"last_refreshed_at": null
	}`, rec.Body.String())
	reader.AssertExpectations(t)
}

func TestRefreshProgressHandler_ContactProgress(t *testing.T) {
	reader := new(MockProgressReader)
	handler := handlers.NewRefreshProgressHandler(reader)
	reader.On("RunningProcess", mock.Anything, entities.EntityKindContact, int64(5)).Return(nil)
	reader.On("LastRefreshTime", mock.Anything, entities.EntityKindContact, int64(5)).Return(nil)
	reader.On("AttributeProgress", mock.Anything, entities.EntityKindContact, int64(5), "personal_email").Return(entities.ProgressNotRequired)

	rec := httptest.NewRecorder()
	handler.ContactProgress(rec, newProgressRequest("/api/v0/contacts/5/refresh-progress", "5"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"running_process":null,"last_refreshed_at":null,"personal_email_status":"not_required"}`, rec.Body.String())
	reader.AssertExpectations(t)
}

func TestRefreshProgressHandler_InvalidID(t *testing.T) {
	handler := handlers.NewRefreshProgressHandler(new(MockProgressReader))

	rec := httptest.NewRecorder()
	handler.CompanyProgress(rec, newProgressRequest("/api/v0/companies/abc/refresh-progress", "abc"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
