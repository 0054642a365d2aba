package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/crmdataplatform/internal/api/handlers"
	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

// scriptedProgress returns one running state per poll, then nothing
type scriptedProgress struct {
	mu    sync.Mutex
	steps []*entities.RunningProcessData
	kinds []entities.EntityKind
}

func (s *scriptedProgress) RunningProcess(_ context.Context, kind entities.EntityKind, _ int64) *entities.RunningProcessData {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	if len(s.steps) == 0 {
		return nil
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next
}

func (s *scriptedProgress) AttributeProgress(context.Context, entities.EntityKind, int64, string) entities.ProgressStatus {
	return entities.ProgressNotRequired
}

func (s *scriptedProgress) LastRefreshTime(context.Context, entities.EntityKind, int64) *time.Time {
	at := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	return &at
}

func running(status entities.ProgressStatus) *entities.RunningProcessData {
	return &entities.RunningProcessData{
		ProgressStatuses: []entities.GroupStatus{{Name: "company_profile", Status: status}},
		Status:           status,
		StartedTime:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProgressStreamHandler_StreamsChangesUntilDone(t *testing.T) {
	// Arrange
	reader := &scriptedProgress{steps: []*entities.RunningProcessData{
		running(entities.ProgressNotStarted),
		running(entities.ProgressNotStarted),
		running(entities.ProgressInProgress),
	}}
	handler := handlers.NewProgressStreamHandler(reader, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/companies/42/refresh-progress/stream", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()

	// Act
	handler.StreamCompanyProgress(rec, req)

	// Assert
	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(body, "event: progress"))
	assert.Contains(t, body, `"status":"not_started"`)
	assert.Contains(t, body, `"status":"in_progress"`)
	assert.True(t, strings.HasSuffix(body, "event: done\ndata: {\"last_refreshed_at\":\"2024-06-02T00:00:00Z\"}\n\n"))
	assert.Len(t, reader.kinds, 4)
	assert.Equal(t, entities.EntityKindCompany, reader.kinds[0])
}

func TestProgressStreamHandler_StopsWhenClientLeaves(t *testing.T) {
	steps := make([]*entities.RunningProcessData, 1000)
	for i := range steps {
		steps[i] = running(entities.ProgressInProgress)
	}
	handler := handlers.NewProgressStreamHandler(&scriptedProgress{steps: steps}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v0/contacts/5/refresh-progress/stream", nil).WithContext(ctx)
	req.SetPathValue("id", "5")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamContactProgress(rec, req)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "stream did not stop after the client left")
	}
}
