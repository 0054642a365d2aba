package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
)

func TestReduceStatuses(t *testing.T) {
	const (
		nr = entities.ProgressNotRequired
		ns = entities.ProgressNotStarted
		ip = entities.ProgressInProgress
		c  = entities.ProgressCompleted
		w  = entities.ProgressWrong
	)

	tests := []struct {
		name     string
		statuses []entities.ProgressStatus
		want     entities.ProgressStatus
	}{
		{name: "empty", statuses: nil, want: nr},
		{name: "all not required", statuses: []entities.ProgressStatus{nr, nr}, want: nr},
		{name: "all completed", statuses: []entities.ProgressStatus{c, c, c}, want: c},
		{name: "completed and not started", statuses: []entities.ProgressStatus{c, ns}, want: ip},
		{name: "completed and in progress", statuses: []entities.ProgressStatus{c, ip, nr}, want: ip},
		{name: "completed and not required", statuses: []entities.ProgressStatus{c, nr}, want: c},
		{name: "completed and wrong", statuses: []entities.ProgressStatus{c, w}, want: c},
		{name: "in progress without completed", statuses: []entities.ProgressStatus{ip, ns, nr}, want: ip},
		{name: "not started and not required", statuses: []entities.ProgressStatus{ns, nr}, want: ns},
		{name: "only wrong", statuses: []entities.ProgressStatus{w}, want: ns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReduceStatuses(tt.statuses))
		})
	}
}

func TestStatusForAttribute(t *testing.T) {
	process := &entities.RefreshProcess{
		RequestedAttributes: []entities.RequestedAttribute{
			{Name: "email", Status: entities.ProgressNotStarted},
			{Name: "direct_phone", Status: entities.ProgressCompleted},
		},
	}

	assert.Equal(t, entities.ProgressNotStarted, StatusForAttribute(process, "email"))
	assert.Equal(t, entities.ProgressNotRequired, StatusForAttribute(process, "mobile_number"))

	process.BadData = true
	assert.Equal(t, entities.ProgressWrong, StatusForAttribute(process, "email"))
	assert.Equal(t, entities.ProgressCompleted, StatusForAttribute(process, "direct_phone"))
}

func TestProgressAggregator_Aggregate(t *testing.T) {
	// Arrange
	started := time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC)
	process := &entities.RefreshProcess{
		ID:          11,
		SearchState: "searching",
		CreatedAt:   started,
		RequestedAttributes: []entities.RequestedAttribute{
			{Name: "linkedin_data", Status: entities.ProgressCompleted},
			{Name: "email", Status: entities.ProgressNotStarted},
		},
	}
	schema := []ProgressGroup{
		{Name: "profile", Attributes: []string{"linkedin_data", "positions"}},
		{Name: "email", Attributes: []string{"email", "personal_email"}},
		{Name: "phone", Attributes: []string{"direct_phone"}},
	}

	// Act
	data := NewProgressAggregator().Aggregate(process, schema)

	// Assert
	require.NotNil(t, data)
	assert.Equal(t, []entities.GroupStatus{
		{Name: "profile", Status: entities.ProgressCompleted},
		{Name: "email", Status: entities.ProgressNotStarted},
		{Name: "phone", Status: entities.ProgressNotRequired},
	}, data.ProgressStatuses)
	assert.Equal(t, entities.ProgressInProgress, data.Status)
	assert.Equal(t, started, data.StartedTime)
}

func TestProgressAggregator_NilProcess(t *testing.T) {
	assert.Nil(t, NewProgressAggregator().Aggregate(nil, CompanyProgressSchema))
}

func TestProgressSchemaFor(t *testing.T) {
	assert.Equal(t, CompanyProgressSchema, ProgressSchemaFor(entities.EntityKindCompany))
	assert.Equal(t, ContactProgressSchema, ProgressSchemaFor(entities.EntityKindContact))
}
