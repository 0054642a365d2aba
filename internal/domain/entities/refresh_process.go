package entities

import (
	"time"
)

// EntityKind identifies which profile a refresh process belongs to
type EntityKind string

const (
	EntityKindCompany EntityKind = "company"
	EntityKindContact EntityKind = "contact"
)

// FreshnessWindow is the age after which the kind's profile data is stale
func (k EntityKind) FreshnessWindow() time.Duration {
	if k == EntityKindContact {
		return ContactFreshnessWindow
	}
	return CompanyFreshnessWindow
}

// ProgressStatus is the status of one requested attribute, a progress group
// or a whole refresh process
type ProgressStatus string

const (
	ProgressNotRequired ProgressStatus = "not_required"
	ProgressNotStarted  ProgressStatus = "not_started"
	ProgressInProgress  ProgressStatus = "in_progress"
	ProgressCompleted   ProgressStatus = "completed"
	ProgressWrong       ProgressStatus = "wrong"
)

// SearchStateProcessed is the terminal search_state of a refresh process
const SearchStateProcessed = "processed"

// RequestedAttribute is one attribute a refresh process was asked to fetch
type RequestedAttribute struct {
	Name   string         `json:"name"`
	Status ProgressStatus `json:"status"`
}

// RefreshProcess is an asynchronous attribute refresh for one entity
type RefreshProcess struct {
	ID                  int64                `json:"id" db:"id"`
	EntityKind          EntityKind           `json:"entity_kind"`
	EntityID            int64                `json:"entity_id"`
	SearchState         string               `json:"search_state" db:"search_state"`
	RequestedAttributes []RequestedAttribute `json:"requested_attributes" db:"requested_attributes"`
	BadData             bool                 `json:"bad_data" db:"bad_data"` // parent request built on erroneous input
	CreatedAt           time.Time            `json:"created_at" db:"created_at"`
}

// Running reports whether the process has not reached its terminal state
func (p *RefreshProcess) Running() bool {
	return p.SearchState != SearchStateProcessed
}

// Attribute returns the requested attribute with the given name
func (p *RefreshProcess) Attribute(name string) (RequestedAttribute, bool) {
	for _, attr := range p.RequestedAttributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return RequestedAttribute{}, false
}

// GroupStatus is the reduced status of one named progress group
type GroupStatus struct {
	Name   string         `json:"name"`
	Status ProgressStatus `json:"status"`
}

// RunningProcessData summarizes the currently running refresh of an entity
type RunningProcessData struct {
	ProgressStatuses []GroupStatus  `json:"progress_statuses"`
	Status           ProgressStatus `json:"status"`
	StartedTime      time.Time      `json:"started_time"`
}
