package entities

import (
	"encoding/json"
	"time"
)

// Freshness windows for enriched profile data
const (
	CompanyFreshnessWindow = 90 * 24 * time.Hour
	ContactFreshnessWindow = 4 * 7 * 24 * time.Hour
)

// CompanyResult is one company record shaped for API consumers. Attributes
// holds the remaining indexed source fields and is flattened on output.
type CompanyResult struct {
	ID            int64
	IsWatchlisted bool
	IsFresh       bool
	ContactsCount *int64
	EmployeeRange string
	Attributes    map[string]json.RawMessage
}

// MarshalJSON flattens Attributes next to the derived fields
func (r CompanyResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Attributes)+5)
	for k, v := range r.Attributes {
		out[k] = v
	}
	out["id"] = r.ID
	out["is_watchlisted"] = r.IsWatchlisted
	out["is_fresh"] = r.IsFresh
	out["contacts_count"] = r.ContactsCount
	if r.EmployeeRange != "" {
		out["employee_range"] = r.EmployeeRange
	}
	return json.Marshal(out)
}

// ContactResult is one contact record shaped for API consumers
type ContactResult struct {
	ID            int64
	IsWatchlisted bool
	IsFresh       bool
	Attributes    map[string]json.RawMessage
}

// MarshalJSON flattens Attributes next to the derived fields
func (r ContactResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Attributes)+3)
	for k, v := range r.Attributes {
		out[k] = v
	}
	out["id"] = r.ID
	out["is_watchlisted"] = r.IsWatchlisted
	out["is_fresh"] = r.IsFresh
	return json.Marshal(out)
}

// CompanyPage is one page of company search results. ScrollID is set only in
// scroll mode and is opaque to callers.
type CompanyPage struct {
	TotalResults int64           `json:"total_results"`
	Companies    []CompanyResult `json:"companies"`
	ScrollID     string          `json:"scroll_id,omitempty"`
}

// ContactPage is one page of contact search results
type ContactPage struct {
	TotalResults int64           `json:"total_results"`
	Contacts     []ContactResult `json:"contacts"`
	ScrollID     string          `json:"scroll_id,omitempty"`
}
