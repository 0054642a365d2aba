package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/crmdataplatform/internal/domain/entities"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

const (
	attrWatchlistedUsers = "watchlisted_users"
	attrLastSync         = "li_updated_at"
	attrEmployeeRange    = "employee_range"
	attrContactsCount    = "contacts_count_"
)

// ResultAssembler shapes raw index hits into API records
type ResultAssembler struct{}

// NewResultAssembler creates a new result assembler
func NewResultAssembler() *ResultAssembler {
	return &ResultAssembler{}
}

// AssembleCompanies derives is_watchlisted for userID, is_fresh against the
// 90 day window and contacts_count for isCurrent, then drops the internal
// fields they were derived from. A nil isCurrent selects the unfiltered count.
func (a *ResultAssembler) AssembleCompanies(hits []repositories.SearchHit, userID int64, isCurrent *bool, now time.Time) ([]entities.CompanyResult, error) {
	out := make([]entities.CompanyResult, 0, len(hits))
	for _, hit := range hits {
		attrs, id, err := decodeHit(hit)
		if err != nil {
			return nil, err
		}

		result := entities.CompanyResult{
			ID:            id,
			IsWatchlisted: takeWatchlisted(attrs, userID),
			IsFresh:       isFresh(attrs, entities.CompanyFreshnessWindow, now),
			ContactsCount: takeContactsCount(attrs, isCurrent),
		}
		if label := employeeRange(attrs); label != "" {
			result.EmployeeRange = label
			delete(attrs, attrEmployeeRange)
		}
		result.Attributes = attrs
		out = append(out, result)
	}
	return out, nil
}

// AssembleContacts derives is_watchlisted and is_fresh (4 week window)
func (a *ResultAssembler) AssembleContacts(hits []repositories.SearchHit, userID int64, now time.Time) ([]entities.ContactResult, error) {
	out := make([]entities.ContactResult, 0, len(hits))
	for _, hit := range hits {
		attrs, id, err := decodeHit(hit)
		if err != nil {
			return nil, err
		}
		out = append(out, entities.ContactResult{
			ID:            id,
			IsWatchlisted: takeWatchlisted(attrs, userID),
			IsFresh:       isFresh(attrs, entities.ContactFreshnessWindow, now),
			Attributes:    attrs,
		})
	}
	return out, nil
}

func decodeHit(hit repositories.SearchHit) (map[string]json.RawMessage, int64, error) {
	attrs := map[string]json.RawMessage{}
	if len(hit.Source) > 0 {
		if err := json.Unmarshal(hit.Source, &attrs); err != nil {
			return nil, 0, apperrors.NewInternalError("failed to decode search hit "+hit.ID, err)
		}
	}

	var id int64
	if raw, ok := attrs["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, 0, apperrors.NewInternalError("invalid id in search hit "+hit.ID, err)
		}
		delete(attrs, "id")
	} else if hit.ID != "" {
		parsed, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, 0, apperrors.NewInternalError("invalid search hit id "+hit.ID, err)
		}
		id = parsed
	}
	return attrs, id, nil
}

// takeWatchlisted reports whether userID is in watchlisted_users and removes
// the list
func takeWatchlisted(attrs map[string]json.RawMessage, userID int64) bool {
	raw, ok := attrs[attrWatchlistedUsers]
	if !ok {
		return false
	}
	delete(attrs, attrWatchlistedUsers)

	var users []int64
	if err := json.Unmarshal(raw, &users); err != nil {
		return false
	}
	for _, u := range users {
		if u == userID {
			return true
		}
	}
	return false
}

func isFresh(attrs map[string]json.RawMessage, window time.Duration, now time.Time) bool {
	raw, ok := attrs[attrLastSync]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return false
	}
	synced, ok := parseSyncTime(s)
	if !ok {
		return false
	}
	return now.Sub(synced) < window
}

func parseSyncTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// takeContactsCount selects contacts_count_, contacts_count_true or
// contacts_count_false and removes all three
func takeContactsCount(attrs map[string]json.RawMessage, isCurrent *bool) *int64 {
	key := attrContactsCount
	if isCurrent != nil {
		key += strconv.FormatBool(*isCurrent)
	}
	count := optionalInt(attrs, key)
	for _, suffix := range []string{"", "true", "false"} {
		delete(attrs, attrContactsCount+suffix)
	}
	return count
}

// employeeRange keeps a stored label, otherwise derives one from
// employee_low/employee_high or the raw employee count
func employeeRange(attrs map[string]json.RawMessage) string {
	var label string
	if raw, ok := attrs[attrEmployeeRange]; ok {
		if err := json.Unmarshal(raw, &label); err != nil {
			assemblerLogger().Debug().Err(err).Str("field", attrEmployeeRange).
				Msg("stored employee range is not a string, deriving it")
		}
		if label != "" {
			return label
		}
	}

	low, high := optionalInt(attrs, "employee_low"), optionalInt(attrs, "employee_high")
	if low == nil && high == nil {
		low, high = entities.ClassifyEmployees(optionalInt(attrs, "employees_linkedin"))
	}
	return entities.EmployeeRangeLabel(low, high)
}

func optionalInt(attrs map[string]json.RawMessage, key string) *int64 {
	raw, ok := attrs[key]
	if !ok {
		return nil
	}
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil {
		assemblerLogger().Debug().Err(err).Str("field", key).Msg("ignoring non-numeric stored value")
		return nil
	}
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

func assemblerLogger() *zerolog.Logger {
	return observability.ComponentLogger(context.Background(), "result_assembler")
}
