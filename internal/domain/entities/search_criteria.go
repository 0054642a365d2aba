package entities

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FacetValues holds a categorical facet given as ids, names or both
type FacetValues struct {
	IDs   []int64  `json:"ids,omitempty"`
	Names []string `json:"names,omitempty"`

	// Supplied marks a facet given as an empty list, which matches nothing
	Supplied bool `json:"-"`
}

// Empty reports whether neither ids nor names were supplied
func (f FacetValues) Empty() bool {
	return len(f.IDs) == 0 && len(f.Names) == 0
}

// Present reports whether the facet takes part in the query
func (f FacetValues) Present() bool {
	return f.Supplied || !f.Empty()
}

// Range is a numeric range with independently optional bounds
type Range struct {
	Low  *int64 `json:"low,omitempty"`
	High *int64 `json:"high,omitempty"`
}

// VerifiedAt is either an absolute time or a number of days before the
// query is built. At wins when both are set.
type VerifiedAt struct {
	At      *time.Time `json:"at,omitempty"`
	DaysAgo *int       `json:"days_ago,omitempty"`
}

// Resolve returns the absolute threshold relative to now
func (v VerifiedAt) Resolve(now time.Time) (time.Time, bool) {
	switch {
	case v.At != nil:
		return *v.At, true
	case v.DaysAgo != nil:
		return now.AddDate(0, 0, -*v.DaysAgo), true
	default:
		return time.Time{}, false
	}
}

// Location is one geo filter entry. Present ids are AND'ed.
type Location struct {
	CityID    *int64 `json:"city_id,omitempty"`
	StateID   *int64 `json:"state_id,omitempty"`
	CountryID *int64 `json:"country_id,omitempty"`
}

// Empty reports whether no id is set
func (l Location) Empty() bool {
	return l.CityID == nil && l.StateID == nil && l.CountryID == nil
}

// SearchCriteria is the caller-supplied company search input. A nil field
// means the facet was not supplied; a non-nil empty list, including one
// given as null, is a filter that matches nothing.
type SearchCriteria struct {
	Technologies        FacetValues `json:"technologies"`
	Categories          FacetValues `json:"categories"`
	Rankings            FacetValues `json:"rankings"`
	CompanyTypes        []string    `json:"company_types,omitempty"`
	Status              []string    `json:"status,omitempty"`
	Industries          []string    `json:"industries,omitempty"`
	ZipCodes            []string    `json:"zip_code,omitempty"`
	LastUpdated         *time.Time  `json:"last_updated,omitempty"`
	CustomEmployeeRange *Range      `json:"custom_employee_range,omitempty"`
	Employee            *Range      `json:"employee,omitempty"`
	Revenue             *Range      `json:"revenue,omitempty"`
	VerifiedAt          *VerifiedAt `json:"verified_at,omitempty"`
	Locations           []Location  `json:"locations,omitempty"`
	IndustryExclusions  []string    `json:"industry_exclusions,omitempty"`
	CategoryExclusions  []string    `json:"category_exclusions,omitempty"`
	Subsidiary          *bool       `json:"subsidiary,omitempty"`
	// SubsidiarySpecified is set when the subsidiary key was present, even
	// with a null or unparseable value
	SubsidiarySpecified bool    `json:"-"`
	IDs                 []int64 `json:"ids,omitempty"`
}

// UnmarshalJSON decodes the loosely typed criteria document saved by clients.
// Unknown keys are ignored and a facet whose value has the wrong shape is
// treated as absent.
func (c *SearchCriteria) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*c = SearchCriteria{}
	c.Technologies = decodeFacet(raw["technologies"])
	c.Categories = decodeFacet(raw["categories"])
	c.Rankings = decodeFacet(raw["rankings"])
	c.CompanyTypes = decodeStrings(raw["company_types"])
	c.Status = decodeStrings(raw["status"])
	c.Industries = decodeStrings(raw["industries"])
	c.ZipCodes = decodeStrings(raw["zip_code"])
	c.LastUpdated = decodeTime(raw["last_updated"])
	c.CustomEmployeeRange = decodeRange(raw["custom_employee_range"])
	c.Employee = decodeRange(raw["employee"])
	c.Revenue = decodeRange(raw["revenue"])
	c.VerifiedAt = decodeVerifiedAt(raw["verified_at"])
	c.Locations = decodeLocations(raw["locations"])
	c.IndustryExclusions = decodeStrings(raw["industry_exclusions"])
	c.CategoryExclusions = decodeStrings(raw["category_exclusions"])
	c.IDs = decodeInts(raw["ids"])

	if v, ok := raw["subsidiary"]; ok {
		c.SubsidiarySpecified = true
		if b, ok := decodeBool(v); ok {
			c.Subsidiary = &b
		}
	}

	return nil
}

func decodeAny(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// isNull reports an explicit JSON null, which is distinct from a missing key
func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// decodeFacet accepts a list mixing ids and names, or {"ids": [...], "names": [...]}.
// An explicit null is a supplied facet with no values.
func decodeFacet(raw json.RawMessage) FacetValues {
	var f FacetValues
	if isNull(raw) {
		f.Supplied = true
		return f
	}
	v, ok := decodeAny(raw)
	if !ok {
		return f
	}
	switch t := v.(type) {
	case []any:
		f.Supplied = true
		for _, item := range t {
			switch x := item.(type) {
			case json.Number:
				if id, err := x.Int64(); err == nil {
					f.IDs = append(f.IDs, id)
				}
			case string:
				if x = strings.TrimSpace(x); x != "" {
					f.Names = append(f.Names, x)
				}
			}
		}
	case map[string]any:
		_, hasIDs := t["ids"]
		_, hasNames := t["names"]
		f.Supplied = hasIDs || hasNames
		if ids, ok := t["ids"].([]any); ok {
			for _, item := range ids {
				if id, ok := toInt64(item); ok {
					f.IDs = append(f.IDs, id)
				}
			}
		}
		if names, ok := t["names"].([]any); ok {
			for _, item := range names {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					f.Names = append(f.Names, strings.TrimSpace(s))
				}
			}
		}
	}
	return f
}

func decodeStrings(raw json.RawMessage) []string {
	if isNull(raw) {
		return []string{}
	}
	v, ok := decodeAny(raw)
	if !ok {
		return nil
	}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case string, json.Number:
		items = []any{t}
	default:
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch x := item.(type) {
		case string:
			if x != "" {
				out = append(out, x)
			}
		case json.Number:
			out = append(out, x.String())
		}
	}
	return out
}

func decodeInts(raw json.RawMessage) []int64 {
	if isNull(raw) {
		return []int64{}
	}
	v, ok := decodeAny(raw)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if id, ok := toInt64(item); ok {
			out = append(out, id)
		}
	}
	return out
}

func decodeRange(raw json.RawMessage) *Range {
	v, ok := decodeAny(raw)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	r := &Range{}
	if low, ok := toInt64(m["low"]); ok {
		r.Low = &low
	}
	if high, ok := toInt64(m["high"]); ok {
		r.High = &high
	}
	if r.Low == nil && r.High == nil {
		return nil
	}
	return r
}

func decodeVerifiedAt(raw json.RawMessage) *VerifiedAt {
	v, ok := decodeAny(raw)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case json.Number:
		days, err := t.Int64()
		if err != nil {
			return nil
		}
		d := int(days)
		return &VerifiedAt{DaysAgo: &d}
	case string:
		if at, ok := parseTime(t); ok {
			return &VerifiedAt{At: &at}
		}
	case map[string]any:
		out := &VerifiedAt{}
		if s, ok := t["at"].(string); ok {
			if at, ok := parseTime(s); ok {
				out.At = &at
			}
		}
		if days, ok := toInt64(t["days_ago"]); ok {
			d := int(days)
			out.DaysAgo = &d
		}
		if out.At != nil || out.DaysAgo != nil {
			return out
		}
	}
	return nil
}

func decodeLocations(raw json.RawMessage) []Location {
	v, ok := decodeAny(raw)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []Location
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var loc Location
		if id, ok := toInt64(m["city_id"]); ok {
			loc.CityID = &id
		}
		if id, ok := toInt64(m["state_id"]); ok {
			loc.StateID = &id
		}
		if id, ok := toInt64(m["country_id"]); ok {
			loc.CountryID = &id
		}
		if !loc.Empty() {
			out = append(out, loc)
		}
	}
	return out
}

func decodeTime(raw json.RawMessage) *time.Time {
	v, ok := decodeAny(raw)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, ok := parseTime(s)
	if !ok {
		return nil
	}
	return &t
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	v, ok := decodeAny(raw)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	}
	return false, false
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	case float64:
		return int64(t), true
	}
	return 0, false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
