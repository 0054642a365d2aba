package dsl

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cursor is an opaque scroll token issued by the index engine or the scroll
// emulator. Callers pass it back unchanged and never inspect it.
type Cursor string

// Sort orders
const (
	Asc  = "asc"
	Desc = "desc"
)

// MissingLast sorts documents without the field after all others
const MissingLast = "_last"

// SortField is one sort key
type SortField struct {
	Field        string
	Order        string
	UnmappedType string
	Missing      string
}

// MarshalJSON renders {"field": {"order": ...}}
func (s SortField) MarshalJSON() ([]byte, error) {
	body := object{"order": s.Order}
	if s.UnmappedType != "" {
		body["unmapped_type"] = s.UnmappedType
	}
	if s.Missing != "" {
		body["missing"] = s.Missing
	}
	return json.Marshal(object{s.Field: body})
}

// SearchRequest is a search body. Source lists the stored fields to return;
// an empty Source returns the whole document.
type SearchRequest struct {
	Source         []string
	Sort           []SortField
	Query          Query
	From           *int
	Size           *int
	TrackTotalHits bool
	Aggs           []TermsAggregation
}

// MarshalJSON renders the request in index wire format
func (r SearchRequest) MarshalJSON() ([]byte, error) {
	body := object{}
	if len(r.Source) > 0 {
		body["_source"] = object{"includes": r.Source}
	}
	if len(r.Sort) > 0 {
		body["sort"] = r.Sort
	}
	if r.Query != nil {
		body["query"] = r.Query
	}
	if r.From != nil {
		body["from"] = *r.From
	}
	if r.Size != nil {
		body["size"] = *r.Size
	}
	if r.TrackTotalHits {
		body["track_total_hits"] = true
	}
	if len(r.Aggs) > 0 {
		body["aggs"] = marshalAggs(r.Aggs)
	}
	return json.Marshal(body)
}

// UnmarshalJSON parses a request previously produced by MarshalJSON
func (r *SearchRequest) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}

	*r = SearchRequest{}
	if src, ok := raw["_source"].(map[string]any); ok {
		list, _ := src["includes"].([]any)
		if list == nil {
			list, _ = src["include"].([]any)
		}
		for _, f := range list {
			if s, ok := f.(string); ok {
				r.Source = append(r.Source, s)
			}
		}
	}
	if sorts, ok := raw["sort"].([]any); ok {
		for _, s := range sorts {
			fields, err := parseSort(s)
			if err != nil {
				return err
			}
			r.Sort = append(r.Sort, fields...)
		}
	}
	if q, ok := raw["query"]; ok {
		if r.Query, err = buildQuery(q); err != nil {
			return err
		}
	}
	if v, ok := toInt(raw["from"]); ok {
		r.From = &v
	}
	if v, ok := toInt(raw["size"]); ok {
		r.Size = &v
	}
	if v, ok := raw["track_total_hits"].(bool); ok {
		r.TrackTotalHits = v
	}
	if aggs, ok := raw["aggs"]; ok {
		if r.Aggs, err = parseAggs(aggs); err != nil {
			return err
		}
	}
	return nil
}

func parseSort(v any) ([]SortField, error) {
	switch t := v.(type) {
	case string:
		return []SortField{{Field: t, Order: Asc}}, nil
	case map[string]any:
		var out []SortField
		for _, field := range sortedKeys(t) {
			sf := SortField{Field: field, Order: Asc}
			switch opts := t[field].(type) {
			case string:
				sf.Order = opts
			case map[string]any:
				if s, ok := opts["order"].(string); ok {
					sf.Order = s
				}
				sf.UnmappedType, _ = opts["unmapped_type"].(string)
				sf.Missing, _ = opts["missing"].(string)
			}
			out = append(out, sf)
		}
		return out, nil
	}
	return nil, fmt.Errorf("dsl: unsupported sort entry %T", v)
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("dsl: %w", err)
	}
	return raw, nil
}
