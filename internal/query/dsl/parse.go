package dsl

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ParseQuery decodes a query clause from index wire format. Integral numbers
// decode as int64 and other numbers as float64.
func ParseQuery(data []byte) (Query, error) {
	raw, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return buildQuery(raw)
}

func buildQuery(v any) (Query, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("dsl: clause must be an object with one key, got %v", v)
	}
	var kind string
	var body any
	for k, b := range m {
		kind, body = k, b
	}

	switch kind {
	case "bool":
		return buildBool(body)
	case "match_all":
		return MatchAll{}, nil
	case "constant_score":
		b, err := asObject(kind, body)
		if err != nil {
			return nil, err
		}
		filter, err := buildQuery(b["filter"])
		if err != nil {
			return nil, err
		}
		return ConstantScore{Filter: filter}, nil
	case "ids":
		b, err := asObject(kind, body)
		if err != nil {
			return nil, err
		}
		values, _ := b["values"].([]any)
		ids := make([]string, 0, len(values))
		for _, id := range values {
			ids = append(ids, formatScalar(normalize(id)))
		}
		return IDs{Values: ids}, nil
	case "exists":
		b, err := asObject(kind, body)
		if err != nil {
			return nil, err
		}
		field, _ := b["field"].(string)
		return Exists{Field: field}, nil
	case "query_string":
		b, err := asObject(kind, body)
		if err != nil {
			return nil, err
		}
		q := QueryString{}
		q.DefaultField, _ = b["default_field"].(string)
		q.Query, _ = b["query"].(string)
		q.DefaultOperator, _ = b["default_operator"].(string)
		if split, ok := b["split_on_whitespace"].(bool); ok {
			q.SplitOnWhitespace = &split
		}
		return q, nil
	}

	field, value, err := singleField(kind, body)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "terms":
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("dsl: terms on %q must be a list", field)
		}
		values := make([]any, 0, len(list))
		for _, item := range list {
			values = append(values, normalize(item))
		}
		return Terms{Field: field, Values: values}, nil
	case "term":
		if opts, ok := value.(map[string]any); ok {
			value = opts["value"]
		}
		return Term{Field: field, Value: normalize(value)}, nil
	case "match":
		if opts, ok := value.(map[string]any); ok {
			op, _ := opts["operator"].(string)
			return Match{Field: field, Query: normalize(opts["query"]), Operator: op}, nil
		}
		return Match{Field: field, Query: normalize(value)}, nil
	case "match_phrase_prefix":
		if opts, ok := value.(map[string]any); ok {
			value = opts["query"]
		}
		s, _ := value.(string)
		return MatchPhrasePrefix{Field: field, Query: s}, nil
	case "range":
		opts, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dsl: range on %q must be an object", field)
		}
		return Range{
			Field: field,
			GTE:   normalize(opts["gte"]),
			GT:    normalize(opts["gt"]),
			LTE:   normalize(opts["lte"]),
			LT:    normalize(opts["lt"]),
		}, nil
	}

	return nil, fmt.Errorf("dsl: unsupported clause %q", kind)
}

func buildBool(body any) (Query, error) {
	b, err := asObject("bool", body)
	if err != nil {
		return nil, err
	}
	out := &Bool{}
	sections := []struct {
		key  string
		dest *[]Query
	}{
		{"must", &out.Must},
		{"filter", &out.Filter},
		{"must_not", &out.MustNot},
		{"should", &out.Should},
	}
	for _, s := range sections {
		raw, ok := b[s.key]
		if !ok {
			continue
		}
		// a single clause may be given without the enclosing list
		list, isList := raw.([]any)
		if !isList {
			list = []any{raw}
		}
		for _, item := range list {
			q, err := buildQuery(item)
			if err != nil {
				return nil, err
			}
			*s.dest = append(*s.dest, q)
		}
	}
	if msm, ok := toInt(b["minimum_should_match"]); ok {
		out.MinimumShouldMatch = &msm
	}
	return out, nil
}

func asObject(kind string, body any) (map[string]any, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dsl: %s body must be an object", kind)
	}
	return m, nil
}

func singleField(kind string, body any) (string, any, error) {
	m, err := asObject(kind, body)
	if err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("dsl: %s must name exactly one field", kind)
	}
	for field, value := range m {
		return field, value, nil
	}
	return "", nil, nil
}

// normalize turns decoder numbers into int64 or float64
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

func toInt(v any) (int, bool) {
	switch t := normalize(v).(type) {
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
