// Package dsl is a typed model of the document index query language. Queries
// are built as a clause tree and only turned into the index wire format when
// marshalled.
package dsl

import (
	"encoding/json"
)

// Query is a node of the clause tree
type Query interface {
	json.Marshaler
	isQuery()
}

// Terms matches documents whose field holds any of Values. An empty Values
// matches nothing.
type Terms struct {
	Field  string
	Values []any
}

// Term matches documents whose field holds Value exactly
type Term struct {
	Field string
	Value any
}

// Match runs Query through the field analyzer. Operator is "and" or "or";
// empty means the index default ("or").
type Match struct {
	Field    string
	Query    any
	Operator string
}

// MatchPhrasePrefix matches the analyzed phrase with the last token as a prefix
type MatchPhrasePrefix struct {
	Field string
	Query string
}

// Range bounds a numeric or date field. Nil bounds are omitted.
type Range struct {
	Field string
	GTE   any
	GT    any
	LTE   any
	LT    any
}

// IDs matches documents by index id
type IDs struct {
	Values []string
}

// ConstantScore wraps a filter so every match scores the same
type ConstantScore struct {
	Filter Query
}

// Exists matches documents with a non-null value for Field
type Exists struct {
	Field string
}

// QueryString is a query_string clause restricted to a single default field
type QueryString struct {
	DefaultField      string
	Query             string
	DefaultOperator   string
	SplitOnWhitespace *bool
}

// MatchAll matches every document
type MatchAll struct{}

// Bool combines clauses. When Should is non-empty and MinimumShouldMatch is
// nil, at least one should clause must match only if Must and Filter are
// both empty.
type Bool struct {
	Must               []Query
	Filter             []Query
	MustNot            []Query
	Should             []Query
	MinimumShouldMatch *int
}

// Empty reports whether the bool has no clauses at all
func (b *Bool) Empty() bool {
	return len(b.Must) == 0 && len(b.Filter) == 0 && len(b.MustNot) == 0 && len(b.Should) == 0
}

func (Terms) isQuery()             {}
func (Term) isQuery()              {}
func (Match) isQuery()             {}
func (MatchPhrasePrefix) isQuery() {}
func (Range) isQuery()             {}
func (IDs) isQuery()               {}
func (ConstantScore) isQuery()     {}
func (Exists) isQuery()            {}
func (QueryString) isQuery()       {}
func (MatchAll) isQuery()          {}
func (*Bool) isQuery()             {}

type object = map[string]any

func wrap(kind string, body any) ([]byte, error) {
	return json.Marshal(object{kind: body})
}

func (q Terms) MarshalJSON() ([]byte, error) {
	values := q.Values
	if values == nil {
		values = []any{}
	}
	return wrap("terms", object{q.Field: values})
}

func (q Term) MarshalJSON() ([]byte, error) {
	return wrap("term", object{q.Field: q.Value})
}

func (q Match) MarshalJSON() ([]byte, error) {
	if q.Operator == "" {
		return wrap("match", object{q.Field: q.Query})
	}
	return wrap("match", object{q.Field: object{"query": q.Query, "operator": q.Operator}})
}

func (q MatchPhrasePrefix) MarshalJSON() ([]byte, error) {
	return wrap("match_phrase_prefix", object{q.Field: q.Query})
}

func (q Range) MarshalJSON() ([]byte, error) {
	bounds := object{}
	for key, v := range map[string]any{"gte": q.GTE, "gt": q.GT, "lte": q.LTE, "lt": q.LT} {
		if v != nil {
			bounds[key] = v
		}
	}
	return wrap("range", object{q.Field: bounds})
}

func (q IDs) MarshalJSON() ([]byte, error) {
	values := q.Values
	if values == nil {
		values = []string{}
	}
	return wrap("ids", object{"values": values})
}

func (q ConstantScore) MarshalJSON() ([]byte, error) {
	filter := q.Filter
	if filter == nil {
		filter = MatchAll{}
	}
	return wrap("constant_score", object{"filter": filter})
}

func (q Exists) MarshalJSON() ([]byte, error) {
	return wrap("exists", object{"field": q.Field})
}

func (q QueryString) MarshalJSON() ([]byte, error) {
	body := object{"default_field": q.DefaultField, "query": q.Query}
	if q.DefaultOperator != "" {
		body["default_operator"] = q.DefaultOperator
	}
	if q.SplitOnWhitespace != nil {
		body["split_on_whitespace"] = *q.SplitOnWhitespace
	}
	return wrap("query_string", body)
}

func (MatchAll) MarshalJSON() ([]byte, error) {
	return wrap("match_all", object{})
}

func (q *Bool) MarshalJSON() ([]byte, error) {
	body := object{}
	if len(q.Must) > 0 {
		body["must"] = q.Must
	}
	if len(q.Filter) > 0 {
		body["filter"] = q.Filter
	}
	if len(q.MustNot) > 0 {
		body["must_not"] = q.MustNot
	}
	if len(q.Should) > 0 {
		body["should"] = q.Should
	}
	if q.MinimumShouldMatch != nil {
		body["minimum_should_match"] = *q.MinimumShouldMatch
	}
	return wrap("bool", body)
}

// Int returns a pointer to v, for MinimumShouldMatch and request sizes
func Int(v int) *int {
	return &v
}

// BoolPtr returns a pointer to v
func BoolPtr(v bool) *bool {
	return &v
}
