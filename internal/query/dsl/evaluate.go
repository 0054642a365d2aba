package dsl

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TokenPattern is the token regexp of the text analyzer: maximal runs of
// letters and digits. Tokens are lower-cased.
const TokenPattern = `[\p{L}\p{N}]+`

var tokenRE = regexp.MustCompile(TokenPattern)

// KeywordSuffix marks the raw, unanalyzed sub-field of a text field
const KeywordSuffix = ".keyword"

// Tokenize splits text the way the index analyzes text fields
func Tokenize(text string) []string {
	tokens := tokenRE.FindAllString(text, -1)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}

// Evaluate reports whether doc, a decoded source document, matches q.
// String fields are analyzed unless addressed through their .keyword
// sub-field, dotted paths descend into nested objects and arrays, and _id
// resolves to the document's "id".
func Evaluate(q Query, doc map[string]any) bool {
	switch t := q.(type) {
	case *Bool:
		return evalBool(t, doc)
	case MatchAll:
		return true
	case ConstantScore:
		if t.Filter == nil {
			return true
		}
		return Evaluate(t.Filter, doc)
	case Terms:
		return evalTerms(t.Field, t.Values, doc)
	case Term:
		return evalTerms(t.Field, []any{t.Value}, doc)
	case IDs:
		id := formatScalar(doc["id"])
		for _, v := range t.Values {
			if v == id {
				return true
			}
		}
		return false
	case Exists:
		path, _ := resolveField(t.Field)
		return len(lookup(doc, path)) > 0
	case Match:
		return evalMatch(t.Field, t.Query, strings.ToLower(t.Operator), doc)
	case QueryString:
		return evalMatch(t.DefaultField, t.Query, strings.ToLower(t.DefaultOperator), doc)
	case MatchPhrasePrefix:
		return evalPhrasePrefix(t, doc)
	case Range:
		return evalRange(t, doc)
	}
	return false
}

func evalBool(b *Bool, doc map[string]any) bool {
	for _, q := range b.Must {
		if !Evaluate(q, doc) {
			return false
		}
	}
	for _, q := range b.Filter {
		if !Evaluate(q, doc) {
			return false
		}
	}
	for _, q := range b.MustNot {
		if Evaluate(q, doc) {
			return false
		}
	}
	if len(b.Should) == 0 {
		return true
	}

	required := 0
	if b.MinimumShouldMatch != nil {
		required = *b.MinimumShouldMatch
	} else if len(b.Must) == 0 && len(b.Filter) == 0 {
		required = 1
	}
	matched := 0
	for _, q := range b.Should {
		if Evaluate(q, doc) {
			matched++
		}
	}
	return matched >= required
}

func evalTerms(field string, values []any, doc map[string]any) bool {
	if field == "_id" {
		id := formatScalar(doc["id"])
		for _, want := range values {
			if formatScalar(want) == id {
				return true
			}
		}
		return false
	}
	path, raw := resolveField(field)
	for _, docVal := range lookup(doc, path) {
		for _, want := range values {
			if termMatches(docVal, want, raw) {
				return true
			}
		}
	}
	return false
}

func termMatches(docVal, want any, raw bool) bool {
	switch d := docVal.(type) {
	case string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		if raw {
			return d == w
		}
		for _, tok := range Tokenize(d) {
			if tok == w {
				return true
			}
		}
		return false
	case bool:
		w, ok := want.(bool)
		return ok && w == d
	}
	dn, ok := asFloat(docVal)
	if !ok {
		return false
	}
	wn, ok := asFloat(want)
	return ok && dn == wn
}

func evalMatch(field string, query any, operator string, doc map[string]any) bool {
	path, raw := resolveField(field)
	values := lookup(doc, path)

	text, isText := query.(string)
	if !isText {
		for _, docVal := range values {
			if termMatches(docVal, query, true) {
				return true
			}
		}
		return false
	}

	if raw {
		for _, docVal := range values {
			if s, ok := docVal.(string); ok && s == text {
				return true
			}
		}
		return false
	}

	want := Tokenize(text)
	if len(want) == 0 {
		return false
	}
	have := map[string]bool{}
	for _, docVal := range values {
		if s, ok := docVal.(string); ok {
			for _, tok := range Tokenize(s) {
				have[tok] = true
			}
		}
	}
	hits := 0
	for _, tok := range want {
		if have[tok] {
			hits++
		}
	}
	if operator == "and" {
		return hits == len(want)
	}
	return hits > 0
}

func evalPhrasePrefix(q MatchPhrasePrefix, doc map[string]any) bool {
	want := Tokenize(q.Query)
	if len(want) == 0 {
		return false
	}
	path, _ := resolveField(q.Field)
	for _, docVal := range lookup(doc, path) {
		s, ok := docVal.(string)
		if !ok {
			continue
		}
		have := Tokenize(s)
		for start := 0; start+len(want) <= len(have); start++ {
			if phraseAt(have[start:start+len(want)], want) {
				return true
			}
		}
	}
	return false
}

func phraseAt(have, want []string) bool {
	last := len(want) - 1
	for i := 0; i < last; i++ {
		if have[i] != want[i] {
			return false
		}
	}
	return strings.HasPrefix(have[last], want[last])
}

func evalRange(r Range, doc map[string]any) bool {
	path, _ := resolveField(r.Field)
	for _, docVal := range lookup(doc, path) {
		if inRange(docVal, r) {
			return true
		}
	}
	return false
}

func inRange(docVal any, r Range) bool {
	checks := []struct {
		bound any
		ok    func(int) bool
	}{
		{r.GTE, func(c int) bool { return c >= 0 }},
		{r.GT, func(c int) bool { return c > 0 }},
		{r.LTE, func(c int) bool { return c <= 0 }},
		{r.LT, func(c int) bool { return c < 0 }},
	}
	for _, check := range checks {
		if check.bound == nil {
			continue
		}
		c, ok := compare(docVal, check.bound)
		if !ok || !check.ok(c) {
			return false
		}
	}
	return true
}

// compare orders a document value against a range bound: numbers
// numerically, timestamps chronologically
func compare(docVal, bound any) (int, bool) {
	if dn, ok := asFloat(docVal); ok {
		bn, ok := asFloat(bound)
		if !ok {
			return 0, false
		}
		switch {
		case dn < bn:
			return -1, true
		case dn > bn:
			return 1, true
		}
		return 0, true
	}
	dt, ok := asTime(docVal)
	if !ok {
		return 0, false
	}
	bt, ok := asTime(bound)
	if !ok {
		return 0, false
	}
	return dt.Compare(bt), true
}

func resolveField(field string) (path string, raw bool) {
	if field == "_id" {
		return "id", true
	}
	if strings.HasSuffix(field, KeywordSuffix) {
		return strings.TrimSuffix(field, KeywordSuffix), true
	}
	return field, false
}

func lookup(doc map[string]any, path string) []any {
	return collect(doc, strings.Split(path, "."))
}

func collect(v any, parts []string) []any {
	if len(parts) == 0 {
		return flatten(v)
	}
	switch t := v.(type) {
	case map[string]any:
		child, ok := t[parts[0]]
		if !ok {
			return nil
		}
		return collect(child, parts[1:])
	case []any:
		var out []any
		for _, item := range t {
			out = append(out, collect(item, parts)...)
		}
		return out
	}
	return nil
}

func flatten(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []any
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// FormatID renders an id value the way the index stores document ids
func FormatID(v any) string {
	return formatScalar(v)
}
