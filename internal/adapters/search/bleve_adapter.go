package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/query/dsl"
	apperrors "github.com/zatekoja/crmdataplatform/pkg/errors"
)

const (
	textAnalyzer  = "es_standard"
	textTokenizer = "es_word"
	// keywordRoot holds an unanalyzed copy of every string field
	keywordRoot = "keyword"

	defaultPageSize = 10
)

// BleveAdapter is an in-memory document index used for local runs and
// tests. Bleve narrows the candidates and sorts them; every candidate is
// then checked against the query with dsl.Evaluate so results agree with
// the cluster engine. It pages by offset only; wrap it in an EmulatedIndex
// for scroll support.
type BleveAdapter struct {
	mu      sync.RWMutex
	mapping mapping.IndexMapping
	indexes map[string]*bleveIndex
}

type bleveIndex struct {
	idx  bleve.Index
	docs map[string]storedDoc
}

type storedDoc struct {
	raw json.RawMessage
	doc map[string]any
}

// NewBleveAdapter creates a new in-memory adapter
func NewBleveAdapter() (*BleveAdapter, error) {
	m, err := newIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to build bleve mapping: %w", err)
	}
	return &BleveAdapter{mapping: m, indexes: make(map[string]*bleveIndex)}, nil
}

func newIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomTokenizer(textTokenizer, map[string]interface{}{
		"type":   regexptokenizer.Name,
		"regexp": dsl.TokenPattern,
	}); err != nil {
		return nil, err
	}
	if err := im.AddCustomAnalyzer(textAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     textTokenizer,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}
	im.DefaultAnalyzer = textAnalyzer

	raw := bleve.NewDocumentMapping()
	raw.DefaultAnalyzer = keyword.Name
	im.DefaultMapping.AddSubDocumentMapping(keywordRoot, raw)
	return im, nil
}

// IndexDocuments adds or replaces documents. Hit ids become document ids.
func (a *BleveAdapter) IndexDocuments(ctx context.Context, index string, docs []repositories.SearchHit) error {
	target, err := a.index(index)
	if err != nil {
		return err
	}

	batch := target.idx.NewBatch()
	decoded := make(map[string]storedDoc, len(docs))
	for _, d := range docs {
		var doc map[string]any
		if err := json.Unmarshal(d.Source, &doc); err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("document %s is not a JSON object", d.ID))
		}
		indexed := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			indexed[k] = v
		}
		indexed[keywordRoot] = keywordCopy(doc)
		if err := batch.Index(d.ID, indexed); err != nil {
			return apperrors.NewInternalError("failed to batch document", err)
		}
		decoded[d.ID] = storedDoc{raw: d.Source, doc: doc}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := target.idx.Batch(batch); err != nil {
		return apperrors.NewInternalError("failed to index documents", err)
	}

	a.mu.Lock()
	for id, d := range decoded {
		target.docs[id] = d
	}
	a.mu.Unlock()
	return nil
}

// Search implements services.Searcher
func (a *BleveAdapter) Search(ctx context.Context, index string, req dsl.SearchRequest) (*repositories.SearchResponse, error) {
	a.mu.RLock()
	target, ok := a.indexes[index]
	a.mu.RUnlock()
	if !ok {
		return &repositories.SearchResponse{}, nil
	}

	count, err := target.idx.DocCount()
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to count documents", err)
	}
	if count == 0 {
		return &repositories.SearchResponse{}, nil
	}

	q := query.Query(bleve.NewMatchAllQuery())
	if req.Query != nil {
		q, _ = translate(req.Query)
	}
	breq := bleve.NewSearchRequestOptions(q, int(count), 0, false)
	if len(req.Sort) > 0 {
		breq.SortByCustom(sortOrder(req.Sort))
	}

	res, err := target.idx.SearchInContext(ctx, breq)
	if err != nil {
		return nil, apperrors.NewUnavailableError("bleve search failed", err)
	}

	a.mu.RLock()
	matched := make([]repositories.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		stored, ok := target.docs[h.ID]
		if !ok || (req.Query != nil && !dsl.Evaluate(req.Query, stored.doc)) {
			continue
		}
		matched = append(matched, repositories.SearchHit{ID: h.ID, Score: h.Score, Source: stored.raw})
	}
	a.mu.RUnlock()

	resp := &repositories.SearchResponse{Total: int64(len(matched))}
	if len(req.Aggs) > 0 {
		docs := make([]map[string]any, 0, len(matched))
		a.mu.RLock()
		for _, h := range matched {
			docs = append(docs, target.docs[h.ID].doc)
		}
		a.mu.RUnlock()
		resp.Aggregations = make(map[string][]dsl.Bucket, len(req.Aggs))
		for _, agg := range req.Aggs {
			resp.Aggregations[agg.Name] = dsl.CollectBuckets(agg, docs)
		}
	}
	from, size := 0, defaultPageSize
	if req.From != nil {
		from = *req.From
	}
	if req.Size != nil {
		size = *req.Size
	}
	if from >= len(matched) {
		return resp, nil
	}
	for _, h := range matched[from:min(from+size, len(matched))] {
		src, err := project(h.Source, req.Source)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to project document source", err)
		}
		h.Source = src
		resp.Hits = append(resp.Hits, h)
	}
	return resp, nil
}

// Close releases every index
func (a *BleveAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, target := range a.indexes {
		if err := target.idx.Close(); err != nil {
			return fmt.Errorf("failed to close index %s: %w", name, err)
		}
	}
	a.indexes = make(map[string]*bleveIndex)
	return nil
}

func (a *BleveAdapter) index(name string) (*bleveIndex, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if target, ok := a.indexes[name]; ok {
		return target, nil
	}
	idx, err := bleve.NewMemOnly(a.mapping)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create index "+name, err)
	}
	target := &bleveIndex{idx: idx, docs: make(map[string]storedDoc)}
	a.indexes[name] = target
	return target, nil
}

// keywordCopy keeps the string leaves of v in their original shape
func keywordCopy(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if c := keywordCopy(child); c != nil {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		var out []any
		for _, child := range t {
			if c := keywordCopy(child); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// translate maps q to a bleve query matching a superset of its documents.
// exact is set when the translation matches the same documents, which is
// required for clauses used under must_not.
func translate(q dsl.Query) (bq query.Query, exact bool) {
	switch t := q.(type) {
	case *dsl.Bool:
		return translateBool(t)
	case dsl.MatchAll:
		return bleve.NewMatchAllQuery(), true
	case dsl.ConstantScore:
		if t.Filter == nil {
			return bleve.NewMatchAllQuery(), true
		}
		return translate(t.Filter)
	case dsl.IDs:
		return bleve.NewDocIDQuery(t.Values), true
	case dsl.Term:
		return translateTerms(t.Field, []any{t.Value}), true
	case dsl.Terms:
		return translateTerms(t.Field, t.Values), true
	case dsl.Match:
		return translateMatch(t.Field, t.Query, t.Operator)
	case dsl.QueryString:
		bq, _ := translateMatch(t.DefaultField, t.Query, t.DefaultOperator)
		return bq, false
	case dsl.MatchPhrasePrefix:
		return translatePhrasePrefix(t), false
	case dsl.Range:
		return translateRange(t), false
	}
	return bleve.NewMatchAllQuery(), false
}

func translateBool(b *dsl.Bool) (query.Query, bool) {
	exact := true
	bq := bleve.NewBooleanQuery()
	for _, c := range append(append([]dsl.Query{}, b.Must...), b.Filter...) {
		sub, ok := translate(c)
		exact = exact && ok
		bq.AddMust(sub)
	}
	for _, c := range b.MustNot {
		sub, ok := translate(c)
		if !ok {
			exact = false
			continue
		}
		bq.AddMustNot(sub)
	}

	required := 0
	if b.MinimumShouldMatch != nil {
		required = *b.MinimumShouldMatch
	} else if len(b.Must) == 0 && len(b.Filter) == 0 && len(b.Should) > 0 {
		required = 1
	}
	if required > 0 {
		should := make([]query.Query, 0, len(b.Should))
		for _, c := range b.Should {
			sub, ok := translate(c)
			exact = exact && ok
			should = append(should, sub)
		}
		disjunction := bleve.NewDisjunctionQuery(should...)
		disjunction.SetMin(float64(required))
		bq.AddMust(disjunction)
	}

	if bq.Must == nil {
		bq.AddMust(bleve.NewMatchAllQuery())
	}
	return bq, exact
}

func translateTerms(field string, values []any) query.Query {
	if len(values) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	if field == "_id" {
		ids := make([]string, len(values))
		for i, v := range values {
			ids[i] = dsl.FormatID(v)
		}
		return bleve.NewDocIDQuery(ids)
	}

	name := fieldName(field)
	queries := make([]query.Query, 0, len(values))
	for _, v := range values {
		queries = append(queries, valueQuery(name, v))
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func valueQuery(field string, v any) query.Query {
	switch t := v.(type) {
	case string:
		tq := bleve.NewTermQuery(t)
		tq.SetField(field)
		return tq
	case bool:
		bq := bleve.NewBoolFieldQuery(t)
		bq.SetField(field)
		return bq
	}
	n, ok := toFloat(v)
	if !ok {
		return bleve.NewMatchNoneQuery()
	}
	inclusive := true
	nq := bleve.NewNumericRangeInclusiveQuery(&n, &n, &inclusive, &inclusive)
	nq.SetField(field)
	return nq
}

func translateMatch(field string, q any, operator string) (query.Query, bool) {
	text, ok := q.(string)
	if !ok {
		return valueQuery(fieldName(field), q), true
	}
	if strings.HasSuffix(field, dsl.KeywordSuffix) {
		return valueQuery(fieldName(field), text), true
	}
	if len(dsl.Tokenize(text)) == 0 {
		return bleve.NewMatchNoneQuery(), true
	}

	mq := bleve.NewMatchQuery(text)
	mq.SetField(field)
	mq.Analyzer = textAnalyzer
	if strings.EqualFold(operator, "and") {
		mq.SetOperator(query.MatchQueryOperatorAnd)
	}
	return mq, true
}

func translatePhrasePrefix(q dsl.MatchPhrasePrefix) query.Query {
	tokens := dsl.Tokenize(q.Query)
	if len(tokens) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	field := fieldName(q.Field)
	parts := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens[:len(tokens)-1] {
		tq := bleve.NewTermQuery(tok)
		tq.SetField(field)
		parts = append(parts, tq)
	}
	pq := bleve.NewPrefixQuery(tokens[len(tokens)-1])
	pq.SetField(field)
	parts = append(parts, pq)
	return bleve.NewConjunctionQuery(parts...)
}

func translateRange(r dsl.Range) query.Query {
	field := fieldName(r.Field)
	lower, lowerInclusive := r.GT, false
	if r.GTE != nil {
		lower, lowerInclusive = r.GTE, true
	}
	upper, upperInclusive := r.LT, false
	if r.LTE != nil {
		upper, upperInclusive = r.LTE, true
	}

	if isTimeBound(lower) || isTimeBound(upper) {
		start, _ := toTime(lower)
		end, _ := toTime(upper)
		dq := bleve.NewDateRangeInclusiveQuery(start, end, &lowerInclusive, &upperInclusive)
		dq.SetField(field)
		return dq
	}

	var minPtr, maxPtr *float64
	if n, ok := toFloat(lower); ok {
		minPtr = &n
	}
	if n, ok := toFloat(upper); ok {
		maxPtr = &n
	}
	if minPtr == nil && maxPtr == nil {
		return bleve.NewMatchAllQuery()
	}
	nq := bleve.NewNumericRangeInclusiveQuery(minPtr, maxPtr, &lowerInclusive, &upperInclusive)
	nq.SetField(field)
	return nq
}

func sortOrder(fields []dsl.SortField) search.SortOrder {
	order := make(search.SortOrder, 0, len(fields))
	for _, f := range fields {
		desc := f.Order == dsl.Desc
		switch f.Field {
		case "_score":
			order = append(order, &search.SortScore{Desc: desc})
		case "_id":
			order = append(order, &search.SortDocID{Desc: desc})
		default:
			sf := &search.SortField{Field: fieldName(f.Field), Desc: desc, Missing: search.SortFieldMissingLast}
			if f.UnmappedType == "long" || f.UnmappedType == "integer" || f.UnmappedType == "double" {
				sf.Type = search.SortFieldAsNumber
			}
			if f.Missing != "" && f.Missing != dsl.MissingLast {
				sf.Missing = search.SortFieldMissingFirst
			}
			order = append(order, sf)
		}
	}
	return order
}

func fieldName(field string) string {
	if strings.HasSuffix(field, dsl.KeywordSuffix) {
		return keywordRoot + "." + strings.TrimSuffix(field, dsl.KeywordSuffix)
	}
	return field
}

// project keeps the top-level keys named, or prefixed, by includes
func project(raw json.RawMessage, includes []string) (json.RawMessage, error) {
	if len(includes) == 0 {
		return raw, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(includes))
	for key, v := range doc {
		for _, inc := range includes {
			if inc == key || strings.HasPrefix(inc, key+".") {
				out[key] = v
				break
			}
		}
	}
	return json.Marshal(out)
}

func isTimeBound(v any) bool {
	_, ok := v.(string)
	if !ok {
		_, ok = v.(time.Time)
	}
	return ok
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
