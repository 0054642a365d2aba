package dsl

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TermsAggregation buckets matching documents by the distinct values of Field
type TermsAggregation struct {
	Name  string
	Field string
	Size  int
}

// Bucket is one distinct value and the number of matching documents holding it
type Bucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
}

// MarshalJSON renders {"terms": {"field": ..., "size": ...}}; the name is the
// enclosing key
func (a TermsAggregation) MarshalJSON() ([]byte, error) {
	body := object{"field": a.Field}
	if a.Size > 0 {
		body["size"] = a.Size
	}
	return json.Marshal(object{"terms": body})
}

func marshalAggs(aggs []TermsAggregation) object {
	out := make(object, len(aggs))
	for _, a := range aggs {
		out[a.Name] = a
	}
	return out
}

func parseAggs(v any) ([]TermsAggregation, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dsl: aggs must be an object, got %T", v)
	}
	out := make([]TermsAggregation, 0, len(m))
	for _, name := range sortedKeys(m) {
		body, ok := m[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dsl: aggregation %s must be an object", name)
		}
		terms, ok := body["terms"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dsl: aggregation %s: only terms aggregations are supported", name)
		}
		agg := TermsAggregation{Name: name}
		agg.Field, _ = terms["field"].(string)
		if size, ok := toInt(terms["size"]); ok {
			agg.Size = size
		}
		out = append(out, agg)
	}
	return out, nil
}

// CollectBuckets computes a terms aggregation over decoded documents the way
// the index does: keyword values counted once per document, ordered by count
// descending then key ascending, truncated to Size (10 when unset).
func CollectBuckets(agg TermsAggregation, docs []map[string]any) []Bucket {
	path, _ := resolveField(agg.Field)
	counts := make(map[string]int64)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, v := range lookup(doc, path) {
			key := formatScalar(v)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			counts[key]++
		}
	}

	buckets := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, Bucket{Key: k, DocCount: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].DocCount != buckets[j].DocCount {
			return buckets[i].DocCount > buckets[j].DocCount
		}
		return buckets[i].Key < buckets[j].Key
	})

	size := agg.Size
	if size <= 0 {
		size = 10
	}
	if len(buckets) > size {
		buckets = buckets[:size]
	}
	return buckets
}
