package query

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Evaluate applies the filter, sort and pagination stages of f to an
// in-memory slice. The memory repositories use it so list semantics match
// the SQL compilation exactly; tests lean on it as the reference behavior.
// Projection is a serialization concern, handled by Project.
func Evaluate[T any](items []T, f Features) []T {
	type indexed struct {
		item T
		doc  map[string]any
		pos  int
	}

	docs := make([]indexed, 0, len(items))

	for i, item := range items {
		doc := toDoc(item)
		if !matches(doc, f.Filters) {
			continue
		}
		docs = append(docs, indexed{item: item, doc: doc, pos: i})
	}

	// Stable multi-key sort; ties keep insertion order.
	sort.SliceStable(docs, func(a, b int) bool {
		for _, key := range f.Sort {
			av, bv := docs[a].doc[key.Field], docs[b].doc[key.Field]
			cmp := compareValues(av, bv)
			if cmp == 0 {
				continue
			}
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	start := f.Offset()
	if start >= len(docs) {
		return []T{}
	}
	end := start + f.Limit
	if end > len(docs) {
		end = len(docs)
	}

	out := make([]T, 0, end-start)
	for _, d := range docs[start:end] {
		out = append(out, d.item)
	}
	return out
}

// Project reduces an entity to its projected JSON document. The identity
// field is always present; fields tagged `json:"-"` never are. An empty
// projection returns the full document.
func Project(entity any, fields []string) map[string]any {
	doc := toDoc(entity)
	if len(fields) == 0 {
		return doc
	}

	out := make(map[string]any, len(fields)+1)
	if id, ok := doc["id"]; ok {
		out["id"] = id
	}
	for _, field := range fields {
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}

// toDoc goes through the JSON representation so filtering and projection see
// the same field names and exclusions as the wire format.
func toDoc(entity any) map[string]any {
	b, err := json.Marshal(entity)
	if err != nil {
		return map[string]any{}
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return map[string]any{}
	}
	return doc
}

func matches(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}

		cmp := compareWithRaw(v, f.Value)
		switch f.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareWithRaw compares a decoded JSON value against the raw string from
// the request, numerically when the entity field is numeric.
func compareWithRaw(v any, raw string) int {
	switch val := v.(type) {
	case float64:
		num, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return -1
		}
		return compareFloats(val, num)
	case bool:
		want, err := strconv.ParseBool(raw)
		if err != nil {
			return -1
		}
		if val == want {
			return 0
		}
		return -1
	case string:
		if val == raw {
			return 0
		}
		if val < raw {
			return -1
		}
		return 1
	default:
		return -1
	}
}

func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return compareFloats(af, bf)
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		if as == bs {
			return 0
		}
		if as < bs {
			return -1
		}
		return 1
	}

	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
