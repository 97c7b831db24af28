package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/altitrek/tourhub/internal/apperr"
)

// Features is the parsed shape of one list request:
// predicates, sort keys, projection and pagination. It is a pure description;
// nothing executes until a repository applies it exactly once.

type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpGt  Op = "gt"
	OpLte Op = "lte"
	OpLt  Op = "lt"
)

type Filter struct {
	Field string
	Op    Op
	Value string
}

type SortKey struct {
	Field string
	Desc  bool
}

type Features struct {
	Filters []Filter
	Sort    []SortKey
	Fields  []string // projection; empty means all fields
	Page    int
	Limit   int
}

// Options declares what a resource allows. Filterable/sortable/projectable
// fields form an explicit allowlist so typos and probing for internal
// columns fail loudly instead of passing through.
type Options struct {
	Allowed     map[string]bool
	DefaultSort []SortKey
}

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Reserved control keys; everything else is a filter parameter.
const (
	keyPage   = "page"
	keyLimit  = "limit"
	keySort   = "sort"
	keyFields = "fields"
)

// Parse turns raw request parameters into Features. Order of construction is
// fixed: filter, sort, limitFields, paginate.
func Parse(values url.Values, opts Options) (Features, error) {
	f := Features{
		Page:  DefaultPage,
		Limit: DefaultLimit,
	}

	// filter
	for key, vals := range values {
		if key == keyPage || key == keyLimit || key == keySort || key == keyFields {
			continue
		}
		if len(vals) == 0 {
			continue
		}

		field, op, err := splitFilterKey(key)
		if err != nil {
			return Features{}, err
		}
		if !opts.Allowed[field] {
			return Features{}, apperr.Validation(fmt.Sprintf("Cannot filter on field %q", field))
		}

		for _, v := range vals {
			f.Filters = append(f.Filters, Filter{Field: field, Op: op, Value: v})
		}
	}

	// sort
	if raw := values.Get(keySort); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := SortKey{Field: part}
			if strings.HasPrefix(part, "-") {
				key.Field = part[1:]
				key.Desc = true
			}
			if !opts.Allowed[key.Field] {
				return Features{}, apperr.Validation(fmt.Sprintf("Cannot sort on field %q", key.Field))
			}
			f.Sort = append(f.Sort, key)
		}
	}
	if len(f.Sort) == 0 {
		f.Sort = append(f.Sort, opts.DefaultSort...)
	}

	// limitFields
	if raw := values.Get(keyFields); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if part != "id" && !opts.Allowed[part] {
				return Features{}, apperr.Validation(fmt.Sprintf("Cannot select field %q", part))
			}
			f.Fields = append(f.Fields, part)
		}
	}

	// paginate
	if raw := values.Get(keyPage); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return Features{}, apperr.Validation("page must be a positive integer")
		}
		f.Page = page
	}
	if raw := values.Get(keyLimit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Features{}, apperr.Validation("limit must be a positive integer")
		}
		f.Limit = limit
	}

	return f, nil
}

func (f Features) Offset() int {
	return (f.Page - 1) * f.Limit
}

// FieldsFromValues extracts just the projection list, for single-document
// reads where the full feature set does not apply.
func FieldsFromValues(values url.Values) []string {
	raw := values.Get(keyFields)
	if raw == "" {
		return nil
	}

	var fields []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			fields = append(fields, part)
		}
	}
	return fields
}

// WithFilter prepends a constraint, used for parent-resource scoping that is
// applied upstream of client parameters.
func (f Features) WithFilter(field string, op Op, value string) Features {
	scoped := Filter{Field: field, Op: op, Value: value}
	f.Filters = append([]Filter{scoped}, f.Filters...)
	return f
}

// splitFilterKey parses "price" or "price[gte]" style parameter names.
func splitFilterKey(key string) (field string, op Op, err error) {
	open := strings.IndexByte(key, '[')
	if open == -1 {
		return key, OpEq, nil
	}

	if !strings.HasSuffix(key, "]") {
		return "", "", apperr.Validation(fmt.Sprintf("Malformed filter parameter %q", key))
	}

	field = key[:open]
	switch Op(key[open+1 : len(key)-1]) {
	case OpGte:
		op = OpGte
	case OpGt:
		op = OpGt
	case OpLte:
		op = OpLte
	case OpLt:
		op = OpLt
	default:
		return "", "", apperr.Validation(fmt.Sprintf("Unsupported filter operator in %q", key))
	}

	if field == "" {
		return "", "", apperr.Validation(fmt.Sprintf("Malformed filter parameter %q", key))
	}

	return field, op, nil
}
