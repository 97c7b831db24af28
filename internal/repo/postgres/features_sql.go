package postgres

import (
	"fmt"
	"strings"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/query"
)

// columnMap translates the JSON field names clients use into SQL columns.
// Anything absent is not queryable, whatever the request says.
type columnMap map[string]string

var sqlOps = map[query.Op]string{
	query.OpEq:  "=",
	query.OpGte: ">=",
	query.OpGt:  ">",
	query.OpLte: "<=",
	query.OpLt:  "<",
}

// buildListQuery compiles query features into one SELECT. The features are
// a pure description; this is the single point where they turn into SQL,
// executed exactly once by the calling repository.
func buildListQuery(baseSelect string, cols columnMap, f query.Features) (string, []any, error) {
	var conds []string
	var args []any

	argsPosition := 1

	for _, filter := range f.Filters {
		col, ok := cols[filter.Field]
		if !ok {
			return "", nil, apperr.Validation(fmt.Sprintf("Cannot filter on field %q", filter.Field))
		}
		op, ok := sqlOps[filter.Op]
		if !ok {
			return "", nil, apperr.Validation(fmt.Sprintf("Unsupported filter operator %q", filter.Op))
		}

		conds = append(conds, fmt.Sprintf("%s %s $%d", col, op, argsPosition))
		args = append(args, filter.Value)
		argsPosition++
	}

	sql := baseSelect

	if len(conds) > 0 {
		if strings.Contains(baseSelect, " WHERE ") {
			sql += " AND " + strings.Join(conds, " AND ")
		} else {
			sql += " WHERE " + strings.Join(conds, " AND ")
		}
	}

	var orderKeys []string
	for _, key := range f.Sort {
		col, ok := cols[key.Field]
		if !ok {
			return "", nil, apperr.Validation(fmt.Sprintf("Cannot sort on field %q", key.Field))
		}
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		orderKeys = append(orderKeys, col+" "+dir)
	}
	// stable tiebreak mirroring insertion order
	orderKeys = append(orderKeys, "created_at ASC", "id ASC")

	sql += " ORDER BY " + strings.Join(orderKeys, ", ")
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)
	args = append(args, f.Limit, f.Offset())

	return sql, args, nil
}
