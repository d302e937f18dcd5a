package compiler

import (
	"fmt"
	"strings"

	"github.com/solidqa/partboard/internal/sqlapi"
)

var allowedOperators = map[string]bool{
	sqlapi.OpEq:   true,
	sqlapi.OpNeq:  true,
	sqlapi.OpGt:   true,
	sqlapi.OpGte:  true,
	sqlapi.OpLt:   true,
	sqlapi.OpLte:  true,
	sqlapi.OpLike: true,
}

// buildWhere compiles conditions, OR groups and IN lists into a WHERE
// clause with bound parameters. Field names are interpolated as-is;
// values are always parameterized. All top-level parts join with AND.
//
// NULL semantics: value nil with "=" becomes IS NULL, with "!=" becomes
// IS NOT NULL. Any other operator passes nil through as a parameter
// (caller error, not defended against).
func buildWhere(conds []sqlapi.Condition, orRaw []string, ins []sqlapi.InCondition) (string, []interface{}, error) {
	var whereParts []string
	var args []interface{}

	for _, c := range conds {
		if !allowedOperators[c.Operator] {
			return "", nil, sqlapi.Validationf("unsupported operator %q", c.Operator)
		}
		if c.Value == nil {
			switch c.Operator {
			case sqlapi.OpEq:
				whereParts = append(whereParts, c.Field+" IS NULL")
			case sqlapi.OpNeq:
				whereParts = append(whereParts, c.Field+" IS NOT NULL")
			default:
				whereParts = append(whereParts, fmt.Sprintf("%s %s ?", c.Field, c.Operator))
				args = append(args, nil)
			}
			continue
		}
		whereParts = append(whereParts, fmt.Sprintf("%s %s ?", c.Field, c.Operator))
		args = append(args, c.Value)
	}

	for _, in := range ins {
		if len(in.Values) == 0 {
			continue
		}
		placeholders := make([]string, len(in.Values))
		for i, v := range in.Values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		whereParts = append(whereParts, fmt.Sprintf("%s IN (%s)", in.Field, strings.Join(placeholders, ", ")))
	}

	// OR groups parenthesize as a unit and AND with everything else.
	// MySQL LIKE is case-insensitive under the default _ci collations,
	// so ilike compiles to plain LIKE. Wildcard markers pass through
	// inside the bound value; callers supply their own %.
	var orParts []string
	for _, raw := range orRaw {
		group := sqlapi.ParseOrGroup(raw)
		var subParts []string
		for _, cmp := range group {
			switch cmp.Op {
			case "ilike":
				subParts = append(subParts, cmp.Field+" LIKE ?")
				args = append(args, cmp.Value)
			case "eq":
				subParts = append(subParts, cmp.Field+" = ?")
				args = append(args, cmp.Value)
			}
		}
		if len(subParts) > 0 {
			orParts = append(orParts, "("+strings.Join(subParts, " OR ")+")")
		}
	}
	if len(orParts) > 0 {
		whereParts = append(whereParts, "("+strings.Join(orParts, " OR ")+")")
	}

	if len(whereParts) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(whereParts, " AND "), args, nil
}
