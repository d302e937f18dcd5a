// Package sqlapi defines the declarative request and response shapes
// exchanged between the query façade and the statement compiler. The
// same JSON shapes travel over HTTP (POST /query etc.) and in-process.
package sqlapi

import (
	"fmt"
	"strings"
)

// Comparison operators accepted in where conditions.
const (
	OpEq   = "="
	OpNeq  = "!="
	OpGt   = ">"
	OpGte  = ">="
	OpLt   = "<"
	OpLte  = "<="
	OpLike = "LIKE"
)

// Condition is one AND-ed where clause: field <operator> value.
// A nil Value with "=" compiles to IS NULL, with "!=" to IS NOT NULL.
type Condition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// InCondition compiles to field IN (...). Empty Values is a no-op clause.
type InCondition struct {
	Field  string        `json:"field"`
	Values []interface{} `json:"values"`
}

// OrComparison is one clause inside an OR group. Only ilike and eq are
// supported; this mirrors the operation set the dashboard actually uses.
type OrComparison struct {
	Field string
	Op    string // "ilike" or "eq"
	Value string
}

// OrGroup is a set of comparisons joined with OR and parenthesized as a
// unit. Multiple groups on one request are OR-ed together before being
// AND-ed with the rest of the where clause.
type OrGroup []OrComparison

// String renders the group in the compact wire grammar:
// "field.op.value" clauses joined by commas. Values containing '%'
// wildcards pass through verbatim; callers supply their own markers.
func (g OrGroup) String() string {
	parts := make([]string, 0, len(g))
	for _, c := range g {
		parts = append(parts, c.Field+"."+c.Op+"."+c.Value)
	}
	return strings.Join(parts, ",")
}

// ParseOrGroup is the single translation point for the legacy string
// grammar. Each comma-separated clause must be field.op.value; the value
// segment may itself contain dots. Clauses with unknown ops are dropped,
// matching the tolerant behavior the dashboard depends on.
func ParseOrGroup(raw string) OrGroup {
	var group OrGroup
	for _, clause := range strings.Split(raw, ",") {
		parts := strings.SplitN(clause, ".", 3)
		if len(parts) < 3 {
			continue
		}
		op := parts[1]
		if op != "ilike" && op != "eq" {
			continue
		}
		group = append(group, OrComparison{Field: parts[0], Op: op, Value: parts[2]})
	}
	return group
}

// SelectRequest describes a SELECT. The wire field names match the
// original dashboard protocol.
type SelectRequest struct {
	Table          string        `json:"table"`
	Select         string        `json:"select"`
	Where          []Condition   `json:"where"`
	Or             []string      `json:"or"`
	In             []InCondition `json:"in"`
	OrderBy        string        `json:"orderBy,omitempty"`
	OrderDirection string        `json:"orderDirection,omitempty"`
	Limit          *int          `json:"limit"`
	Offset         int           `json:"offset"`
	Single         bool          `json:"single"`
}

// InsertRequest describes a transactional batch insert.
type InsertRequest struct {
	Table   string                   `json:"table"`
	Records []map[string]interface{} `json:"records"`
}

// UpdateRequest describes a guarded UPDATE. At least one where or in
// condition is required.
type UpdateRequest struct {
	Table   string                 `json:"table"`
	Updates map[string]interface{} `json:"updates"`
	Where   []Condition            `json:"where"`
	In      []InCondition          `json:"in"`
}

// DeleteRequest describes a guarded DELETE.
type DeleteRequest struct {
	Table string      `json:"table"`
	Where []Condition `json:"where"`
}

// QueryResult is the SELECT outcome: the page of rows plus the total
// row count for the same where clause, independent of limit/offset.
type QueryResult struct {
	Rows  []map[string]interface{}
	Count int
}

// ExecResult is the UPDATE/DELETE outcome.
type ExecResult struct {
	AffectedRows int64 `json:"affectedRows"`
}

// ValidationError marks a request rejected before touching the store:
// unguarded mutation or an empty insert batch. Surfaced as HTTP 400 and
// never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
