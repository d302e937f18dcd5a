package client

import (
	"context"

	"github.com/solidqa/partboard/internal/sqlapi"
)

// DB is the entry point of the query façade.
type DB struct {
	transport Transport
}

// New wraps a transport in the façade.
func New(t Transport) *DB {
	return &DB{transport: t}
}

// Transport exposes the underlying transport for callers that need to
// issue raw statement requests.
func (d *DB) Transport() Transport {
	return d.transport
}

// From starts a builder against the given table.
func (d *DB) From(table string) *QueryBuilder {
	return &QueryBuilder{transport: d.transport, table: table}
}

// QueryBuilder accumulates filters and modifiers, then executes through
// one of the terminal methods. Builders are single-use and not safe for
// concurrent mutation.
type QueryBuilder struct {
	transport Transport
	table     string
	selectCol string
	where     []sqlapi.Condition
	orGroups  []string
	in        []sqlapi.InCondition
	orderBy   string
	orderDir  string
	limit     *int
	offset    int
	single    bool
}

// Select sets the projection (default "*").
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.selectCol = columns
	return q
}

func (q *QueryBuilder) cond(field, op string, value interface{}) *QueryBuilder {
	q.where = append(q.where, sqlapi.Condition{Field: field, Operator: op, Value: value})
	return q
}

// Eq adds field = value. A nil value compiles to IS NULL.
func (q *QueryBuilder) Eq(field string, value interface{}) *QueryBuilder {
	return q.cond(field, sqlapi.OpEq, value)
}

// Neq adds field != value. A nil value compiles to IS NOT NULL.
func (q *QueryBuilder) Neq(field string, value interface{}) *QueryBuilder {
	return q.cond(field, sqlapi.OpNeq, value)
}

func (q *QueryBuilder) Gt(field string, value interface{}) *QueryBuilder {
	return q.cond(field, sqlapi.OpGt, value)
}

func (q *QueryBuilder) Gte(field string, value interface{}) *QueryBuilder {
	return q.cond(field, sqlapi.OpGte, value)
}

func (q *QueryBuilder) Lt(field string, value interface{}) *QueryBuilder {
	return q.cond(field, sqlapi.OpLt, value)
}

func (q *QueryBuilder) Lte(field string, value interface{}) *QueryBuilder {
	return q.cond(field, sqlapi.OpLte, value)
}

// Like adds a case-sensitive pattern match. The caller supplies any %
// wildcards; they pass through to the bound value untouched.
func (q *QueryBuilder) Like(field, pattern string) *QueryBuilder {
	return q.cond(field, sqlapi.OpLike, pattern)
}

// Ilike is the case-insensitive variant. MySQL's default collations
// make this identical to Like at execution time.
func (q *QueryBuilder) Ilike(field, pattern string) *QueryBuilder {
	return q.cond(field, sqlapi.OpLike, pattern)
}

// In adds field IN (values...). Empty values is a no-op filter.
func (q *QueryBuilder) In(field string, values ...interface{}) *QueryBuilder {
	q.in = append(q.in, sqlapi.InCondition{Field: field, Values: values})
	return q
}

// Or adds a parenthesized OR group, AND-ed with all other filters.
func (q *QueryBuilder) Or(group sqlapi.OrGroup) *QueryBuilder {
	if len(group) > 0 {
		q.orGroups = append(q.orGroups, group.String())
	}
	return q
}

// Order sets the sort column and direction.
func (q *QueryBuilder) Order(field string, ascending bool) *QueryBuilder {
	q.orderBy = field
	if ascending {
		q.orderDir = "asc"
	} else {
		q.orderDir = "desc"
	}
	return q
}

// Limit caps the page size.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = &n
	return q
}

// Range selects the inclusive row window [from, to].
func (q *QueryBuilder) Range(from, to int) *QueryBuilder {
	q.offset = from
	n := to - from + 1
	q.limit = &n
	return q
}

// Single marks the query as expecting at most one row. The limit is
// forced to 1 and the result carries the row (or nil) instead of a page.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	one := 1
	q.limit = &one
	return q
}

// Result is the uniform outcome of every façade operation. Failed
// operations carry Err and empty data; nothing panics.
type Result struct {
	Data  []map[string]interface{}
	Row   map[string]interface{} // set by Single(); nil when no row matched
	Count int
	Err   error
}

// AffectedRows reads the row count of an update/delete result.
func (r Result) AffectedRows() int64 {
	if len(r.Data) == 1 {
		if v, ok := r.Data[0]["affectedRows"]; ok {
			switch n := v.(type) {
			case int64:
				return n
			case float64:
				return int64(n)
			}
		}
	}
	return 0
}

func (q *QueryBuilder) selectRequest() *sqlapi.SelectRequest {
	return &sqlapi.SelectRequest{
		Table:          q.table,
		Select:         q.selectCol,
		Where:          q.where,
		Or:             q.orGroups,
		In:             q.in,
		OrderBy:        q.orderBy,
		OrderDirection: q.orderDir,
		Limit:          q.limit,
		Offset:         q.offset,
		Single:         q.single,
	}
}

// Execute runs the accumulated SELECT.
func (q *QueryBuilder) Execute(ctx context.Context) Result {
	res, err := q.transport.Select(ctx, q.selectRequest())
	if err != nil {
		return Result{Err: err}
	}
	out := Result{Data: res.Rows, Count: res.Count}
	if q.single && len(res.Rows) > 0 {
		out.Row = res.Rows[0]
	}
	return out
}

// Insert writes the records in one transaction and returns their stored
// form.
func (q *QueryBuilder) Insert(ctx context.Context, records ...map[string]interface{}) Result {
	rows, err := q.transport.Insert(ctx, &sqlapi.InsertRequest{Table: q.table, Records: records})
	if err != nil {
		return Result{Err: err}
	}
	return Result{Data: rows, Count: len(rows)}
}

// Update applies the accumulated filters to a bulk update. The server
// rejects an empty filter set, so forgetting Eq/In is an error, not a
// full-table write.
func (q *QueryBuilder) Update(ctx context.Context, updates map[string]interface{}) Result {
	res, err := q.transport.Update(ctx, &sqlapi.UpdateRequest{
		Table:   q.table,
		Updates: updates,
		Where:   q.where,
		In:      q.in,
	})
	if err != nil {
		return Result{Err: err}
	}
	return Result{
		Data:  []map[string]interface{}{{"affectedRows": res.AffectedRows}},
		Count: int(res.AffectedRows),
	}
}

// Delete removes the rows matching the accumulated filters, with the
// same empty-filter rejection as Update.
func (q *QueryBuilder) Delete(ctx context.Context) Result {
	res, err := q.transport.Delete(ctx, &sqlapi.DeleteRequest{Table: q.table, Where: q.where})
	if err != nil {
		return Result{Err: err}
	}
	return Result{
		Data:  []map[string]interface{}{{"affectedRows": res.AffectedRows}},
		Count: int(res.AffectedRows),
	}
}
