// Package compiler turns declarative select/insert/update/delete
// requests into parameterized MySQL statements and executes them.
// Identifiers (table, fields, order-by) are interpolated and trusted;
// they must come from fixed application code paths. Values are always
// bound as parameters.
package compiler

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/solidqa/partboard/internal/debug"
	"github.com/solidqa/partboard/internal/sqlapi"
	"github.com/solidqa/partboard/internal/telemetry"
)

// Runner executes compiled statements against a MySQL pool. It is safe
// for concurrent use; all statement kinds run on the shared pool and
// only Insert opens a transaction.
type Runner struct {
	db *sql.DB
}

// New returns a Runner over the given pool.
func New(db *sql.DB) *Runner {
	return &Runner{db: db}
}

var stmtMetrics struct {
	once     sync.Once
	executed metric.Int64Counter
}

func recordStatement(ctx context.Context, kind string) {
	stmtMetrics.once.Do(func() {
		m := telemetry.Meter("github.com/solidqa/partboard/internal/compiler")
		stmtMetrics.executed, _ = m.Int64Counter("pb.sql.statements",
			metric.WithDescription("Compiled SQL statements executed"))
	})
	if stmtMetrics.executed != nil {
		stmtMetrics.executed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Select runs the data query and its paired COUNT(*) concurrently. Both
// share the identical where clause and bound args, so Count is the total
// matching rows regardless of limit/offset.
func (r *Runner) Select(ctx context.Context, req *sqlapi.SelectRequest) (*sqlapi.QueryResult, error) {
	recordStatement(ctx, "select")
	sel := req.Select
	if sel == "" {
		sel = "*"
	}
	where, args, err := buildWhere(req.Where, req.Or, req.In)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", sel, req.Table)
	if where != "" {
		sb.WriteString(" " + where)
	}
	if req.OrderBy != "" {
		dir := "ASC"
		if strings.EqualFold(req.OrderDirection, "desc") {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", req.OrderBy, dir)
	}
	if req.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *req.Limit)
		if req.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", req.Offset)
		}
	}
	query := sb.String()

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", req.Table)
	if where != "" {
		countQuery += " " + where
	}
	debug.Logf("compiler: %s %v", query, args)

	var rows []map[string]interface{}
	var count int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = queryMaps(gctx, r.db, query, args...)
		return err
	})
	g.Go(func() error {
		return r.db.QueryRowContext(gctx, countQuery, args...).Scan(&count)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &sqlapi.QueryResult{Rows: rows, Count: count}, nil
}

// Insert writes the batch in one transaction and returns the stored
// form of every row, re-fetched after insert so defaults and normalized
// timestamps come back as the database holds them. Any failure rolls
// back the whole batch.
func (r *Runner) Insert(ctx context.Context, req *sqlapi.InsertRequest) ([]map[string]interface{}, error) {
	recordStatement(ctx, "insert")
	if len(req.Records) == 0 {
		return nil, sqlapi.Validationf("records must be a non-empty array")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]map[string]interface{}, 0, len(req.Records))
	for _, rec := range req.Records {
		prepared := prepareRecord(rec)

		fields := make([]string, 0, len(prepared))
		for k := range prepared {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		placeholders := make([]string, len(fields))
		values := make([]interface{}, len(fields))
		for i, f := range fields {
			placeholders[i] = "?"
			values[i] = prepared[f]
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			req.Table, strings.Join(fields, ", "), strings.Join(placeholders, ", "))
		res, err := tx.ExecContext(ctx, query, values...)
		if err != nil {
			return nil, fmt.Errorf("insert into %s failed: %w", req.Table, err)
		}

		// Rows with an application-assigned id re-fetch by that id;
		// auto-increment tables use LAST_INSERT_ID.
		var fetchID interface{}
		if id, ok := prepared["id"]; ok && id != nil {
			fetchID = id
		} else {
			fetchID, err = res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("insert into %s failed: %w", req.Table, err)
			}
		}
		stored, err := queryMaps(ctx, tx, fmt.Sprintf("SELECT * FROM %s WHERE id = ?", req.Table), fetchID)
		if err != nil {
			return nil, fmt.Errorf("insert into %s failed: %w", req.Table, err)
		}
		if len(stored) > 0 {
			inserted = append(inserted, stored[0])
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// Update runs a guarded bulk UPDATE. Requests without any where or in
// condition are rejected before touching the store.
func (r *Runner) Update(ctx context.Context, req *sqlapi.UpdateRequest) (*sqlapi.ExecResult, error) {
	recordStatement(ctx, "update")
	if len(req.Updates) == 0 {
		return nil, sqlapi.Validationf("updates must be a non-empty object")
	}
	where, whereArgs, err := buildWhere(req.Where, nil, req.In)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return nil, sqlapi.Validationf("WHERE clause is required for UPDATE operations")
	}

	prepared := prepareRecord(req.Updates)
	fields := make([]string, 0, len(prepared))
	for k := range prepared {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	setParts := make([]string, len(fields))
	args := make([]interface{}, 0, len(fields)+len(whereArgs))
	for i, f := range fields {
		setParts[i] = f + " = ?"
		args = append(args, prepared[f])
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s %s", req.Table, strings.Join(setParts, ", "), where)
	debug.Logf("compiler: %s %v", query, args)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s failed: %w", req.Table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s failed: %w", req.Table, err)
	}
	return &sqlapi.ExecResult{AffectedRows: affected}, nil
}

// Delete runs a guarded DELETE with the same empty-filter rejection as
// Update.
func (r *Runner) Delete(ctx context.Context, req *sqlapi.DeleteRequest) (*sqlapi.ExecResult, error) {
	recordStatement(ctx, "delete")
	where, args, err := buildWhere(req.Where, nil, nil)
	if err != nil {
		return nil, err
	}
	if where == "" {
		return nil, sqlapi.Validationf("WHERE clause is required for DELETE operations")
	}

	query := fmt.Sprintf("DELETE FROM %s %s", req.Table, where)
	debug.Logf("compiler: %s %v", query, args)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete from %s failed: %w", req.Table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete from %s failed: %w", req.Table, err)
	}
	return &sqlapi.ExecResult{AffectedRows: affected}, nil
}

// queryMaps scans a result set into generic rows. []byte columns become
// strings so the rows JSON-encode as text rather than base64.
func queryMaps(ctx context.Context, q querier, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
