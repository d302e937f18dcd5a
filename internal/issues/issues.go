// Package issues is the service layer over the issues table: grouped
// part listings, bulk correction by part identity, and per-part
// history.
package issues

import (
	"context"
	"fmt"
	"time"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/dedup"
	"github.com/solidqa/partboard/internal/sqlapi"
	"github.com/solidqa/partboard/internal/types"
)

// Service runs issue operations through the query façade.
type Service struct {
	db *client.DB
}

// NewService returns an issues service.
func NewService(db *client.DB) *Service {
	return &Service{db: db}
}

// ListOptions select and page a part listing.
type ListOptions struct {
	Search  string // matches part_number or owner, substring, case-insensitive
	Page    int    // 1-based; defaults to 1
	PerPage int    // defaults to 10
}

// Page is one page of grouped parts plus the total group count.
type Page struct {
	Groups []types.PartGroup
	Total  int
}

// ListOpen returns open parts grouped by identity, newest first.
// Grouping happens before pagination, so a part never splits across
// pages and the total counts groups, not rows.
func (s *Service) ListOpen(ctx context.Context, opts ListOptions) (*Page, error) {
	return s.list(ctx, false, "created_at", opts)
}

// ListCorrected returns corrected parts, most recently corrected first.
func (s *Service) ListCorrected(ctx context.Context, opts ListOptions) (*Page, error) {
	return s.list(ctx, true, "corrected_at", opts)
}

func (s *Service) list(ctx context.Context, corrected bool, orderBy string, opts ListOptions) (*Page, error) {
	q := s.db.From(types.TableIssues).
		Eq("is_corrected", corrected).
		Order(orderBy, false)
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		q = q.Or(sqlapi.OrGroup{
			{Field: "part_number", Op: "ilike", Value: pattern},
			{Field: "owner", Op: "ilike", Value: pattern},
		})
	}
	res := q.Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("list issues: %w", res.Err)
	}

	groups := dedup.MergeIssues(types.IssuesFromRecords(res.Data))
	page, total := dedup.Paginate(groups, opts.Page, opts.PerPage)
	return &Page{Groups: page, Total: total}, nil
}

// identityFilter scopes a builder to one part identity. A nil owner
// matches rows whose owner is NULL, not the string "null".
func identityFilter(q *client.QueryBuilder, id types.PartIdentity) *client.QueryBuilder {
	q = q.Eq("part_number", id.PartNumber)
	if id.Owner != nil {
		return q.Eq("owner", *id.Owner)
	}
	return q.Eq("owner", nil)
}

// MarkCorrected closes every issue row of the part identity, whatever
// its issue type, stamping corrected_at with the current time. Returns
// the number of rows touched. Already-corrected rows just get a fresh
// timestamp; repeating the call is harmless.
func (s *Service) MarkCorrected(ctx context.Context, id types.PartIdentity) (int64, error) {
	res := identityFilter(s.db.From(types.TableIssues), id).
		Update(ctx, map[string]interface{}{
			"is_corrected": true,
			"corrected_at": time.Now().UTC().Format(time.RFC3339),
		})
	if res.Err != nil {
		return 0, fmt.Errorf("mark corrected %s: %w", id, res.Err)
	}
	return res.AffectedRows(), nil
}

// MarkIncorrect reopens the part identity, clearing corrected_at.
func (s *Service) MarkIncorrect(ctx context.Context, id types.PartIdentity) (int64, error) {
	res := identityFilter(s.db.From(types.TableIssues), id).
		Update(ctx, map[string]interface{}{
			"is_corrected": false,
			"corrected_at": nil,
		})
	if res.Err != nil {
		return 0, fmt.Errorf("mark incorrect %s: %w", id, res.Err)
	}
	return res.AffectedRows(), nil
}

// History lists every issue row ever recorded for the part identity,
// oldest first, across all reports.
func (s *Service) History(ctx context.Context, id types.PartIdentity) ([]types.Issue, error) {
	res := identityFilter(s.db.From(types.TableIssues), id).
		Order("created_at", true).
		Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("history %s: %w", id, res.Err)
	}
	return types.IssuesFromRecords(res.Data), nil
}

// ByReport lists the issue rows of one upload.
func (s *Service) ByReport(ctx context.Context, reportID string) ([]types.Issue, error) {
	res := s.db.From(types.TableIssues).
		Eq("report_id", reportID).
		Order("created_at", true).
		Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("issues for report %s: %w", reportID, res.Err)
	}
	return types.IssuesFromRecords(res.Data), nil
}
