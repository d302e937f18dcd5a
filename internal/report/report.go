// Package report implements spreadsheet ingestion: raw rows from an
// uploaded file become one reports row plus a deduplicated batch of
// issues rows, all tagged with the upload's report id.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/debug"
	"github.com/solidqa/partboard/internal/dedup"
	"github.com/solidqa/partboard/internal/types"
)

// Sheet is one category worth of upload rows. The sheet name becomes
// the issue_type of every row it contributes.
type Sheet struct {
	Name string
	Rows []Row
}

// Row is one raw spreadsheet line.
type Row struct {
	PartNumber string
	Owner      string
}

// Service ingests uploads through the query façade.
type Service struct {
	db *client.DB
}

// NewService returns an ingestion service.
func NewService(db *client.DB) *Service {
	return &Service{db: db}
}

// Ingest stores one upload: dedups each sheet's rows, writes the report
// row, then the issues batch. Returns the stored report and issues.
//
// Dedup is scoped to the sheet, so a part listed in two sheets keeps a
// row per sheet, one per issue type.
//
// The two inserts are separate statements; a crash between them leaves
// a report without issues, which the dashboard tolerates.
func (s *Service) Ingest(ctx context.Context, fileName string, sheets []Sheet) (*types.Report, []types.Issue, error) {
	now := time.Now().UTC()
	reportID := uuid.NewString()

	var issues []types.Issue
	rawCount := 0
	for _, sheet := range sheets {
		raw := make([]types.Issue, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			raw = append(raw, types.Issue{
				PartNumber: strings.TrimSpace(row.PartNumber),
				Owner:      types.OwnerOf(row.Owner),
				IssueType:  sheet.Name,
				ReportID:   reportID,
				CreatedAt:  now,
			})
		}
		rawCount += len(raw)
		issues = append(issues, dedup.Ingest(raw)...)
	}
	if len(issues) == 0 {
		return nil, nil, fmt.Errorf("no usable rows in %s", fileName)
	}
	debug.Logf("report: %s has %d raw rows, %d after dedup", fileName, rawCount, len(issues))

	res := s.db.From(types.TableReports).Insert(ctx, map[string]interface{}{
		"id":           reportID,
		"file_name":    fileName,
		"uploaded_at":  now.Format(time.RFC3339),
		"total_issues": len(issues),
	})
	if res.Err != nil {
		return nil, nil, fmt.Errorf("store report: %w", res.Err)
	}
	if len(res.Data) == 0 {
		return nil, nil, fmt.Errorf("store report: no row returned")
	}
	stored := types.ReportFromRecord(res.Data[0])

	records := make([]map[string]interface{}, 0, len(issues))
	for _, issue := range issues {
		rec := map[string]interface{}{
			"id":           uuid.NewString(),
			"part_number":  issue.PartNumber,
			"owner":        nil,
			"issue_type":   issue.IssueType,
			"report_id":    reportID,
			"created_at":   now.Format(time.RFC3339),
			"is_corrected": false,
		}
		if issue.Owner != nil {
			rec["owner"] = *issue.Owner
		}
		records = append(records, rec)
	}
	res = s.db.From(types.TableIssues).Insert(ctx, records...)
	if res.Err != nil {
		return nil, nil, fmt.Errorf("store issues: %w", res.Err)
	}
	return &stored, types.IssuesFromRecords(res.Data), nil
}

// List returns all reports, newest first.
func (s *Service) List(ctx context.Context) ([]types.Report, error) {
	res := s.db.From(types.TableReports).
		Order("uploaded_at", false).
		Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("list reports: %w", res.Err)
	}
	return types.ReportsFromRecords(res.Data), nil
}

// Latest returns the most recent report, or nil when nothing has been
// uploaded yet.
func (s *Service) Latest(ctx context.Context) (*types.Report, error) {
	res := s.db.From(types.TableReports).
		Order("uploaded_at", false).
		Single().
		Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("latest report: %w", res.Err)
	}
	if res.Row == nil {
		return nil, nil
	}
	r := types.ReportFromRecord(res.Row)
	return &r, nil
}
