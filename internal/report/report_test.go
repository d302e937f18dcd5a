package report

import (
	"context"
	"strings"
	"testing"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/sqlapi"
)

// echoTransport answers inserts with the records themselves and records
// every request.
type echoTransport struct {
	inserts []*sqlapi.InsertRequest
}

func (e *echoTransport) Select(ctx context.Context, req *sqlapi.SelectRequest) (*sqlapi.QueryResult, error) {
	return &sqlapi.QueryResult{Rows: []map[string]interface{}{}}, nil
}

func (e *echoTransport) Insert(ctx context.Context, req *sqlapi.InsertRequest) ([]map[string]interface{}, error) {
	if len(req.Records) == 0 {
		return nil, sqlapi.Validationf("records must be a non-empty array")
	}
	e.inserts = append(e.inserts, req)
	return req.Records, nil
}

func (e *echoTransport) Update(ctx context.Context, req *sqlapi.UpdateRequest) (*sqlapi.ExecResult, error) {
	return &sqlapi.ExecResult{}, nil
}

func (e *echoTransport) Delete(ctx context.Context, req *sqlapi.DeleteRequest) (*sqlapi.ExecResult, error) {
	return &sqlapi.ExecResult{}, nil
}

func TestIngestDedupsPerSheet(t *testing.T) {
	tr := &echoTransport{}
	svc := NewService(client.New(tr))

	report, issues, err := svc.Ingest(context.Background(), "qa-week12.xlsx", []Sheet{
		{Name: "Paint", Rows: []Row{
			{PartNumber: "X-100", Owner: "Team A"},
			{PartNumber: "X-100", Owner: "Team A"}, // duplicate within sheet
			{PartNumber: "X-200"},
			{PartNumber: ""}, // no part number
		}},
		{Name: "Weld", Rows: []Row{
			{PartNumber: "X-100", Owner: "Team A"}, // same part, new issue type
			{PartNumber: "X-300", Owner: "Team B"},
		}},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(issues) != 4 {
		t.Fatalf("expected 4 deduplicated issues, got %d", len(issues))
	}
	if report.TotalIssues != 4 {
		t.Errorf("report.TotalIssues = %d", report.TotalIssues)
	}
	if report.FileName != "qa-week12.xlsx" {
		t.Errorf("file name = %q", report.FileName)
	}

	// Dedup is scoped to the sheet: X-100/Team A keeps one row per
	// issue type, not just the first sheet's.
	var x100Types []string
	for _, i := range issues {
		if i.PartNumber == "X-100" {
			x100Types = append(x100Types, i.IssueType)
		}
	}
	if len(x100Types) != 2 || x100Types[0] != "Paint" || x100Types[1] != "Weld" {
		t.Errorf("X-100 should keep a Paint and a Weld row, got %v", x100Types)
	}

	// Two inserts: reports first, then issues.
	if len(tr.inserts) != 2 {
		t.Fatalf("expected 2 insert statements, got %d", len(tr.inserts))
	}
	if tr.inserts[0].Table != "reports" || tr.inserts[1].Table != "issues" {
		t.Errorf("insert order: %s, %s", tr.inserts[0].Table, tr.inserts[1].Table)
	}
	for _, rec := range tr.inserts[1].Records {
		if rec["report_id"] != report.ID {
			t.Errorf("issue not tagged with report id: %v", rec)
		}
	}
}

func TestIngestOwnerlessRowsStoreNull(t *testing.T) {
	tr := &echoTransport{}
	svc := NewService(client.New(tr))

	_, issues, err := svc.Ingest(context.Background(), "f.csv", []Sheet{
		{Name: "Paint", Rows: []Row{{PartNumber: "X-1", Owner: "   "}}},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if issues[0].Owner != nil {
		t.Errorf("blank owner should store as null, got %v", *issues[0].Owner)
	}
	rec := tr.inserts[1].Records[0]
	if v, ok := rec["owner"]; !ok || v != nil {
		t.Errorf("owner field must be present and nil: %v", rec)
	}
}

func TestIngestRejectsEmptyUpload(t *testing.T) {
	svc := NewService(client.New(&echoTransport{}))
	_, _, err := svc.Ingest(context.Background(), "empty.csv", []Sheet{
		{Name: "Paint", Rows: []Row{{PartNumber: ""}}},
	})
	if err == nil {
		t.Fatal("expected error for upload with no usable rows")
	}
}

func TestReadSheetWithHeader(t *testing.T) {
	csvData := "Part Number,Owner\nX-100,Team A\nX-200,\n"
	sheet, err := ReadSheet("Paint", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sheet.Name != "Paint" || len(sheet.Rows) != 2 {
		t.Fatalf("sheet = %+v", sheet)
	}
	if sheet.Rows[0].PartNumber != "X-100" || sheet.Rows[0].Owner != "Team A" {
		t.Errorf("row 0 = %+v", sheet.Rows[0])
	}
	if sheet.Rows[1].Owner != "" {
		t.Errorf("row 1 owner = %q", sheet.Rows[1].Owner)
	}
}

func TestReadSheetWithoutHeader(t *testing.T) {
	sheet, err := ReadSheet("Weld", strings.NewReader("X-1,Team A\nX-2\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("rows = %+v", sheet.Rows)
	}
	if sheet.Rows[0].PartNumber != "X-1" || sheet.Rows[1].PartNumber != "X-2" {
		t.Errorf("rows = %+v", sheet.Rows)
	}
}
