package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/sqlapi"
)

type stubTransport struct {
	issueRows  []map[string]interface{}
	reportRows []map[string]interface{}
}

func (s *stubTransport) Select(ctx context.Context, req *sqlapi.SelectRequest) (*sqlapi.QueryResult, error) {
	rows := s.issueRows
	if req.Table == "reports" {
		rows = s.reportRows
	}
	return &sqlapi.QueryResult{Rows: rows, Count: len(rows)}, nil
}

func (s *stubTransport) Insert(ctx context.Context, req *sqlapi.InsertRequest) ([]map[string]interface{}, error) {
	return req.Records, nil
}

func (s *stubTransport) Update(ctx context.Context, req *sqlapi.UpdateRequest) (*sqlapi.ExecResult, error) {
	return &sqlapi.ExecResult{}, nil
}

func (s *stubTransport) Delete(ctx context.Context, req *sqlapi.DeleteRequest) (*sqlapi.ExecResult, error) {
	return &sqlapi.ExecResult{}, nil
}

func TestAskWithoutKeyReturnsNotice(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	svc := New("", "", client.New(&stubTransport{}))
	if svc.Available() {
		t.Fatal("service should not be available without a key")
	}
	answer, err := svc.Ask(context.Background(), "how are we doing?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != missingKeyAnswer {
		t.Errorf("answer = %q", answer)
	}
}

func TestBuildContextShapes(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	tr := &stubTransport{
		issueRows: []map[string]interface{}{
			{"id": "i1", "part_number": "X-1", "owner": "Team A", "issue_type": "Paint",
				"report_id": "r1", "created_at": "2024-03-01T09:00:00Z", "is_corrected": false},
			{"id": "i2", "part_number": "X-1", "owner": "Team A", "issue_type": "Weld",
				"report_id": "r1", "created_at": "2024-03-01T09:00:00Z", "is_corrected": true},
			{"id": "i3", "part_number": "X-2", "owner": nil, "issue_type": "Paint",
				"report_id": "r2", "created_at": "2024-03-08T09:00:00Z", "is_corrected": false},
		},
		reportRows: []map[string]interface{}{
			{"id": "r1", "file_name": "week1.xlsx", "uploaded_at": "2024-03-01T09:00:00Z", "total_issues": 2},
			{"id": "r2", "file_name": "week2.xlsx", "uploaded_at": "2024-03-08T09:00:00Z", "total_issues": 1},
		},
	}
	svc := New("", "", client.New(tr))

	data, err := svc.buildContext(context.Background())
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if data.Summary.TotalIssues != 3 || data.Summary.OpenIssues != 2 {
		t.Errorf("summary = %+v", data.Summary)
	}
	if len(data.Reports) != 2 {
		t.Fatalf("reports = %+v", data.Reports)
	}
	r1 := data.Reports[0]
	if r1.IssueCount != 2 || r1.OpenIssues != 1 {
		t.Errorf("r1 stats = %+v", r1)
	}
	// Parts are grouped by identity, so X-1's two rows collapse.
	if len(data.Parts) != 2 {
		t.Errorf("parts = %+v", data.Parts)
	}
}

func TestSystemPromptEmbedsContext(t *testing.T) {
	if !strings.Contains(systemPromptTemplate, "Q-Bot") {
		t.Error("prompt lost its persona")
	}
	if !strings.Contains(systemPromptTemplate, "%s") {
		t.Error("prompt has no context slot")
	}
}
