package dedup

import (
	"testing"
	"time"

	"github.com/solidqa/partboard/internal/types"
)

func strPtr(s string) *string { return &s }

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIngestFirstOccurrenceWins(t *testing.T) {
	rows := []types.Issue{
		{ID: "i1", PartNumber: "X-100", Owner: strPtr("Team A"), IssueType: "Paint"},
		{ID: "i2", PartNumber: "X-100", Owner: strPtr("Team A"), IssueType: "Paint"},
		{ID: "i3", PartNumber: "X-100", Owner: strPtr("Team B"), IssueType: "Paint"},
		{ID: "i4", PartNumber: "X-100", IssueType: "Paint"},
	}
	out := Ingest(rows)
	if len(out) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out))
	}
	if out[0].ID != "i1" {
		t.Errorf("first occurrence should win, got %s", out[0].ID)
	}
}

func TestIngestDropsEmptyPartNumber(t *testing.T) {
	rows := []types.Issue{
		{PartNumber: "", Owner: strPtr("Team A"), IssueType: "Paint"},
		{PartNumber: "X-1", IssueType: "Paint"},
	}
	out := Ingest(rows)
	if len(out) != 1 || out[0].PartNumber != "X-1" {
		t.Errorf("empty part numbers must be dropped: %v", out)
	}
}

func TestIngestOwnerNilDistinctFromNullString(t *testing.T) {
	rows := []types.Issue{
		{PartNumber: "X-1", IssueType: "Paint"},
		{PartNumber: "X-1", Owner: strPtr("null"), IssueType: "Paint"},
	}
	if out := Ingest(rows); len(out) != 2 {
		t.Errorf("owner nil and owner \"null\" are different identities, got %d rows", len(out))
	}
}

func TestMergeCombinesIssueTypes(t *testing.T) {
	issues := []types.Issue{
		{ID: "i1", PartNumber: "X-1", Owner: strPtr("Team A"), IssueType: "Paint", CreatedAt: ts("2024-03-02 09:00:00")},
		{ID: "i2", PartNumber: "X-1", Owner: strPtr("Team A"), IssueType: "Weld", CreatedAt: ts("2024-03-01 09:00:00")},
		{ID: "i3", PartNumber: "X-1", Owner: strPtr("Team A"), IssueType: "Paint", CreatedAt: ts("2024-03-03 09:00:00")},
		{ID: "i4", PartNumber: "X-2", Owner: strPtr("Team A"), IssueType: "Paint", CreatedAt: ts("2024-03-01 10:00:00")},
	}
	groups := MergeIssues(issues)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	g := groups[0]
	if g.ID != "i1" {
		t.Errorf("group keeps the first-seen row id, got %s", g.ID)
	}
	if g.IssueTypes != "Paint, Weld" {
		t.Errorf("issue types = %q, want \"Paint, Weld\"", g.IssueTypes)
	}
	if !g.CreatedAt.Equal(ts("2024-03-01 09:00:00")) {
		t.Errorf("created_at should be the earliest, got %v", g.CreatedAt)
	}
}

func TestMergeIdempotent(t *testing.T) {
	groups := []types.PartGroup{
		{ID: "i1", PartNumber: "X-1", IssueTypes: "Paint, Weld", CreatedAt: ts("2024-03-01 09:00:00")},
		{ID: "i2", PartNumber: "X-1", IssueTypes: "Weld, Dent", CreatedAt: ts("2024-03-02 09:00:00")},
	}
	out := Merge(groups)
	if len(out) != 1 {
		t.Fatalf("expected 1 group, got %d", len(out))
	}
	if out[0].IssueTypes != "Paint, Weld, Dent" {
		t.Errorf("re-merge must not duplicate tokens: %q", out[0].IssueTypes)
	}
	again := Merge(out)
	if again[0].IssueTypes != "Paint, Weld, Dent" {
		t.Errorf("merge not idempotent: %q", again[0].IssueTypes)
	}
}

func TestMergeOwnerBuckets(t *testing.T) {
	issues := []types.Issue{
		{ID: "i1", PartNumber: "X-1", IssueType: "Paint"},
		{ID: "i2", PartNumber: "X-1", Owner: strPtr("null"), IssueType: "Weld"},
		{ID: "i3", PartNumber: "X-1", Owner: strPtr("Team A"), IssueType: "Dent"},
	}
	groups := MergeIssues(issues)
	if len(groups) != 3 {
		t.Fatalf("each owner bucket is its own group, got %d", len(groups))
	}
}

func TestMergeCorrectionState(t *testing.T) {
	early := ts("2024-03-10 08:00:00")
	late := ts("2024-03-12 08:00:00")
	groups := Merge([]types.PartGroup{
		{ID: "i1", PartNumber: "X-1", IssueTypes: "Paint", IsCorrected: true, CorrectedAt: &early},
		{ID: "i2", PartNumber: "X-1", IssueTypes: "Weld", IsCorrected: true, CorrectedAt: &late},
	})
	g := groups[0]
	if !g.IsCorrected {
		t.Error("all-corrected group should be corrected")
	}
	if g.CorrectedAt == nil || !g.CorrectedAt.Equal(late) {
		t.Errorf("corrected_at should be the latest, got %v", g.CorrectedAt)
	}

	// One corrected row marks the whole part corrected, even when a
	// later report reopens it with a fresh row.
	mixed := Merge([]types.PartGroup{
		{ID: "i1", PartNumber: "X-1", IssueTypes: "Paint", IsCorrected: true, CorrectedAt: &early},
		{ID: "i2", PartNumber: "X-1", IssueTypes: "Weld"},
	})
	if !mixed[0].IsCorrected {
		t.Error("any corrected row should mark the group corrected")
	}

	reversed := Merge([]types.PartGroup{
		{ID: "i1", PartNumber: "X-1", IssueTypes: "Paint"},
		{ID: "i2", PartNumber: "X-1", IssueTypes: "Weld", IsCorrected: true, CorrectedAt: &late},
	})
	if !reversed[0].IsCorrected {
		t.Error("corrected row arriving second should still mark the group corrected")
	}
}

func TestPaginateAfterGrouping(t *testing.T) {
	var groups []types.PartGroup
	for i := 0; i < 25; i++ {
		groups = append(groups, types.PartGroup{PartNumber: string(rune('A' + i))})
	}
	page, total := Paginate(groups, 3, 10)
	if total != 25 {
		t.Errorf("total = %d", total)
	}
	if len(page) != 5 {
		t.Errorf("last page should hold the remainder, got %d", len(page))
	}
	empty, total := Paginate(groups, 4, 10)
	if len(empty) != 0 || total != 25 {
		t.Errorf("out-of-range page should be empty, got %d", len(empty))
	}
}

func TestCategoriesSortedDistinctTokens(t *testing.T) {
	cats := Categories([]types.PartGroup{
		{PartNumber: "X-1", IssueTypes: "Weld, Paint"},
		{PartNumber: "X-2", IssueTypes: "Paint"},
		{PartNumber: "X-3", IssueTypes: "Dent"},
	})
	want := []string{"Dent", "Paint", "Weld"}
	if len(cats) != len(want) {
		t.Fatalf("categories = %v", cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("categories[%d] = %q, want %q", i, cats[i], want[i])
		}
	}
	if got := Categories(nil); len(got) != 0 {
		t.Errorf("no groups should mean no categories, got %v", got)
	}
}
