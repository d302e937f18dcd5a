package types

import (
	"fmt"
	"time"
)

// Record converters turn generic statement rows into typed structs.
// Values arrive with different dynamic types depending on the path:
// database/sql scans give int64/time.Time, JSON over HTTP gives
// float64/string. The coercions below accept both.

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := asString(v)
	return &s
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t == "1" || t == "true"
	case []byte:
		return string(t) == "1" || string(t) == "true"
	default:
		return false
	}
}

func asInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

// asTime parses the timestamp layouts seen in rows: time.Time from
// parseTime scans, RFC3339 from JSON, and the bare DATETIME literal.
func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	default:
		return time.Time{}
	}
}

func parseTimeString(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func asTimePtr(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	ts := asTime(v)
	if ts.IsZero() {
		return nil
	}
	return &ts
}

// IssueFromRecord converts one issues row.
func IssueFromRecord(rec map[string]interface{}) Issue {
	return Issue{
		ID:          asString(rec["id"]),
		PartNumber:  asString(rec["part_number"]),
		Owner:       asStringPtr(rec["owner"]),
		IssueType:   asString(rec["issue_type"]),
		ReportID:    asString(rec["report_id"]),
		CreatedAt:   asTime(rec["created_at"]),
		IsCorrected: asBool(rec["is_corrected"]),
		CorrectedAt: asTimePtr(rec["corrected_at"]),
	}
}

// IssuesFromRecords converts a page of issues rows.
func IssuesFromRecords(recs []map[string]interface{}) []Issue {
	out := make([]Issue, 0, len(recs))
	for _, rec := range recs {
		out = append(out, IssueFromRecord(rec))
	}
	return out
}

// ReportFromRecord converts one reports row.
func ReportFromRecord(rec map[string]interface{}) Report {
	return Report{
		ID:          asString(rec["id"]),
		FileName:    asString(rec["file_name"]),
		UploadedAt:  asTime(rec["uploaded_at"]),
		TotalIssues: asInt(rec["total_issues"]),
	}
}

// ReportsFromRecords converts a page of reports rows.
func ReportsFromRecords(recs []map[string]interface{}) []Report {
	out := make([]Report, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ReportFromRecord(rec))
	}
	return out
}

// GroupFromIssue lifts a single issue row into a group of one, ready
// for merging.
func GroupFromIssue(i Issue) PartGroup {
	return PartGroup{
		ID:          i.ID,
		PartNumber:  i.PartNumber,
		Owner:       i.Owner,
		IssueTypes:  i.IssueType,
		ReportID:    i.ReportID,
		CreatedAt:   i.CreatedAt,
		IsCorrected: i.IsCorrected,
		CorrectedAt: i.CorrectedAt,
	}
}
