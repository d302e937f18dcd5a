// Package types defines core data structures for the partboard QA tracker.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Issue is one recorded defect of a given type against a given part,
// tied to one ingestion report. The tuple (part_number, owner, issue_type,
// report_id) is unique per upload batch; upload-time dedup enforces this,
// not a storage constraint.
type Issue struct {
	ID          string     `json:"id"`
	PartNumber  string     `json:"part_number"`
	Owner       *string    `json:"owner"` // nil means "no owner"; distinct from any owner string
	IssueType   string     `json:"issue_type"`
	ReportID    string     `json:"report_id"`
	CreatedAt   time.Time  `json:"created_at"`
	IsCorrected bool       `json:"is_corrected"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// Validate checks invariants before persistence.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.PartNumber) == "" {
		return fmt.Errorf("part_number is required")
	}
	if i.IssueType == "" {
		return fmt.Errorf("issue_type is required")
	}
	if i.ReportID == "" {
		return fmt.Errorf("report_id is required")
	}
	if i.CorrectedAt != nil && !i.IsCorrected {
		return fmt.Errorf("corrected_at set on uncorrected issue")
	}
	return nil
}

// Identity returns the part identity this issue belongs to.
func (i *Issue) Identity() PartIdentity {
	return PartIdentity{PartNumber: i.PartNumber, Owner: i.Owner}
}

// Report is one row per upload. Created atomically with its batch of
// issues; never mutated or deleted afterwards.
type Report struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	UploadedAt  time.Time `json:"uploaded_at"`
	TotalIssues int       `json:"total_issues"`
}

// PartIdentity is the (part_number, owner) pair used as the grouping and
// bulk-mutation key for correction state. Owner nil is its own bucket,
// never collapsed with the literal string "null".
type PartIdentity struct {
	PartNumber string
	Owner      *string
}

// Key returns a comparable form of the identity. The HasOwner flag keeps
// absent owners distinct from every owner string value.
func (p PartIdentity) Key() IdentityKey {
	k := IdentityKey{PartNumber: p.PartNumber}
	if p.Owner != nil {
		k.Owner = *p.Owner
		k.HasOwner = true
	}
	return k
}

func (p PartIdentity) String() string {
	if p.Owner == nil {
		return p.PartNumber
	}
	return p.PartNumber + "|" + *p.Owner
}

// IdentityKey is the comparable map key for part identities.
type IdentityKey struct {
	PartNumber string
	Owner      string
	HasOwner   bool
}

// PartGroup is the read-time merge of all issue rows sharing a part
// identity: combined issue-type labels, earliest created_at, latest
// corrected_at. It has no independent storage.
type PartGroup struct {
	ID          string     `json:"id"` // id of the first-seen row
	PartNumber  string     `json:"part_number"`
	Owner       *string    `json:"owner"`
	IssueTypes  string     `json:"issue_type"` // comma-and-space joined, first-appearance order
	ReportID    string     `json:"report_id"`
	CreatedAt   time.Time  `json:"created_at"`
	IsCorrected bool       `json:"is_corrected"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// Identity returns the group's part identity.
func (g *PartGroup) Identity() PartIdentity {
	return PartIdentity{PartNumber: g.PartNumber, Owner: g.Owner}
}

// TypeTokens splits the combined issue-type label back into its tokens.
func (g *PartGroup) TypeTokens() []string {
	return SplitTypes(g.IssueTypes)
}

// SplitTypes splits a comma-joined issue-type label into trimmed tokens,
// dropping empties. Safe on both single labels and already-merged ones.
func SplitTypes(label string) []string {
	if label == "" {
		return nil
	}
	parts := strings.Split(label, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// JoinTypes is the inverse of SplitTypes.
func JoinTypes(tokens []string) string {
	return strings.Join(tokens, ", ")
}

// OwnerOf normalizes a raw owner cell to the nullable owner field:
// empty/whitespace means no owner.
func OwnerOf(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

// Table names used by the fixed application code paths. Identifiers are
// interpolated into SQL, so they must only ever come from these constants.
const (
	TableIssues  = "issues"
	TableReports = "reports"
)
