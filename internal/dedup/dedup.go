// Package dedup implements the two dedup layers of the tracker:
// ingestion-time row dedup (what gets stored) and read-time part
// grouping (what gets shown). Both key on the part identity, where an
// absent owner is its own bucket and never collides with any owner
// string.
package dedup

import (
	"sort"

	"github.com/solidqa/partboard/internal/types"
)

// Ingest filters one sheet's rows down to the rows worth storing. Rows
// without a part number are dropped; for rows sharing a part identity
// the first occurrence wins. The batch is one sheet, never the whole
// upload: the same part may legitimately carry one row per issue type.
func Ingest(rows []types.Issue) []types.Issue {
	seen := make(map[types.IdentityKey]bool, len(rows))
	out := make([]types.Issue, 0, len(rows))
	for _, row := range rows {
		if row.PartNumber == "" {
			continue
		}
		key := row.Identity().Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

// Merge collapses rows sharing a part identity into one group each,
// preserving the input order of first appearance.
//
// Per group: issue-type labels union in first-appearance order (each
// input label is re-split, so merging already-merged groups is
// idempotent), created_at takes the earliest value, corrected_at the
// latest, and the group counts as corrected when any member row is.
func Merge(groups []types.PartGroup) []types.PartGroup {
	merged := make(map[types.IdentityKey]*types.PartGroup, len(groups))
	order := make([]types.IdentityKey, 0, len(groups))

	for _, g := range groups {
		key := g.Identity().Key()
		existing, ok := merged[key]
		if !ok {
			cp := g
			merged[key] = &cp
			order = append(order, key)
			continue
		}

		existing.IssueTypes = unionTypes(existing.IssueTypes, g.IssueTypes)
		if g.CreatedAt.Before(existing.CreatedAt) {
			existing.CreatedAt = g.CreatedAt
		}
		if g.CorrectedAt != nil {
			if existing.CorrectedAt == nil || g.CorrectedAt.After(*existing.CorrectedAt) {
				existing.CorrectedAt = g.CorrectedAt
			}
		}
		if g.IsCorrected {
			existing.IsCorrected = true
		}
	}

	out := make([]types.PartGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

// MergeIssues is Merge over raw issue rows.
func MergeIssues(issues []types.Issue) []types.PartGroup {
	groups := make([]types.PartGroup, 0, len(issues))
	for _, i := range issues {
		groups = append(groups, types.GroupFromIssue(i))
	}
	return Merge(groups)
}

// unionTypes merges two combined labels, keeping first-appearance order
// and dropping duplicates by token membership.
func unionTypes(a, b string) string {
	tokens := types.SplitTypes(a)
	have := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		have[t] = true
	}
	for _, t := range types.SplitTypes(b) {
		if !have[t] {
			have[t] = true
			tokens = append(tokens, t)
		}
	}
	return types.JoinTypes(tokens)
}

// Categories returns the sorted distinct issue-type tokens across the
// groups. Combined labels contribute each of their tokens.
func Categories(groups []types.PartGroup) []string {
	have := make(map[string]bool)
	out := []string{}
	for _, g := range groups {
		for _, tok := range types.SplitTypes(g.IssueTypes) {
			if !have[tok] {
				have[tok] = true
				out = append(out, tok)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Paginate slices the grouped entities into the requested page
// (1-based). It returns the page and the total group count; pagination
// happens after grouping so page boundaries never split a part.
func Paginate(groups []types.PartGroup, page, perPage int) ([]types.PartGroup, int) {
	total := len(groups)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	from := (page - 1) * perPage
	if from >= total {
		return []types.PartGroup{}, total
	}
	to := from + perPage
	if to > total {
		to = total
	}
	return groups[from:to], total
}
