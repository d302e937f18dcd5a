package issues

import (
	"context"
	"fmt"
	"sort"

	"github.com/solidqa/partboard/internal/dedup"
	"github.com/solidqa/partboard/internal/types"
)

// CategoryStat summarizes one issue type over grouped parts.
type CategoryStat struct {
	IssueType string `json:"issue_type"`
	Total     int    `json:"total"`
	Corrected int    `json:"corrected"`
	Remaining int    `json:"remaining"`
}

// CategoryStats counts unique parts per issue type. A part that carries
// several issue types counts once in each; corrected follows the
// group's correction state. Sorted by total descending, then name.
func (s *Service) CategoryStats(ctx context.Context) ([]CategoryStat, error) {
	res := s.db.From(types.TableIssues).Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("category stats: %w", res.Err)
	}
	groups := dedup.MergeIssues(types.IssuesFromRecords(res.Data))

	byType := make(map[string]*CategoryStat)
	for _, g := range groups {
		for _, token := range g.TypeTokens() {
			stat, ok := byType[token]
			if !ok {
				stat = &CategoryStat{IssueType: token}
				byType[token] = stat
			}
			stat.Total++
			if g.IsCorrected {
				stat.Corrected++
			} else {
				stat.Remaining++
			}
		}
	}

	out := make([]CategoryStat, 0, len(byType))
	for _, stat := range byType {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].IssueType < out[j].IssueType
	})
	return out, nil
}

// Categories lists the distinct issue-type tokens in use, sorted. Feeds
// the category filter dropdown.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	res := s.db.From(types.TableIssues).Execute(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("categories: %w", res.Err)
	}
	return dedup.Categories(dedup.MergeIssues(types.IssuesFromRecords(res.Data))), nil
}

// Summary is the dashboard-wide rollup fed to the chat assistant and
// the metrics panel.
type Summary struct {
	TotalReports       int            `json:"totalReports"`
	TotalPartsAnalyzed int            `json:"totalPartsAnalyzed"`
	TotalIssues        int            `json:"totalIssues"`
	OpenIssues         int            `json:"openIssues"`
	CorrectedIssues    int            `json:"correctedIssues"`
	CorrectionRate     float64        `json:"correctionRate"`
	IssuesByCategory   map[string]int `json:"issuesByCategory"`
}

// Summarize computes the rollup from the full issues and reports
// tables.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	issuesRes := s.db.From(types.TableIssues).Execute(ctx)
	if issuesRes.Err != nil {
		return nil, fmt.Errorf("summarize issues: %w", issuesRes.Err)
	}
	reportsRes := s.db.From(types.TableReports).Execute(ctx)
	if reportsRes.Err != nil {
		return nil, fmt.Errorf("summarize reports: %w", reportsRes.Err)
	}

	all := types.IssuesFromRecords(issuesRes.Data)
	groups := dedup.MergeIssues(all)

	sum := &Summary{
		TotalReports:       reportsRes.Count,
		TotalPartsAnalyzed: len(groups),
		TotalIssues:        len(all),
		IssuesByCategory:   make(map[string]int),
	}
	for _, i := range all {
		if i.IsCorrected {
			sum.CorrectedIssues++
		} else {
			sum.OpenIssues++
		}
		sum.IssuesByCategory[i.IssueType]++
	}
	if sum.TotalIssues > 0 {
		sum.CorrectionRate = float64(sum.CorrectedIssues) / float64(sum.TotalIssues) * 100
	}
	return sum, nil
}
