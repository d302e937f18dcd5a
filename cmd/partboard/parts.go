package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solidqa/partboard/internal/issues"
	"github.com/solidqa/partboard/internal/types"
)

func newPartsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parts",
		Short: "Inspect and correct tracked parts",
	}
	cmd.AddCommand(newPartsListCmd())
	cmd.AddCommand(newPartsCorrectCmd())
	cmd.AddCommand(newPartsIncorrectCmd())
	cmd.AddCommand(newPartsHistoryCmd())
	cmd.AddCommand(newPartsStatsCmd())
	return cmd
}

func newPartsListCmd() *cobra.Command {
	var (
		corrected bool
		search    string
		page      int
		perPage   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parts grouped by identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := issues.NewService(db)
			opts := issues.ListOptions{Search: search, Page: page, PerPage: perPage}
			var result *issues.Page
			if corrected {
				result, err = svc.ListCorrected(ctx, opts)
			} else {
				result, err = svc.ListOpen(ctx, opts)
			}
			if err != nil {
				return err
			}

			for _, g := range result.Groups {
				owner := "-"
				if g.Owner != nil {
					owner = *g.Owner
				}
				fmt.Printf("%-20s %-15s %s\n", g.PartNumber, owner, g.IssueTypes)
			}
			fmt.Printf("\n%d part(s) total, page %d\n", result.Total, max(page, 1))
			return nil
		},
	}

	cmd.Flags().BoolVar(&corrected, "corrected", false, "show corrected parts instead of open ones")
	cmd.Flags().StringVar(&search, "search", "", "filter by part number or owner substring")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 10, "groups per page")
	return cmd
}

// identityArgs reads the part identity from the positional part number
// and the optional --owner flag. An absent flag means the ownerless
// bucket.
func identityArgs(cmd *cobra.Command, args []string) types.PartIdentity {
	id := types.PartIdentity{PartNumber: args[0]}
	if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
		id.Owner = &owner
	}
	return id
}

func newPartsCorrectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <part-number>",
		Short: "Mark every issue of a part as corrected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := issues.NewService(db).MarkCorrected(ctx, identityArgs(cmd, args))
			if err != nil {
				return err
			}
			fmt.Printf("Corrected %d issue(s)\n", n)
			return nil
		},
	}
	cmd.Flags().String("owner", "", "owner of the part (omit for ownerless parts)")
	return cmd
}

func newPartsIncorrectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incorrect <part-number>",
		Short: "Reopen every issue of a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := issues.NewService(db).MarkIncorrect(ctx, identityArgs(cmd, args))
			if err != nil {
				return err
			}
			fmt.Printf("Reopened %d issue(s)\n", n)
			return nil
		},
	}
	cmd.Flags().String("owner", "", "owner of the part (omit for ownerless parts)")
	return cmd
}

func newPartsHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <part-number>",
		Short: "Show every recorded issue of a part, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rows, err := issues.NewService(db).History(ctx, identityArgs(cmd, args))
			if err != nil {
				return err
			}
			for _, i := range rows {
				state := "open"
				if i.IsCorrected {
					state = "corrected"
				}
				fmt.Printf("%s  %-20s %-10s report=%s\n",
					i.CreatedAt.Format("2006-01-02"), i.IssueType, state, i.ReportID)
			}
			fmt.Printf("\n%d issue(s)\n", len(rows))
			return nil
		},
	}
	cmd.Flags().String("owner", "", "owner of the part (omit for ownerless parts)")
	return cmd
}

func newPartsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-category counts over grouped parts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := issues.NewService(db).CategoryStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-30s %8s %10s %10s\n", "CATEGORY", "TOTAL", "CORRECTED", "REMAINING")
			for _, s := range stats {
				fmt.Printf("%-30s %8d %10d %10d\n", s.IssueType, s.Total, s.Corrected, s.Remaining)
			}
			return nil
		},
	}
}
