package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/compiler"
	"github.com/solidqa/partboard/internal/report"
	"github.com/solidqa/partboard/internal/storage"
	"github.com/solidqa/partboard/internal/telemetry"
)

// openDB builds the query façade: against a remote server when --server
// is set, otherwise straight onto the database in-process.
func openDB(ctx context.Context) (*client.DB, func(), error) {
	if serverURL != "" {
		tr := client.NewHTTPTransport(serverURL).WithTimeout(cfg.Server.RequestTimeout)
		if err := tr.Health(ctx); err != nil {
			return nil, nil, fmt.Errorf("server %s unreachable: %w", serverURL, err)
		}
		return client.New(tr), func() {}, nil
	}
	db, err := storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }
	return client.New(telemetry.WrapTransport(compiler.New(db))), cleanup, nil
}

func newIngestCmd() *cobra.Command {
	var fileName string

	cmd := &cobra.Command{
		Use:   "ingest <sheet.csv> [sheet.csv...]",
		Short: "Ingest QA sheets as one report",
		Long: `Ingest one or more CSV sheets as a single report. Each file is one
issue category; the file name (without extension) becomes the issue
type of its rows. Rows without a part number are dropped, and parts
appearing more than once keep only their first occurrence.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sheets := make([]report.Sheet, 0, len(args))
			for _, path := range args {
				sheet, err := report.LoadCSV(path)
				if err != nil {
					return err
				}
				sheets = append(sheets, sheet)
			}
			if fileName == "" {
				fileName = filepath.Base(args[0])
			}

			svc := report.NewService(db)
			stored, issues, err := svc.Ingest(ctx, fileName, sheets)
			if err != nil {
				return err
			}
			fmt.Printf("Report %s stored: %d issues from %d sheet(s)\n", stored.ID, len(issues), len(sheets))
			return nil
		},
	}

	cmd.Flags().StringVar(&fileName, "file-name", "", "report file name (default: first sheet's name)")
	return cmd
}
