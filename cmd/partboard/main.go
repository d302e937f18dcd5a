// partboard is the QA tracking backend: a statement-compiler HTTP
// server over MySQL, spreadsheet ingestion, and the Q-Bot assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solidqa/partboard/internal/config"
	"github.com/solidqa/partboard/internal/debug"
	"github.com/solidqa/partboard/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configFile string
	verbose    bool
	serverURL  string

	cfg config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "partboard",
		Short:         "QA issue tracking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug.SetVerbose(verbose)
			var err error
			cfg, err = config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := telemetry.Init(cmd.Context(), "partboard", Version); err != nil {
				// Telemetry failures never block the tool.
				debug.Logf("telemetry init failed: %v", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			telemetry.Shutdown(ctx)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./partboard.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "remote server URL (default: talk to the database directly)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newIngestCmd())
	root.AddCommand(newPartsCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("partboard %s\n", Version)
		},
	}
}
