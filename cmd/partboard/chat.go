package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solidqa/partboard/internal/chat"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask Q-Bot about the QA data",
		Long: `Ask the assistant a question about the tracked QA data. With a
question argument it answers once; without one it starts an
interactive session. Requires ANTHROPIC_API_KEY (or chat.api_key in
the config file).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cleanup, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := chat.New(cfg.Chat.APIKey, cfg.Chat.Model, db)

			if len(args) > 0 {
				answer, err := svc.Ask(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Println(answer)
				return nil
			}

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Println("Q-Bot ready. Empty line quits.")
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					break
				}
				answer, err := svc.Ask(ctx, question)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					continue
				}
				fmt.Println(answer)
			}
			return scanner.Err()
		},
	}
	return cmd
}
