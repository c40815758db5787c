package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show monthly spending per category",
		Long:  `Show what has been posted to a user's budget ledger for a month.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")
			month, _ := cmd.Flags().GetString("month")
			if month == "" {
				month = time.Now().Format("2006-01")
			}
			if _, err := time.Parse("2006-01", month); err != nil {
				return common.NewUserError(fmt.Sprintf("month must look like 2026-05, got %q", month), err)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := store.Close(); closeErr != nil {
					slog.Error("Failed to close storage", "error", closeErr)
				}
			}()

			entries, err := store.GetBudgetEntries(ctx, userID, month)
			if err != nil {
				return fmt.Errorf("failed to get budget: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println(cli.InfoStyle.Render("Nothing posted for " + month + " yet."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Budget " + month))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			var total float64
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%.2f лв\t\n", categoryLabel(e.Category), e.Spent)
				total += e.Spent
			}
			fmt.Fprintf(w, "%s\t%.2f лв\t\n", cli.BoldStyle.Render("Total"), total)
			return w.Flush()
		},
	}

	cmd.Flags().StringP("user", "u", "", "user id")
	cmd.Flags().StringP("month", "m", "", "month as YYYY-MM (default: current month)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
