package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize <product name>...",
		Short: "Categorize product names without posting anything",
		Long: `Run product names through the categorization waterfall (user corrections,
known products, keyword rules, store patterns and the external classifier) and
show which stage decided each one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeName, _ := cmd.Flags().GetString("store")
			userID, _ := cmd.Flags().GetString("user")
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

			categorizer, cleanup, err := newCategorizer(store)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, raw := range args {
				result := categorizer.Categorize(ctx, raw, storeName, userID)
				fmt.Fprintln(cmd.OutOrStdout(), formatCategorization(raw, result))
			}
			return nil
		},
	}

	cmd.Flags().StringP("store", "s", "", "retailer the items were bought at")
	cmd.Flags().StringP("user", "u", "", "apply this user's corrections")

	return cmd
}

func formatCategorization(raw string, r model.CategorizationResult) string {
	var source string
	switch d := r.Detail.(type) {
	case model.CacheHit:
		source = "known product " + d.Key
	case model.CorrectionHit:
		source = "your correction from " + d.CorrectedAt.Format("2006-01-02")
	case model.RuleHit:
		source = "keyword " + d.Keyword
	case model.StorePatternHit:
		source = d.Store + " pattern " + d.Pattern
	case model.AIHit:
		source = "classifier " + d.Provider
	case model.DefaultResult:
		source = "no stage matched"
	}

	line := fmt.Sprintf("%s → %s (%.0f%%)", raw, r.CategoryName, r.Confidence*100)
	if r.IsDefault() {
		line = cli.FormatWarning(line)
	} else {
		line = cli.FormatSuccess(line)
	}
	return line + "\n  " + cli.SubtleStyle.Render(string(r.Method)+": "+source)
}
