package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/config"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/storage"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change auto-processing preferences",
		Long: `Preferences decide which items are posted to the budget without review.
Items at or above the confidence threshold are auto-saved unless automatic
processing is off or every receipt is set to be reviewed.`,
	}

	cmd.PersistentFlags().StringP("user", "u", "", "user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(showPrefsCmd())
	cmd.AddCommand(setPrefsCmd())

	return cmd
}

func showPrefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a user's preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			prefs, err := currentPreferences(ctx, store, userID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Preferences for "+userID, formatPreferences(prefs)))
			return nil
		},
	}
}

func setPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change a user's preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			prefs, err := currentPreferences(ctx, store, userID)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("threshold") {
				prefs.ConfidenceThreshold, _ = flags.GetFloat64("threshold")
			}
			if flags.Changed("auto") {
				prefs.AutoProcessReceipts, _ = flags.GetBool("auto")
			}
			if flags.Changed("always-review") {
				prefs.AlwaysReview, _ = flags.GetBool("always-review")
			}

			if err := config.ValidatePreferences(prefs); err != nil {
				return common.NewUserError("the confidence threshold must be between 0.5 and 0.95", err)
			}
			if err := store.SavePreferences(ctx, &prefs); err != nil {
				return fmt.Errorf("failed to save preferences: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Preferences saved"))
			fmt.Fprintln(cmd.OutOrStdout(), formatPreferences(prefs))
			return nil
		},
	}

	cmd.Flags().Float64("threshold", 0, "confidence threshold for auto-saving items (0.5-0.95)")
	cmd.Flags().Bool("auto", true, "post confident items without review")
	cmd.Flags().Bool("always-review", false, "send every receipt to manual review")

	return cmd
}

// currentPreferences returns the stored settings, or the configured defaults
// for a user who has none.
func currentPreferences(ctx context.Context, store *storage.SQLiteStorage, userID string) (model.Preferences, error) {
	defaults, err := config.LoadPreferences(nil)
	if err != nil {
		return model.Preferences{}, err
	}
	prefs, err := storage.PreferencesOrDefault(ctx, store, userID, defaults)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	return prefs, nil
}

func formatPreferences(p model.Preferences) string {
	onOff := func(b bool) string {
		if b {
			return cli.SuccessStyle.Render("on")
		}
		return cli.SubtleStyle.Render("off")
	}
	label := func(s string) string { return cli.BoldStyle.Render(fmt.Sprintf("%-22s", s)) }
	return fmt.Sprintf("%s%.0f%%\n%s%s\n%s%s",
		label("Confidence threshold:"), p.ConfidenceThreshold*100,
		label("Automatic processing:"), onOff(p.AutoProcessReceipts),
		label("Always review:"), onOff(p.AlwaysReview))
}
