package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/normalize"
	"github.com/Veraticus/the-receipts-must-flow/internal/storage"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <product name>",
		Short: "Teach bon the right category for a product",
		Long: `Record a category correction for a product. Future receipts containing the
same product, under any spelling that normalizes the same way, use your category
ahead of every other rule.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			categoryID, _ := cmd.Flags().GetString("category")

			category, ok := model.LookupCategory(categoryID)
			if !ok {
				return common.NewUserError(
					fmt.Sprintf("unknown category %q; choose one of %v", categoryID, model.CategoryIDs()),
					common.ErrUnknownCategory)
			}

			product := normalize.Normalize(args[0])
			if product.NormalizedName == "" {
				return common.NewUserError("the product name is empty after normalization", storage.ErrInvalidCorrection)
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

			correction := &model.Correction{
				UserID:         userID,
				RawName:        args[0],
				NormalizedName: product.NormalizedName,
				CategoryID:     category.ID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := store.SaveCorrection(ctx, correction); err != nil {
				return fmt.Errorf("failed to save correction: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("%s is now %s", product.DisplayName, category.Name)))
			return nil
		},
	}

	cmd.Flags().StringP("user", "u", "", "user the correction belongs to")
	cmd.Flags().StringP("category", "c", "", "category id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
