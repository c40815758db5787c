package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the master product catalog",
		Long: `The catalog links the same product sold under different names at different
retailers, so prices can be compared across stores.`,
	}

	cmd.AddCommand(listCatalogCmd())
	cmd.AddCommand(showCatalogCmd())

	return cmd
}

func listCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List master products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			categoryID, _ := cmd.Flags().GetString("category")
			if categoryID != "" {
				if _, ok := model.LookupCategory(categoryID); !ok {
					return common.NewUserError(fmt.Sprintf("unknown category %q", categoryID), common.ErrUnknownCategory)
				}
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

			products, err := store.ListMasterProducts(ctx, categoryID)
			if err != nil {
				return fmt.Errorf("failed to list products: %w", err)
			}

			if len(products) == 0 {
				fmt.Println(cli.InfoStyle.Render("No products yet. Products are added as receipts are processed."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("ID"),
				cli.BoldStyle.Render("Product"),
				cli.BoldStyle.Render("Size"),
				cli.BoldStyle.Render("Category"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 24),
				strings.Repeat("-", 30),
				strings.Repeat("-", 8),
				strings.Repeat("-", 20))

			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.DisplayName, productSize(p), categoryLabel(p.CategoryID))
			}
			return nil
		},
	}

	cmd.Flags().StringP("category", "c", "", "only list products in this category")

	return cmd
}

func showCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <product id>",
		Short: "Show a master product and the receipt names linked to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			product, err := store.GetMasterProduct(ctx, args[0])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("no product with id %s", args[0]), err)
			}
			if err != nil {
				return fmt.Errorf("failed to get product: %w", err)
			}

			aliases, err := store.GetAliases(ctx, product.ID)
			if err != nil {
				return fmt.Errorf("failed to get aliases: %w", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Name:"), product.NormalizedName)
			fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Category:"), categoryLabel(product.CategoryID))
			if product.Brand != "" {
				fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Brand:"), product.Brand)
			}
			if size := productSize(*product); size != "" {
				fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Size:"), size)
			}
			if product.FatContentPct != nil {
				fmt.Fprintf(&b, "%s %g%%\n", cli.BoldStyle.Render("Fat:"), *product.FatContentPct)
			}
			fmt.Fprintf(&b, "\n%s\n", cli.BoldStyle.Render("Seen as:"))
			for _, a := range aliases {
				fmt.Fprintf(&b, "  %s %s\n", a.RawName, cli.SubtleStyle.Render("@ "+a.Store))
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(product.DisplayName, strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}
}

func productSize(p model.MasterProduct) string {
	if p.Size <= 0 || p.Unit == "" {
		return ""
	}
	return fmt.Sprintf("%g %s", p.Size, p.Unit)
}

func categoryLabel(id string) string {
	if c, ok := model.LookupCategory(id); ok {
		return c.Name
	}
	return id
}
