package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/normalize"
)

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <product name>...",
		Short: "Show how raw receipt names are parsed",
		Long: `Parse raw OCR product names into brand, base product, size, fat content and
attributes, and print the canonical name used for matching.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			products := make([]model.NormalizedProduct, len(args))
			for i, raw := range args {
				products[i] = normalize.Normalize(raw)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(products)
			}

			for i, p := range products {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(args[i]))
				printComponents(p)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "print as JSON")

	return cmd
}

func printComponents(p model.NormalizedProduct) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	c := p.Components
	row := func(label, value string) {
		if value == "" {
			value = cli.SubtleStyle.Render("-")
		}
		fmt.Fprintf(w, "  %s\t%s\n", cli.BoldStyle.Render(label), value)
	}

	row("Normalized", p.NormalizedName)
	row("Display", p.DisplayName)
	row("Brand", c.Brand)
	row("Product", c.BaseProduct)
	row("Type", c.Type)
	if c.HasSizeAndUnit() {
		row("Size", fmt.Sprintf("%g %s", c.Size, c.Unit))
	} else {
		row("Size", "")
	}
	if c.FatContentPct != nil {
		row("Fat", fmt.Sprintf("%g%%", *c.FatContentPct))
	} else {
		row("Fat", "")
	}
	row("Attributes", strings.Join(c.Attributes, ", "))
	row("Barcode", c.Barcode)
	row("Keywords", strings.Join(p.Keywords, ", "))
	row("Confidence", fmt.Sprintf("%.0f%%", p.Confidence*100))
}
