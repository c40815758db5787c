package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-receipts-must-flow/internal/cli"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/engine"
	"github.com/Veraticus/the-receipts-must-flow/internal/ingest"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <receipt.json>...",
		Short: "Categorize receipts and post confident items to the budget",
		Long: `Run OCR receipt exports through normalization, categorization, catalog
matching and quality validation. Items above your confidence threshold are posted
to the monthly budget; the rest are kept for review.

Re-running on the same receipt is safe: budgets are never posted twice.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runProcess,
	}

	cmd.Flags().StringP("user", "u", "", "user id for exports that carry none")
	cmd.Flags().String("timezone", "Europe/Sofia", "timezone for purchase dates without one")
	cmd.Flags().BoolP("quiet", "q", false, "only print the summary")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	tz, _ := cmd.Flags().GetString("timezone")
	quiet, _ := cmd.Flags().GetBool("quiet")

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("unknown timezone %q", tz), err)
	}

	opts := ingest.Options{DefaultUserID: userID, Location: loc}
	receipts := make([]*model.Receipt, 0, len(args))
	for _, path := range args {
		receipt, err := ingest.ReadFile(path, opts)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("Skipping %s: %v", path, err)))
			continue
		}
		receipts = append(receipts, receipt)
	}
	if len(receipts) == 0 {
		return common.NewUserError("no readable receipts", common.ErrEmptyReceipt)
	}

	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interruptHandler.HandleInterrupts(cmd.Context())

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close storage", "error", closeErr)
		}
	}()

	eng, cleanup, err := newEngine(store, engine.WithLocation(loc))
	if err != nil {
		return err
	}
	defer cleanup()

	bar := progressbar.NewOptions(len(receipts),
		progressbar.OptionSetDescription(cli.ReceiptIcon+" Processing receipts"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetVisibility(!quiet),
	)

	var results []*engine.Result
	var failures []string
	summary, err := eng.ProcessAll(ctx, receipts, func(receipt *model.Receipt, result *engine.Result, procErr error) {
		_ = bar.Add(1)
		if procErr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", receipt.ID, procErr))
			return
		}
		results = append(results, result)
	})
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())

	out := cmd.OutOrStdout()
	if !quiet {
		for _, result := range results {
			fmt.Fprintln(out, cli.RenderResult(result))
		}
	}
	for _, failure := range failures {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatError(failure))
	}
	if summary != nil {
		fmt.Fprintln(out, cli.RenderSummary(summary))
	}

	if err != nil {
		if interruptHandler.WasInterrupted() {
			return common.NewUserError("processing interrupted", err)
		}
		return err
	}
	return nil
}
