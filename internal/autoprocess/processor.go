package autoprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
)

// Processor persists a processing decision.
type Processor struct {
	storage service.Storage
	logger  *slog.Logger
	retry   service.RetryOptions
}

// NewProcessor creates a processor writing through storage.
func NewProcessor(storage service.Storage, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		storage: storage,
		logger:  logger,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Apply writes the receipt's lines, its status and, when anything was
// auto-saved, the budget deltas, all in one transaction. Applying the same
// receipt twice leaves the budget ledger unchanged the second time.
func (p *Processor) Apply(ctx context.Context, receipt *model.Receipt, result model.ProcessingResult) error {
	return common.WithRetry(ctx, func() error {
		err := p.apply(ctx, receipt, result)
		if err != nil && !common.IsRetryable(err) {
			return common.Permanent(err)
		}
		return err
	}, p.retry)
}

func (p *Processor) apply(ctx context.Context, receipt *model.Receipt, result model.ProcessingResult) (err error) {
	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				p.logger.Error("failed to rollback", "receipt", receipt.ID, "error", rbErr)
			}
		}
	}()

	if err = tx.SaveLineItems(ctx, receipt.ID, StoredItems(result)); err != nil {
		return fmt.Errorf("save line items: %w", err)
	}

	update := service.ReceiptUpdate{
		Status:               result.Status,
		AutoProcessed:        result.AutoProcessed,
		AutoCategorizedCount: len(result.AutoSavedItems),
		ManualReviewCount:    len(result.UncertainItems),
	}
	if err = tx.UpdateReceiptStatus(ctx, receipt.ID, update); err != nil {
		return fmt.Errorf("update receipt status: %w", err)
	}

	if len(result.AutoSavedItems) > 0 {
		month := receipt.Month()
		if month == "" {
			err = fmt.Errorf("%w: receipt %s has no purchase date", common.ErrInvalidReceipt, receipt.ID)
			return err
		}
		deltas := Deltas(receipt.UserID, month, result.CategoryBreakdown)
		if applyErr := tx.ApplyBudgetDeltas(ctx, receipt.ID, deltas); applyErr != nil {
			if !errors.Is(applyErr, common.ErrAlreadyApplied) {
				err = fmt.Errorf("apply budget deltas: %w", applyErr)
				return err
			}
			p.logger.Info("budget already updated for receipt, skipping", "receipt", receipt.ID)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Debug("receipt persisted",
		"receipt", receipt.ID,
		"status", result.Status,
		"auto_saved", len(result.AutoSavedItems),
		"uncertain", len(result.UncertainItems))
	return nil
}

// Deltas converts category totals to additive ledger changes.
func Deltas(userID, month string, breakdown []model.CategoryTotal) []model.BudgetDelta {
	deltas := make([]model.BudgetDelta, 0, len(breakdown))
	for _, t := range breakdown {
		if t.Amount == 0 {
			continue
		}
		deltas = append(deltas, model.BudgetDelta{
			UserID:      userID,
			Category:    t.CategoryID,
			Month:       month,
			AmountDelta: t.Amount,
		})
	}
	return deltas
}

// StoredItems flattens a decision into persisted lines. Uncertain lines keep
// their best guess but are flagged for review and never reach the budget.
func StoredItems(result model.ProcessingResult) []model.StoredLineItem {
	items := make([]model.StoredLineItem, 0, len(result.AutoSavedItems)+len(result.UncertainItems))
	for _, item := range result.AutoSavedItems {
		items = append(items, storedItem(item, false))
	}
	for _, item := range result.UncertainItems {
		items = append(items, storedItem(item, true))
	}
	return items
}

func storedItem(item model.ProcessedItem, needsReview bool) model.StoredLineItem {
	stored := model.StoredLineItem{
		Position:        item.Index,
		RawName:         item.Raw.Name,
		NormalizedName:  item.Normalized.NormalizedName,
		MasterProductID: item.MasterProductID,
		Amount:          item.Raw.Amount(),
		Quantity:        item.Raw.Quantity,
		UnitPrice:       item.Raw.UnitPrice,
		NeedsReview:     needsReview,
	}
	if item.Result != nil {
		stored.CategoryID = item.Result.CategoryID
		stored.Method = item.Result.Method
		stored.Confidence = item.Result.Confidence
	}
	return stored
}
