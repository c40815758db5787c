// Package engine runs receipts through the categorization pipeline and
// persists the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/autoprocess"
	"github.com/Veraticus/the-receipts-must-flow/internal/catalog"
	"github.com/Veraticus/the-receipts-must-flow/internal/categorize"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/quality"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
	"github.com/Veraticus/the-receipts-must-flow/internal/storage"
)

// Engine orchestrates normalization, categorization, catalog linking,
// validation and auto-processing of one receipt at a time.
type Engine struct {
	storage     service.Storage
	categorizer *categorize.Categorizer
	catalog     *catalog.Catalog
	validator   *quality.Validator
	processor   *autoprocess.Processor
	logger      *slog.Logger
	now         func() time.Time
	location    *time.Location
	thresholds  quality.Thresholds
	defaults    model.Preferences
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCatalog links every item to a master product.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithThresholds replaces the validator cutoffs.
func WithThresholds(t quality.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithDefaultPreferences sets the preferences of users without stored ones.
func WithDefaultPreferences(p model.Preferences) Option {
	return func(e *Engine) { e.defaults = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source used for the history window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone budget months are counted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

// New creates an engine.
func New(store service.Storage, categorizer *categorize.Categorizer, opts ...Option) *Engine {
	e := &Engine{
		storage:     store,
		categorizer: categorizer,
		logger:      slog.Default(),
		now:         time.Now,
		thresholds:  quality.DefaultThresholds(),
		defaults:    model.DefaultPreferences(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.validator = quality.NewValidator(e.thresholds, categorizer.Stores())
	e.processor = autoprocess.NewProcessor(store, e.logger)
	return e
}

// Result is the outcome of processing one receipt.
type Result struct {
	ReceiptID   string
	Items       []model.ProcessedItem
	Validation  model.ValidationResult
	Processing  model.ProcessingResult
	Preferences model.Preferences
	Duration    time.Duration
}

// Process runs one receipt through the pipeline. Classifier and catalog
// problems degrade the result; only persistence failures and cancellation are
// returned as errors.
func (e *Engine) Process(ctx context.Context, receipt *model.Receipt) (*Result, error) {
	start := time.Now()
	if receipt == nil || len(receipt.Items) == 0 {
		return nil, common.ErrEmptyReceipt
	}

	if err := e.stampPurchaseDate(ctx, receipt); err != nil {
		return nil, err
	}
	if err := e.storage.SaveReceipt(ctx, receipt); err != nil {
		return nil, fmt.Errorf("failed to save receipt %s: %w", receipt.ID, err)
	}

	items, err := e.categorize(ctx, receipt)
	if err != nil {
		return nil, err
	}

	if e.catalog != nil {
		e.link(ctx, receipt, items)
	}

	history, err := quality.LoadHistory(ctx, e.storage, e.categorizer.Stores(), receipt.UserID, e.now(), e.thresholds.HistoryMonths)
	if err != nil {
		return nil, err
	}
	validation := e.validator.Validate(receipt.ID, items, receipt.DeclaredTotal, receipt.MerchantName, history)

	prefs, err := storage.PreferencesOrDefault(ctx, e.storage, receipt.UserID, e.defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	routing := prefs
	if validation.RequiresUserAttention {
		routing.AlwaysReview = true
	}
	decision := autoprocess.Decide(items, routing)

	if err := e.processor.Apply(ctx, receipt, decision); err != nil {
		return nil, fmt.Errorf("failed to persist receipt %s: %w", receipt.ID, err)
	}

	result := &Result{
		ReceiptID:   receipt.ID,
		Items:       items,
		Validation:  validation,
		Processing:  decision,
		Preferences: prefs,
		Duration:    time.Since(start),
	}

	e.logger.Info("processed receipt",
		"receipt", receipt.ID,
		"merchant", receipt.MerchantName,
		"items", len(items),
		"status", decision.Status,
		"auto_saved", len(decision.AutoSavedItems),
		"uncertain", len(decision.UncertainItems),
		"critical_issues", len(validation.Critical),
		"duration", result.Duration)

	return result, nil
}

// stampPurchaseDate fixes the purchase date before anything is persisted. A
// receipt without one keeps the date of its first run, so reprocessing lands
// in the same budget month.
func (e *Engine) stampPurchaseDate(ctx context.Context, receipt *model.Receipt) error {
	if receipt.PurchaseDate.IsZero() {
		stored, err := e.storage.GetReceipt(ctx, receipt.ID)
		switch {
		case err == nil && stored != nil && !stored.PurchaseDate.IsZero():
			receipt.PurchaseDate = stored.PurchaseDate
		case err == nil || errors.Is(err, common.ErrNotFound):
			receipt.PurchaseDate = e.now()
		default:
			return fmt.Errorf("failed to load receipt %s: %w", receipt.ID, err)
		}
	}
	if e.location != nil {
		receipt.PurchaseDate = receipt.PurchaseDate.In(e.location)
	}
	return nil
}

func (e *Engine) categorize(ctx context.Context, receipt *model.Receipt) ([]model.ProcessedItem, error) {
	batch := make([]categorize.BatchItem, len(receipt.Items))
	for i, item := range receipt.Items {
		batch[i] = categorize.BatchItem{ID: strconv.Itoa(i), Name: item.Name}
	}

	results, err := e.categorizer.CategorizeBatch(ctx, batch, receipt.MerchantName, receipt.UserID)
	if err != nil {
		return nil, fmt.Errorf("categorization aborted: %w", err)
	}

	items := make([]model.ProcessedItem, len(results))
	for i, r := range results {
		result := r.Result
		items[i] = model.ProcessedItem{
			Index:      i,
			Raw:        receipt.Items[i],
			Normalized: r.Normalized,
			Result:     &result,
		}
	}
	return items, nil
}

// link resolves each item to a master product. Failures leave the item
// unlinked.
func (e *Engine) link(ctx context.Context, receipt *model.Receipt, items []model.ProcessedItem) {
	for i := range items {
		item := &items[i]
		resolution, err := e.catalog.Resolve(ctx, item.Raw.Name, receipt.MerchantName, item.Normalized, item.CategoryID())
		if err != nil {
			e.logger.Warn("catalog resolution failed",
				"receipt", receipt.ID,
				"item", item.Raw.Name,
				"error", err)
			continue
		}
		item.MasterProductID = resolution.MasterProductID
	}
}

// Summary aggregates a batch run.
type Summary struct {
	Receipts       int
	Completed      int
	PendingReview  int
	ManualReview   int
	Failed         int
	Items          int
	AutoSavedItems int
	ProcessingTime time.Duration
}

// ProcessAll processes receipts in order. A failing receipt is logged and
// counted; cancellation stops the run. onDone, when set, is called after each
// receipt with its result or error.
func (e *Engine) ProcessAll(ctx context.Context, receipts []*model.Receipt, onDone func(*model.Receipt, *Result, error)) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	for _, receipt := range receipts {
		if err := ctx.Err(); err != nil {
			summary.ProcessingTime = time.Since(start)
			return summary, err
		}

		summary.Receipts++
		result, err := e.Process(ctx, receipt)
		if onDone != nil {
			onDone(receipt, result, err)
		}
		if err != nil {
			summary.Failed++
			e.logger.Warn("failed to process receipt", "receipt", receipt.ID, "error", err)
			continue
		}

		summary.Items += len(result.Items)
		summary.AutoSavedItems += len(result.Processing.AutoSavedItems)
		switch result.Processing.Status {
		case model.ReceiptStatusCompleted:
			summary.Completed++
		case model.ReceiptStatusPendingReview:
			summary.PendingReview++
		case model.ReceiptStatusManualReview:
			summary.ManualReview++
		}
	}

	summary.ProcessingTime = time.Since(start)
	return summary, nil
}
