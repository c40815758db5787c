// Package categorize assigns receipt items to the fixed category taxonomy
// through an ordered waterfall of strategies.
package categorize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/normalize"
)

// Waterfall confidences.
const (
	CacheConfidence        = 1.0
	CorrectionConfidence   = 1.0
	RuleConfidence         = 0.95
	StorePatternConfidence = 0.85
)

// CorrectionStore looks up a user's most recent manual override.
// Implementations return common.ErrNotFound when the user has none.
type CorrectionStore interface {
	GetLatestCorrection(ctx context.Context, userID, normalizedName string) (*model.Correction, error)
}

// Classifier is the external categorization service of last resort.
type Classifier interface {
	Classify(ctx context.Context, name string, categoryIDs []string) (*model.Suggestion, error)
}

// Config holds configuration options for the categorizer.
type Config struct {
	StageTimeout    time.Duration `mapstructure:"stage_timeout" validate:"gte=0"`
	AITimeout       time.Duration `mapstructure:"ai_timeout" validate:"gte=0"`
	AIMinConfidence float64       `mapstructure:"ai_min_confidence" validate:"gte=0,lte=1"`
	Workers         int           `mapstructure:"workers" validate:"gte=0,lte=64"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StageTimeout:    5 * time.Second,
		AITimeout:       15 * time.Second,
		AIMinConfidence: 0.6,
		Workers:         5,
	}
}

// Categorizer runs the waterfall: user correction, cache, keyword rules,
// store patterns, external classifier, then the "other" default. The first
// stage that answers wins and scores are never combined across stages.
type Categorizer struct {
	corrections CorrectionStore
	classifier  Classifier
	cache       *Cache
	rules       *Rules
	stores      *StorePatterns
	normalizer  *normalize.Normalizer
	logger      *slog.Logger
	config      Config
}

// Option customizes a Categorizer.
type Option func(*Categorizer)

// WithCache replaces the built-in product dictionary.
func WithCache(cache *Cache) Option {
	return func(c *Categorizer) { c.cache = cache }
}

// WithRules replaces the built-in keyword rules.
func WithRules(rules *Rules) Option {
	return func(c *Categorizer) { c.rules = rules }
}

// WithStorePatterns replaces the built-in retailer table.
func WithStorePatterns(stores *StorePatterns) Option {
	return func(c *Categorizer) { c.stores = stores }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Categorizer) { c.logger = logger }
}

// New creates a categorizer. Either collaborator may be nil, in which case
// its stage is skipped.
func New(corrections CorrectionStore, classifier Classifier, config Config, opts ...Option) *Categorizer {
	defaults := DefaultConfig()
	if config.StageTimeout <= 0 {
		config.StageTimeout = defaults.StageTimeout
	}
	if config.AITimeout <= 0 {
		config.AITimeout = defaults.AITimeout
	}
	if config.AIMinConfidence <= 0 {
		config.AIMinConfidence = defaults.AIMinConfidence
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}

	c := &Categorizer{
		corrections: corrections,
		classifier:  classifier,
		config:      config,
		cache:       NewCache(nil),
		rules:       NewRules(nil),
		stores:      DefaultStorePatterns(),
		normalizer:  normalize.New(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stores exposes the retailer table used by the store-pattern stage.
func (c *Categorizer) Stores() *StorePatterns {
	return c.stores
}

// Categorize normalizes rawName and runs the waterfall for it. storeName and
// userID may be empty, which skips the stages that need them.
func (c *Categorizer) Categorize(ctx context.Context, rawName, storeName, userID string) model.CategorizationResult {
	return c.CategorizeNormalized(ctx, rawName, c.normalizer.Normalize(rawName), storeName, userID)
}

// CategorizeNormalized runs the waterfall for an already normalized product.
func (c *Categorizer) CategorizeNormalized(ctx context.Context, rawName string, product model.NormalizedProduct, storeName, userID string) model.CategorizationResult {
	key := strings.ToLower(product.NormalizedName)
	cleaned := normalize.Clean(rawName)

	result := c.waterfall(ctx, rawName, cleaned, key, product, storeName, userID)
	if !result.IsDefault() && product.Components.BaseProduct != "" {
		result.Subcategory = product.Components.BaseProduct
	}
	return result
}

func (c *Categorizer) waterfall(ctx context.Context, rawName, cleaned, key string, product model.NormalizedProduct, storeName, userID string) model.CategorizationResult {
	// A user's own override outranks the static dictionary.
	if userID != "" {
		if result, ok := c.lookupCorrection(ctx, userID, product.NormalizedName); ok {
			return result
		}
	}

	if category, hit, ok := c.cache.Lookup(key, cleaned); ok {
		if cat, known := model.LookupCategory(category); known {
			return model.NewResult(cat, CacheConfidence, model.CacheHit{Key: hit})
		}
	}

	if category, keyword, ok := c.rules.Match(key, cleaned); ok {
		if cat, known := model.LookupCategory(category); known {
			return model.NewResult(cat, RuleConfidence, model.RuleHit{Keyword: keyword})
		}
	}

	if storeName != "" {
		if chain, p, ok := c.stores.Match(storeName, rawName); ok {
			if cat, known := model.LookupCategory(p.CategoryID); known {
				return model.NewResult(cat, StorePatternConfidence, model.StorePatternHit{
					Store:   chain.ID,
					Pattern: p.Pattern.String(),
				})
			}
		}
	}

	if c.classifier != nil {
		if result, ok := c.classify(ctx, product.NormalizedName); ok {
			return result
		}
	}

	return model.NewResult(model.MustCategory(model.CategoryOther), 0, model.DefaultResult{})
}

func (c *Categorizer) lookupCorrection(ctx context.Context, userID, normalizedName string) (model.CategorizationResult, bool) {
	if c.corrections == nil {
		return model.CategorizationResult{}, false
	}

	stageCtx, cancel := context.WithTimeout(ctx, c.config.StageTimeout)
	defer cancel()

	correction, err := c.corrections.GetLatestCorrection(stageCtx, userID, normalizedName)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			c.logger.Warn("correction lookup failed, skipping stage",
				"user_id", userID,
				"normalized_name", normalizedName,
				"error", err)
		}
		return model.CategorizationResult{}, false
	}
	if correction == nil {
		return model.CategorizationResult{}, false
	}

	cat, ok := model.LookupCategory(correction.CategoryID)
	if !ok {
		c.logger.Warn("correction references unknown category",
			"category", correction.CategoryID,
			"user_id", userID)
		return model.CategorizationResult{}, false
	}
	return model.NewResult(cat, CorrectionConfidence, model.CorrectionHit{CorrectedAt: correction.CreatedAt}), true
}

func (c *Categorizer) classify(ctx context.Context, normalizedName string) (model.CategorizationResult, bool) {
	stageCtx, cancel := context.WithTimeout(ctx, c.config.AITimeout)
	defer cancel()

	suggestion, err := c.classifier.Classify(stageCtx, normalizedName, model.CategoryIDs())
	if err != nil {
		c.logger.Warn("external classifier gave no result",
			"normalized_name", normalizedName,
			"error", err)
		return model.CategorizationResult{}, false
	}
	if suggestion == nil || suggestion.Confidence < c.config.AIMinConfidence {
		return model.CategorizationResult{}, false
	}

	cat, ok := model.LookupCategory(suggestion.CategoryID)
	if !ok {
		c.logger.Warn("external classifier returned unknown category",
			"category", suggestion.CategoryID,
			"normalized_name", normalizedName)
		return model.CategorizationResult{}, false
	}
	return model.NewResult(cat, suggestion.Confidence, model.AIHit{Provider: suggestion.Provider}), true
}

// BatchItem is one entry of a batch categorization request.
type BatchItem struct {
	ID   string
	Name string
}

// BatchResult pairs a batch item with its normalization and category.
type BatchResult struct {
	ID         string
	Normalized model.NormalizedProduct
	Result     model.CategorizationResult
}

// CategorizeBatch categorizes independent items concurrently on a bounded
// pool. Results keep input order. The only error is cancellation of ctx.
func (c *Categorizer) CategorizeBatch(ctx context.Context, items []BatchItem, storeName, userID string) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Workers)

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			product := c.normalizer.Normalize(item.Name)
			results[i] = BatchResult{
				ID:         item.ID,
				Normalized: product,
				Result:     c.CategorizeNormalized(gctx, item.Name, product, storeName, userID),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("categorized batch", "items", len(items), "store", storeName)
	return results, nil
}
