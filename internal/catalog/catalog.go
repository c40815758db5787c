package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Store is the persistence the catalog needs.
type Store interface {
	GetAlias(ctx context.Context, rawName, store string) (*model.ProductAlias, error)
	SaveAlias(ctx context.Context, alias *model.ProductAlias) error
	CreateMasterProduct(ctx context.Context, product *model.MasterProduct) error
	GetMasterProductByName(ctx context.Context, normalizedName string) (*model.MasterProduct, error)
	ListMasterProducts(ctx context.Context, categoryID string) ([]model.MasterProduct, error)
}

// Resolution reports how a raw product string was linked to the catalog.
type Resolution struct {
	MasterProductID string
	Score           float64
	Created         bool
	ViaAlias        bool
}

// Catalog resolves raw product strings to master products, creating new
// entries when nothing matches.
type Catalog struct {
	store         Store
	index         *Index
	matcher       *Matcher
	logger        *slog.Logger
	candidateSize int
	mu            sync.Mutex
	loaded        bool
}

// New creates a catalog over store. The candidate index is filled from
// storage on first use.
func New(store Store, config MatchConfig, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := NewIndex(logger)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		store:         store,
		index:         index,
		matcher:       NewMatcher(config),
		logger:        logger,
		candidateSize: 20,
	}, nil
}

// Resolve links raw (as printed by store) to a master product. A previously
// seen raw string resolves through its alias without fuzzy matching; any
// other outcome records a new alias.
func (c *Catalog) Resolve(ctx context.Context, raw, store string, product model.NormalizedProduct, categoryID string) (Resolution, error) {
	raw = strings.TrimSpace(raw)
	store = strings.ToLower(strings.TrimSpace(store))

	alias, err := c.store.GetAlias(ctx, raw, store)
	switch {
	case err == nil:
		return Resolution{MasterProductID: alias.MasterProductID, Score: 1.0, ViaAlias: true}, nil
	case !errors.Is(err, common.ErrNotFound):
		return Resolution{}, fmt.Errorf("lookup alias: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return Resolution{}, err
	}

	candidates, err := c.candidates(ctx, product, categoryID)
	if err != nil {
		return Resolution{}, err
	}

	var res Resolution
	if match, ok := c.matcher.Match(product, candidates); ok {
		res = Resolution{MasterProductID: match.Product.ID, Score: match.Score}
		c.logger.Debug("matched master product",
			"raw", raw,
			"master_product", match.Product.ID,
			"score", match.Score,
			"exact", match.Exact)
	} else {
		created, err := c.create(ctx, product, categoryID)
		if err != nil {
			return Resolution{}, err
		}
		res = Resolution{MasterProductID: created.ID, Score: 1.0, Created: true}
		c.logger.Info("created master product",
			"id", created.ID,
			"name", created.NormalizedName,
			"category", created.CategoryID)
	}

	if err := c.saveAlias(ctx, raw, store, res.MasterProductID); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// candidates merges index hits with an exact-name storage lookup so that the
// exact shortcut applies even to products indexed by another process.
func (c *Catalog) candidates(ctx context.Context, product model.NormalizedProduct, categoryID string) ([]model.MasterProduct, error) {
	candidates, err := c.index.Candidates(ctx, product, categoryID, c.candidateSize)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	exact, err := c.store.GetMasterProductByName(ctx, product.NormalizedName)
	switch {
	case err == nil:
		candidates = append([]model.MasterProduct{*exact}, candidates...)
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("lookup master product: %w", err)
	}
	return candidates, nil
}

func (c *Catalog) create(ctx context.Context, product model.NormalizedProduct, categoryID string) (model.MasterProduct, error) {
	id, err := common.GenerateID(common.PrefixMasterProduct)
	if err != nil {
		return model.MasterProduct{}, err
	}

	comps := product.Components
	mp := model.MasterProduct{
		ID:             id,
		NormalizedName: product.NormalizedName,
		DisplayName:    product.DisplayName,
		CategoryID:     categoryID,
		Brand:          comps.Brand,
		Size:           comps.Size,
		Unit:           comps.Unit,
		FatContentPct:  comps.FatContentPct,
		Keywords:       append([]string(nil), product.Keywords...),
		CreatedAt:      time.Now(),
	}

	if err := c.store.CreateMasterProduct(ctx, &mp); err != nil {
		return model.MasterProduct{}, fmt.Errorf("create master product: %w", err)
	}
	if err := c.index.Add(mp); err != nil {
		c.logger.Warn("failed to index master product", "id", mp.ID, "error", err)
	}
	return mp, nil
}

func (c *Catalog) saveAlias(ctx context.Context, raw, store, masterProductID string) error {
	err := c.store.SaveAlias(ctx, &model.ProductAlias{
		RawName:         raw,
		Store:           store,
		MasterProductID: masterProductID,
		CreatedAt:       time.Now(),
	})
	if err != nil && !errors.Is(err, common.ErrDuplicateEntry) {
		return fmt.Errorf("save alias: %w", err)
	}
	return nil
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	products, err := c.store.ListMasterProducts(ctx, "")
	if err != nil {
		return fmt.Errorf("load master products: %w", err)
	}
	if len(products) > 0 {
		if err := c.index.AddAll(products); err != nil {
			return err
		}
	}
	c.loaded = true
	return nil
}

// Close releases the candidate index.
func (c *Catalog) Close() error {
	return c.index.Close()
}
