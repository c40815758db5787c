package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Index is an in-memory full-text index over master products used to narrow
// fuzzy matching down to a handful of plausible candidates.
//
// All methods are safe for concurrent use.
type Index struct {
	index    bleve.Index
	products map[string]model.MasterProduct
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewIndex creates an empty in-memory index.
func NewIndex(logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Index{
		index:    index,
		products: make(map[string]model.MasterProduct),
		logger:   logger,
	}, nil
}

// buildIndexMapping indexes names and keywords with the unicode-aware
// standard analyzer and the category as an exact keyword.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	keywordsFieldMapping := bleve.NewTextFieldMapping()
	keywordsFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("keywords", keywordsFieldMapping)

	categoryFieldMapping := bleve.NewTextFieldMapping()
	categoryFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("category", categoryFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Add indexes or replaces a master product.
func (x *Index) Add(product model.MasterProduct) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.addLocked(product)
}

// AddAll indexes products in a single batch.
func (x *Index) AddAll(products []model.MasterProduct) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	batch := x.index.NewBatch()
	for _, p := range products {
		if err := batch.Index(p.ID, document(p)); err != nil {
			return fmt.Errorf("batch index %s: %w", p.ID, err)
		}
		x.products[p.ID] = p
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}

	x.logger.Debug("indexed master products", "count", len(products))
	return nil
}

func (x *Index) addLocked(p model.MasterProduct) error {
	if err := x.index.Index(p.ID, document(p)); err != nil {
		return fmt.Errorf("index %s: %w", p.ID, err)
	}
	x.products[p.ID] = p
	return nil
}

// Len returns the number of indexed products.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.products)
}

// Candidates returns up to limit products that share terms with product,
// restricted to categoryID when it is not empty.
func (x *Index) Candidates(ctx context.Context, product model.NormalizedProduct, categoryID string, limit int) ([]model.MasterProduct, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.products) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	nameMatch := bleve.NewMatchQuery(strings.ToLower(product.NormalizedName))
	nameMatch.SetField("name")
	nameMatch.SetBoost(2.0)

	textQueries := []query.Query{nameMatch}
	if len(product.Keywords) > 0 {
		keywordMatch := bleve.NewMatchQuery(strings.ToLower(strings.Join(product.Keywords, " ")))
		keywordMatch.SetField("keywords")
		textQueries = append(textQueries, keywordMatch)
	}

	var q query.Query = bleve.NewDisjunctionQuery(textQueries...)
	if categoryID != "" {
		categoryTerm := bleve.NewTermQuery(categoryID)
		categoryTerm.SetField("category")
		q = bleve.NewConjunctionQuery(q, categoryTerm)
	}

	request := bleve.NewSearchRequestOptions(q, limit, 0, false)
	result, err := x.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	candidates := make([]model.MasterProduct, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if p, ok := x.products[hit.ID]; ok {
			candidates = append(candidates, p)
		}
	}
	return candidates, nil
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

func document(p model.MasterProduct) map[string]any {
	return map[string]any{
		"name":     strings.ToLower(p.NormalizedName),
		"keywords": strings.ToLower(strings.Join(p.Keywords, " ")),
		"category": p.CategoryID,
	}
}
