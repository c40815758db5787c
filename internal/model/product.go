package model

import "time"

// ProductComponents holds the structured pieces parsed out of a raw product
// name. They are always recomputed from the raw name and never stored.
type ProductComponents struct {
	FatContentPct *float64 `json:"fat_content_pct,omitempty"`
	BaseProduct   string   `json:"base_product"`
	Brand         string   `json:"brand,omitempty"`
	Type          string   `json:"type,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	Barcode       string   `json:"barcode,omitempty"`
	Attributes    []string `json:"attributes,omitempty"`
	Size          float64  `json:"size,omitempty"`
}

// HasSizeAndUnit reports whether both a size and a unit were extracted.
func (c ProductComponents) HasSizeAndUnit() bool {
	return c.Size > 0 && c.Unit != ""
}

// NormalizedProduct is the output of the normalizer.
type NormalizedProduct struct {
	NormalizedName string            `json:"normalized_name"`
	DisplayName    string            `json:"display_name"`
	Keywords       []string          `json:"keywords"`
	Components     ProductComponents `json:"components"`
	Confidence     float64           `json:"confidence"`
}

// MasterProduct is the canonical catalog entry that retailer-specific raw
// strings resolve to. Its defining fields never change after creation.
type MasterProduct struct {
	CreatedAt      time.Time
	FatContentPct  *float64
	ID             string
	NormalizedName string
	DisplayName    string
	CategoryID     string
	Brand          string
	Unit           string
	Keywords       []string
	Size           float64
}

// Components rebuilds the comparable component view of a master product.
func (m MasterProduct) Components() ProductComponents {
	return ProductComponents{
		Brand:         m.Brand,
		Size:          m.Size,
		Unit:          m.Unit,
		FatContentPct: m.FatContentPct,
	}
}

// ProductAlias maps a retailer-specific raw string to a master product.
type ProductAlias struct {
	CreatedAt       time.Time
	RawName         string
	Store           string
	MasterProductID string
}
