// Package ingest reads OCR receipt exports into receipts ready for the pipeline.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/config"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// dateLayouts are tried in order for purchase_date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

// Options controls how an export is turned into a receipt.
type Options struct {
	// DefaultUserID is used when the export carries no user.
	DefaultUserID string
	// Location interprets purchase dates without a zone. Defaults to UTC.
	Location *time.Location
}

type rawReceipt struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Merchant      string    `json:"merchant"`
	PurchaseDate  string    `json:"purchase_date"`
	Items         []rawItem `json:"items"`
	DeclaredTotal float64   `json:"declared_total"`
}

type rawItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// ReadFile parses the receipt export at path. A leading ~ is expanded.
func ReadFile(path string, opts Options) (*model.Receipt, error) {
	f, err := os.Open(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt: %w", err)
	}
	defer func() { _ = f.Close() }()

	receipt, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return receipt, nil
}

// Decode parses one receipt export from r. Lines without a name are dropped.
// A receipt without an id gets a generated one.
func Decode(r io.Reader, opts Options) (*model.Receipt, error) {
	var raw rawReceipt
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidReceipt, err)
	}
	return build(raw, opts)
}

func build(raw rawReceipt, opts Options) (*model.Receipt, error) {
	receipt := &model.Receipt{
		ID:            strings.TrimSpace(raw.ID),
		UserID:        strings.TrimSpace(raw.UserID),
		MerchantName:  strings.TrimSpace(raw.Merchant),
		DeclaredTotal: raw.DeclaredTotal,
	}
	if receipt.UserID == "" {
		receipt.UserID = opts.DefaultUserID
	}
	if receipt.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", common.ErrInvalidReceipt)
	}
	if receipt.DeclaredTotal < 0 {
		return nil, fmt.Errorf("%w: negative declared_total", common.ErrInvalidReceipt)
	}

	if raw.PurchaseDate != "" {
		date, err := parseDate(raw.PurchaseDate, opts.Location)
		if err != nil {
			return nil, err
		}
		receipt.PurchaseDate = date
	}

	for i, item := range raw.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		if item.Quantity < 0 || item.UnitPrice < 0 || item.TotalPrice < 0 {
			return nil, fmt.Errorf("%w: line %d has a negative amount", common.ErrInvalidReceipt, i)
		}
		receipt.Items = append(receipt.Items, model.RawLineItem{
			Name:       name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	if len(receipt.Items) == 0 {
		return nil, common.ErrEmptyReceipt
	}

	if receipt.ID == "" {
		id, err := common.GenerateID(common.PrefixReceipt)
		if err != nil {
			return nil, err
		}
		receipt.ID = id
	}
	return receipt, nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized purchase_date %q", common.ErrInvalidReceipt, value)
}
