package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/categorize"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// HistoryStore reads the receipts a history snapshot is built from.
type HistoryStore interface {
	GetCompletedReceipts(ctx context.Context, userID string, since time.Time) ([]model.StoredReceipt, error)
}

// LoadHistory reads the user's completed receipts of the last months in one
// pass and builds the snapshot every item of a receipt is checked against.
func LoadHistory(ctx context.Context, store HistoryStore, chains *categorize.StorePatterns, userID string, now time.Time, months int) (model.UserHistory, error) {
	if months <= 0 {
		months = DefaultThresholds().HistoryMonths
	}
	receipts, err := store.GetCompletedReceipts(ctx, userID, now.AddDate(0, -months, 0))
	if err != nil {
		return model.UserHistory{}, fmt.Errorf("load history for %s: %w", userID, err)
	}
	return BuildHistory(receipts, chains), nil
}

// BuildHistory folds stored receipts into a history snapshot.
func BuildHistory(receipts []model.StoredReceipt, chains *categorize.StorePatterns) model.UserHistory {
	if chains == nil {
		chains = categorize.DefaultStorePatterns()
	}

	history := model.NewUserHistory()
	type acc struct {
		sum   float64
		count int
	}
	prices := make(map[string]*acc)

	for _, receipt := range receipts {
		store := StoreKey(chains, receipt.MerchantName)
		if store != "" {
			history.CommonStores[store] = struct{}{}
		}

		for _, item := range receipt.Items {
			if item.CategoryID != "" && item.CategoryID != model.CategoryOther {
				history.CommonCategories[item.CategoryID] = struct{}{}
				if store != "" {
					cats, ok := history.CategoryByStore[store]
					if !ok {
						cats = make(map[string]struct{})
						history.CategoryByStore[store] = cats
					}
					cats[item.CategoryID] = struct{}{}
				}
			}

			if item.NormalizedName == "" {
				continue
			}
			a, ok := prices[item.NormalizedName]
			if !ok {
				a = &acc{}
				prices[item.NormalizedName] = a
			}
			a.sum += storedUnitPrice(item)
			a.count++
		}
	}

	for key, a := range prices {
		history.AveragePriceByKey[key] = a.sum / float64(a.count)
	}
	return history
}

func storedUnitPrice(item model.StoredLineItem) float64 {
	if item.UnitPrice > 0 {
		return item.UnitPrice
	}
	if item.Quantity > 0 {
		return item.Amount / item.Quantity
	}
	return item.Amount
}
