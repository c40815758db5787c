package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptBuilder(t *testing.T) {
	builder := NewReceipt("r1").
		At("Lidl").
		WithItem("Кисело мляко", 2, 1.20).
		WithItem("Банани", 1.5, 2.00)

	receipt := builder.Build()
	assert.Equal(t, "Lidl", receipt.MerchantName)
	assert.InDelta(t, 5.40, receipt.DeclaredTotal, 1e-9)
	require.Len(t, receipt.Items, 2)

	// builds are independent copies
	other := builder.WithItem("Хляб", 1, 1).Build()
	assert.Len(t, receipt.Items, 2)
	assert.Len(t, other.Items, 3)

	explicit := NewReceipt("r2").WithItem("Хляб", 1, 1).WithTotal(2).Build()
	assert.InDelta(t, 2.0, explicit.DeclaredTotal, 1e-9)
}

func TestSetupTestDB_SeedCompleted(t *testing.T) {
	db := SetupTestDB(t)

	receipt := NewReceipt("r1").
		WithItem("Кисело мляко", 2, 1.20).
		WithItem("Банани", 1, 2.00).
		Build()
	db.SeedCompleted(receipt, "dairy", "fruits_vegetables")

	history, err := db.Storage.GetCompletedReceipts(context.Background(), "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Items, 2)

	stored := db.MustReceipt("r1")
	assert.Equal(t, 2, stored.AutoCategorizedCount)
	assert.Zero(t, db.Spent("u1", "2026-05", "dairy"))
}
