package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-receipts-must-flow/internal/catalog"
	"github.com/Veraticus/the-receipts-must-flow/internal/categorize"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/normalize"
	"github.com/Veraticus/the-receipts-must-flow/internal/testutil"
)

var testNow = time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, db *testutil.TestDB, opts ...Option) *Engine {
	t.Helper()
	categorizer := categorize.New(db.Storage, nil, categorize.DefaultConfig())
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(db.Storage, categorizer, opts...)
}

func TestEngine_ProcessCompletedReceipt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)

	receipt := testutil.NewReceipt("r1").
		WithItem("Прясно мляко Верея 1л", 2, 2.20).
		WithItem("Кайма смесена 500г", 1, 6.50).
		Build()

	result, err := engine.Process(context.Background(), receipt)
	require.NoError(t, err)

	assert.True(t, result.Validation.Passed)
	assert.Equal(t, model.ReceiptStatusCompleted, result.Processing.Status)
	assert.Len(t, result.Processing.AutoSavedItems, 2)
	assert.Equal(t, "dairy", result.Items[0].CategoryID())
	assert.Equal(t, "meat", result.Items[1].CategoryID())

	stored := db.MustReceipt("r1")
	assert.Equal(t, model.ReceiptStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.AutoCategorizedCount)
	assert.Equal(t, model.MethodCache, stored.Items[0].Method)

	assert.InDelta(t, 4.40, db.Spent("u1", "2026-05", "dairy"), 1e-9)
	assert.InDelta(t, 6.50, db.Spent("u1", "2026-05", "meat"), 1e-9)
}

func TestEngine_ProcessMixedReceipt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)

	receipt := testutil.NewReceipt("r1").
		WithItem("Прясно мляко Верея 1л", 2, 2.20).
		WithItem("Xyzzy", 1, 3.00).
		Build()

	result, err := engine.Process(context.Background(), receipt)
	require.NoError(t, err)

	assert.Equal(t, model.ReceiptStatusPendingReview, result.Processing.Status)
	assert.True(t, result.Processing.AutoProcessed)
	require.Len(t, result.Processing.UncertainItems, 1)
	assert.Equal(t, "Xyzzy", result.Processing.UncertainItems[0].Raw.Name)

	stored := db.MustReceipt("r1")
	assert.Equal(t, 1, stored.ManualReviewCount)
	assert.True(t, stored.Items[1].NeedsReview)

	assert.InDelta(t, 4.40, db.Spent("u1", "2026-05", "dairy"), 1e-9)
	assert.Zero(t, db.Spent("u1", "2026-05", model.CategoryOther))
}

func TestEngine_TotalMismatchForcesManualReview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)

	receipt := testutil.NewReceipt("r1").
		WithItem("Прясно мляко Верея 1л", 2, 2.20).
		WithTotal(25).
		Build()

	result, err := engine.Process(context.Background(), receipt)
	require.NoError(t, err)

	assert.False(t, result.Validation.Passed)
	require.NotEmpty(t, result.Validation.Critical)
	assert.Equal(t, model.IssueTotalMismatch, result.Validation.Critical[0].Type)
	assert.Equal(t, model.ReceiptStatusManualReview, result.Processing.Status)
	assert.False(t, result.Preferences.AlwaysReview, "stored preferences are reported unchanged")
	assert.Zero(t, db.Spent("u1", "2026-05", "dairy"))
}

func TestEngine_UserCorrectionApplies(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	require.NoError(t, db.Storage.SaveCorrection(ctx, &model.Correction{
		UserID:         "u1",
		RawName:        "Xyzzy",
		NormalizedName: normalize.Normalize("Xyzzy").NormalizedName,
		CategoryID:     "snacks",
		CreatedAt:      testNow.Add(-time.Hour),
	}))

	receipt := testutil.NewReceipt("r1").WithItem("Xyzzy", 1, 3.00).Build()
	result, err := engine.Process(ctx, receipt)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "snacks", result.Items[0].CategoryID())
	assert.Equal(t, model.MethodUserCorrection, result.Items[0].Result.Method)
	assert.Equal(t, model.ReceiptStatusCompleted, result.Processing.Status)
}

func TestEngine_StoredPreferencesRoute(t *testing.T) {
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Preferences: []model.Preferences{{UserID: "u1", ConfidenceThreshold: 0.7, AlwaysReview: true}},
	})
	engine := newTestEngine(t, db)

	receipt := testutil.NewReceipt("r1").WithItem("Прясно мляко Верея 1л", 2, 2.20).Build()
	result, err := engine.Process(context.Background(), receipt)
	require.NoError(t, err)

	assert.True(t, result.Preferences.AlwaysReview)
	assert.Equal(t, model.ReceiptStatusManualReview, result.Processing.Status)
	assert.Zero(t, db.Spent("u1", "2026-05", "dairy"))
}

func TestEngine_ReprocessingPostsBudgetOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	receipt := testutil.NewReceipt("r1").WithItem("Прясно мляко Верея 1л", 2, 2.20).Build()
	_, err := engine.Process(ctx, receipt)
	require.NoError(t, err)
	_, err = engine.Process(ctx, receipt)
	require.NoError(t, err)

	assert.InDelta(t, 4.40, db.Spent("u1", "2026-05", "dairy"), 1e-9)
}

func TestEngine_MissingPurchaseDateIsStampedOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	lateMay := time.Date(2026, 5, 31, 23, 30, 0, 0, time.UTC)
	earlyJune := time.Date(2026, 6, 1, 1, 0, 0, 0, time.UTC)

	undated := func() *model.Receipt {
		receipt := testutil.NewReceipt("r1").WithItem("Прясно мляко Верея 1л", 2, 2.20).Build()
		receipt.PurchaseDate = time.Time{}
		return receipt
	}

	first := undated()
	_, err := newTestEngine(t, db, WithClock(func() time.Time { return lateMay })).Process(ctx, first)
	require.NoError(t, err)
	assert.True(t, lateMay.Equal(first.PurchaseDate))

	retry := undated()
	_, err = newTestEngine(t, db, WithClock(func() time.Time { return earlyJune })).Process(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, "2026-05", retry.Month())

	assert.InDelta(t, 4.40, db.Spent("u1", "2026-05", "dairy"), 1e-9)
	assert.Zero(t, db.Spent("u1", "2026-06", "dairy"))
}

func TestEngine_BudgetMonthFollowsLocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sofia := time.FixedZone("EEST", 3*60*60)
	engine := newTestEngine(t, db, WithLocation(sofia))

	receipt := testutil.NewReceipt("r1").
		On(time.Date(2026, 5, 31, 22, 30, 0, 0, time.UTC)).
		WithItem("Прясно мляко Верея 1л", 2, 2.20).
		Build()

	_, err := engine.Process(context.Background(), receipt)
	require.NoError(t, err)

	assert.InDelta(t, 4.40, db.Spent("u1", "2026-06", "dairy"), 1e-9)
	assert.Zero(t, db.Spent("u1", "2026-05", "dairy"))
}

func TestEngine_CatalogLinksAcrossStores(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c, err := catalog.New(db.Storage, catalog.DefaultMatchConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	engine := newTestEngine(t, db, WithCatalog(c))
	ctx := context.Background()

	first, err := engine.Process(ctx, testutil.NewReceipt("r1").
		At("Kaufland").
		WithItem("Прясно мляко Верея 1л", 1, 2.20).
		Build())
	require.NoError(t, err)
	id := first.Items[0].MasterProductID
	require.NotEmpty(t, id)
	assert.True(t, strings.HasPrefix(id, common.PrefixMasterProduct+"-"))

	second, err := engine.Process(ctx, testutil.NewReceipt("r2").
		At("Billa").
		WithItem("Прясно мляко Верея 1л", 1, 2.30).
		Build())
	require.NoError(t, err)
	assert.Equal(t, id, second.Items[0].MasterProductID)

	stored := db.MustReceipt("r2")
	assert.Equal(t, id, stored.Items[0].MasterProductID)

	aliases, err := db.Storage.GetAliases(ctx, id)
	require.NoError(t, err)
	assert.Len(t, aliases, 2)
}

func TestEngine_EmptyReceipt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)

	_, err := engine.Process(context.Background(), testutil.NewReceipt("r1").Build())
	assert.ErrorIs(t, err, common.ErrEmptyReceipt)
}

func TestEngine_ProcessAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)

	receipts := []*model.Receipt{
		testutil.NewReceipt("r1").WithItem("Прясно мляко Верея 1л", 1, 2.20).Build(),
		testutil.NewReceipt("r2").WithItem("Прясно мляко Верея 1л", 1, 2.20).WithItem("Xyzzy", 1, 1).Build(),
		testutil.NewReceipt("r3").ForUser("").WithItem("Банани", 1, 2.00).Build(),
	}

	var seen []string
	summary, err := engine.ProcessAll(context.Background(), receipts, func(r *model.Receipt, _ *Result, _ error) {
		seen = append(seen, r.ID)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2", "r3"}, seen)
	assert.Equal(t, 3, summary.Receipts)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.PendingReview)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Items)
	assert.Equal(t, 2, summary.AutoSavedItems)
}

func TestEngine_ProcessAllCancelled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine := newTestEngine(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := engine.ProcessAll(ctx, []*model.Receipt{
		testutil.NewReceipt("r1").WithItem("Банани", 1, 2.00).Build(),
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Receipts)
}
