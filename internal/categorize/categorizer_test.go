package categorize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

type mockCorrections struct {
	err         error
	corrections map[string]*model.Correction
	mu          sync.Mutex
	lookups     int
}

func (m *mockCorrections) GetLatestCorrection(_ context.Context, userID, normalizedName string) (*model.Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.corrections[userID+"|"+normalizedName]
	if !ok {
		return nil, common.ErrNotFound
	}
	return c, nil
}

type mockClassifier struct {
	suggestion *model.Suggestion
	err        error
	calls      []string
	mu         sync.Mutex
	block      bool
}

func (m *mockClassifier) Classify(ctx context.Context, name string, categoryIDs []string) (*model.Suggestion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.suggestion, m.err
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestCategorizer_Waterfall(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		classifier     *mockClassifier
		wantDetail     model.Detail
		name           string
		raw            string
		store          string
		wantCategory   string
		wantMethod     model.Method
		wantConfidence float64
	}{
		{
			name:           "static dictionary hit",
			raw:            "Прясно мляко Верея 1л",
			wantCategory:   "dairy",
			wantMethod:     model.MethodCache,
			wantConfidence: 1.0,
			wantDetail:     model.CacheHit{Key: "мляко прясно"},
		},
		{
			name:           "keyword rule",
			raw:            "Сирене овче Маджаров 400г",
			wantCategory:   "dairy",
			wantMethod:     model.MethodRule,
			wantConfidence: 0.95,
			wantDetail:     model.RuleHit{Keyword: "сирене"},
		},
		{
			name:           "store private label",
			raw:            "Pilos 500г",
			store:          "Lidl Sofia",
			wantCategory:   "dairy",
			wantMethod:     model.MethodStorePattern,
			wantConfidence: 0.85,
		},
		{
			name:           "external classifier accepted",
			raw:            "Xyzzy",
			classifier:     &mockClassifier{suggestion: &model.Suggestion{CategoryID: "snacks", Confidence: 0.8, Provider: "openai"}},
			wantCategory:   "snacks",
			wantMethod:     model.MethodAI,
			wantConfidence: 0.8,
			wantDetail:     model.AIHit{Provider: "openai"},
		},
		{
			name:           "external classifier below threshold",
			raw:            "Xyzzy",
			classifier:     &mockClassifier{suggestion: &model.Suggestion{CategoryID: "snacks", Confidence: 0.5}},
			wantCategory:   model.CategoryOther,
			wantMethod:     model.MethodRule,
			wantConfidence: 0,
			wantDetail:     model.DefaultResult{},
		},
		{
			name:           "external classifier failure is no result",
			raw:            "Xyzzy",
			classifier:     &mockClassifier{err: errors.New("boom")},
			wantCategory:   model.CategoryOther,
			wantMethod:     model.MethodRule,
			wantDetail:     model.DefaultResult{},
		},
		{
			name:           "external classifier unknown category",
			raw:            "Xyzzy",
			classifier:     &mockClassifier{suggestion: &model.Suggestion{CategoryID: "spaceships", Confidence: 0.9}},
			wantCategory:   model.CategoryOther,
			wantMethod:     model.MethodRule,
			wantDetail:     model.DefaultResult{},
		},
		{
			name:           "no classifier falls through to default",
			raw:            "Xyzzy",
			wantCategory:   model.CategoryOther,
			wantMethod:     model.MethodRule,
			wantDetail:     model.DefaultResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var classifier Classifier
			if tt.classifier != nil {
				classifier = tt.classifier
			}
			c := New(nil, classifier, DefaultConfig())

			got := c.Categorize(ctx, tt.raw, tt.store, "")

			assert.Equal(t, tt.wantCategory, got.CategoryID)
			assert.Equal(t, tt.wantMethod, got.Method)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 0.0001)
			assert.True(t, got.Method.Valid())
			if tt.wantDetail != nil {
				assert.Equal(t, tt.wantDetail, got.Detail)
			}
		})
	}
}

func TestCategorizer_UserCorrectionWins(t *testing.T) {
	ctx := context.Background()
	corrections := &mockCorrections{corrections: map[string]*model.Correction{
		"user-1|доматена паста 140г": {UserID: "user-1", CategoryID: "pantry", CreatedAt: time.Now()},
	}}
	c := New(corrections, &mockClassifier{}, DefaultConfig())

	got := c.Categorize(ctx, "Доматена паста 140г", "", "user-1")
	assert.Equal(t, "pantry", got.CategoryID)
	assert.Equal(t, model.MethodUserCorrection, got.Method)
	assert.InDelta(t, 1.0, got.Confidence, 0.0001)

	other := c.Categorize(ctx, "Доматена паста 140г", "", "user-2")
	assert.Equal(t, "condiments", other.CategoryID)
	assert.Equal(t, model.MethodCache, other.Method)
}

func TestCategorizer_CorrectionLookupFailureSkipsStage(t *testing.T) {
	corrections := &mockCorrections{err: errors.New("database locked")}
	c := New(corrections, nil, DefaultConfig())

	got := c.Categorize(context.Background(), "Сирене овче 400г", "", "user-1")
	assert.Equal(t, "dairy", got.CategoryID)
	assert.Equal(t, model.MethodRule, got.Method)
	assert.Equal(t, 1, corrections.lookups)
}

func TestCategorizer_SpecificBeatsGeneric(t *testing.T) {
	ctx := context.Background()

	withCache := New(nil, nil, DefaultConfig())
	got := withCache.Categorize(ctx, "ДОМАТЕНА ПАСТА 140г", "", "")
	assert.Equal(t, "condiments", got.CategoryID)

	rulesOnly := New(nil, nil, DefaultConfig(), WithCache(NewCache(map[string]string{})))
	got = rulesOnly.Categorize(ctx, "ДОМАТЕНА ПАСТА 140г", "", "")
	assert.Equal(t, "condiments", got.CategoryID)
	assert.Equal(t, model.MethodRule, got.Method)
	assert.Equal(t, model.RuleHit{Keyword: "доматена паста"}, got.Detail)

	got = rulesOnly.Categorize(ctx, "Домати розови", "", "")
	assert.Equal(t, "fruits_vegetables", got.CategoryID)
}

func TestCategorizer_OilsAndFormulaBeatDairy(t *testing.T) {
	ctx := context.Background()
	c := New(nil, nil, DefaultConfig())

	tests := []struct {
		raw          string
		wantCategory string
		wantKeyword  string
	}{
		{raw: "Маслиново масло 500мл", wantCategory: "pantry", wantKeyword: "маслиново масло"},
		{raw: "Слънчогледово масло 1л", wantCategory: "pantry", wantKeyword: "слънчогледово масло"},
		{raw: "Зехтин 1л", wantCategory: "pantry", wantKeyword: "зехтин"},
		{raw: "Адаптирано мляко 400г", wantCategory: "baby", wantKeyword: "адаптирано мляко"},
		{raw: "Краве масло 125г", wantCategory: "dairy", wantKeyword: "масло"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := c.Categorize(ctx, tt.raw, "", "")
			assert.Equal(t, tt.wantCategory, got.CategoryID)
			assert.Equal(t, model.MethodRule, got.Method)
			assert.InDelta(t, RuleConfidence, got.Confidence, 0.0001)
			assert.Equal(t, model.RuleHit{Keyword: tt.wantKeyword}, got.Detail)
		})
	}
}

func TestCategorizer_ClassifierTimeout(t *testing.T) {
	classifier := &mockClassifier{block: true}
	config := DefaultConfig()
	config.AITimeout = 20 * time.Millisecond
	c := New(nil, classifier, config)

	start := time.Now()
	got := c.Categorize(context.Background(), "Xyzzy", "", "")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, got.IsDefault())
	assert.Equal(t, 1, classifier.callCount())
}

func TestCategorizer_CategorizeBatch(t *testing.T) {
	classifier := &mockClassifier{suggestion: &model.Suggestion{CategoryID: "snacks", Confidence: 0.9, Provider: "anthropic"}}
	c := New(nil, classifier, DefaultConfig())

	items := []BatchItem{
		{ID: "1", Name: "Прясно мляко Верея 1л"},
		{ID: "2", Name: "Xyzzy"},
		{ID: "3", Name: "Хляб Добруджа 650гр"},
		{ID: "4", Name: "Бира Загорка 0.5л"},
	}

	results, err := c.CategorizeBatch(context.Background(), items, "", "")
	require.NoError(t, err)
	require.Len(t, results, len(items))

	for i, r := range results {
		assert.Equal(t, items[i].ID, r.ID)
		assert.NotEmpty(t, r.Normalized.NormalizedName)
	}
	assert.Equal(t, "dairy", results[0].Result.CategoryID)
	assert.Equal(t, model.MethodAI, results[1].Result.Method)
	assert.Equal(t, "bakery", results[2].Result.CategoryID)
	assert.Equal(t, "alcohol", results[3].Result.CategoryID)
}

func TestCategorizer_CategorizeBatchCancelled(t *testing.T) {
	c := New(nil, nil, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CategorizeBatch(ctx, []BatchItem{{ID: "1", Name: "мляко"}}, "", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStorePatterns_LookupChain(t *testing.T) {
	stores := DefaultStorePatterns()

	tests := []struct {
		store  string
		wantID string
		wantOK bool
	}{
		{store: "KAUFLAND БЪЛГАРИЯ ЕООД", wantID: "kaufland", wantOK: true},
		{store: "Лидл България", wantID: "lidl", wantOK: true},
		{store: "BILLA 123", wantID: "billa", wantOK: true},
		{store: "Квартален магазин", wantOK: false},
		{store: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.store, func(t *testing.T) {
			chain, ok := stores.LookupChain(tt.store)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, chain.ID)
		})
	}
}

func TestRules_FirstCategoryWins(t *testing.T) {
	rules := NewRules(nil)

	category, keyword, ok := rules.Match("паста за зъби колгейт")
	require.True(t, ok)
	assert.Equal(t, "personal_care", category)
	assert.Equal(t, "паста за зъби", keyword)

	category, _, ok = rules.Match("шоколад млечен милка")
	require.True(t, ok)
	assert.Equal(t, "snacks", category)

	_, _, ok = rules.Match("xyzzy")
	assert.False(t, ok)
}

func TestRules_RuleOrderBeatsNameOrder(t *testing.T) {
	rules := NewRules(nil)

	// The canonical key alone reads as plain milk; the raw wording is baby formula.
	category, keyword, ok := rules.Match("мляко 400г", "адаптирано мляко 400г")
	require.True(t, ok)
	assert.Equal(t, "baby", category)
	assert.Equal(t, "адаптирано мляко", keyword)

	category, _, ok = rules.Match("", "Котешка тоалетна 5кг")
	require.True(t, ok)
	assert.Equal(t, "pets", category)

	_, _, ok = rules.Match()
	assert.False(t, ok)
}

func TestCache_Lookup(t *testing.T) {
	cache := NewCache(nil)

	category, key, ok := cache.Lookup("кока-кола 2л")
	require.True(t, ok)
	assert.Equal(t, "beverages", category)
	assert.Equal(t, "кока-кола", key)

	category, _, ok = cache.Lookup("xyzzy", "бира загорка 0.5л")
	require.True(t, ok)
	assert.Equal(t, "alcohol", category)

	_, _, ok = cache.Lookup("xyzzy")
	assert.False(t, ok)
}
