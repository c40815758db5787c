package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Components(t *testing.T) {
	floatPtr := func(f float64) *float64 { return &f }

	tests := []struct {
		fat            *float64
		name           string
		raw            string
		wantBase       string
		wantType       string
		wantBrand      string
		wantUnit       string
		wantBarcode    string
		wantNormalized string
		wantAttributes []string
		wantSize       float64
		wantConfidence float64
	}{
		{
			name:           "fresh milk with every component",
			raw:            "Прясно мляко Верея 1л 3.6%",
			wantBase:       "мляко",
			wantType:       "прясно",
			wantBrand:      "Верея",
			wantSize:       1,
			wantUnit:       "л",
			fat:            floatPtr(3.6),
			wantNormalized: "мляко прясно Верея 3.6% 1л",
			wantConfidence: 0.95,
		},
		{
			name:           "condiment wins over vegetable",
			raw:            "ДОМАТЕНА ПАСТА 140г",
			wantBase:       "доматена паста",
			wantSize:       140,
			wantUnit:       "г",
			wantNormalized: "доматена паста 140г",
			wantConfidence: 0.65,
		},
		{
			name:           "plain vegetable",
			raw:            "Домати розови",
			wantBase:       "домати",
			wantNormalized: "домати",
			wantConfidence: 0.5,
		},
		{
			name:           "decimal comma and spaced unit",
			raw:            "Сок Девин портокал 1,5 л",
			wantBase:       "сок",
			wantType:       "портокал",
			wantBrand:      "Девин",
			wantSize:       1.5,
			wantUnit:       "л",
			wantNormalized: "сок портокал Девин 1.5л",
			wantConfidence: 0.9,
		},
		{
			name:           "barcode and attribute",
			raw:            "Био кисело мляко 3800123456789",
			wantBase:       "мляко",
			wantType:       "кисело",
			wantBarcode:    "3800123456789",
			wantAttributes: []string{"био"},
			wantNormalized: "мляко кисело био",
			wantConfidence: 0.65,
		},
		{
			name:           "unknown product keeps residue",
			raw:            "Xyzzy 500g",
			wantBase:       "xyzzy",
			wantSize:       500,
			wantUnit:       "г",
			wantNormalized: "xyzzy 500г",
			wantConfidence: 0.65,
		},
		{
			name:           "nothing but a size falls back to literal",
			raw:            "500г",
			wantBase:       "продукт",
			wantSize:       500,
			wantUnit:       "г",
			wantNormalized: "продукт 500г",
			wantConfidence: 0.65,
		},
		{
			name:           "latin look-alikes inside cyrillic words",
			raw:            "Mлякo Bерея",
			wantBase:       "мляко",
			wantBrand:      "Верея",
			wantNormalized: "мляко Верея",
			wantConfidence: 0.65,
		},
		{
			name:           "olive oil is not butter",
			raw:            "Маслиново масло 500мл",
			wantBase:       "олио",
			wantType:       "маслиново",
			wantSize:       500,
			wantUnit:       "мл",
			wantNormalized: "олио маслиново 500мл",
			wantConfidence: 0.75,
		},
		{
			name:           "sunflower oil is not butter",
			raw:            "Слънчогледово масло 1л",
			wantBase:       "олио",
			wantType:       "слънчогледово",
			wantSize:       1,
			wantUnit:       "л",
			wantNormalized: "олио слънчогледово 1л",
			wantConfidence: 0.75,
		},
		{
			name:           "butter stays butter",
			raw:            "Краве масло Президент 125г",
			wantBase:       "масло",
			wantType:       "краве",
			wantBrand:      "Президент",
			wantSize:       125,
			wantUnit:       "г",
			wantNormalized: "масло краве Президент 125г",
			wantConfidence: 0.9,
		},
		{
			name:           "baby formula before milk",
			raw:            "Адаптирано мляко 400г",
			wantBase:       "адаптирано мляко",
			wantSize:       400,
			wantUnit:       "г",
			wantNormalized: "адаптирано мляко 400г",
			wantConfidence: 0.65,
		},
		{
			name:           "juice percentage is not fat content",
			raw:            "сок ябълка 100%",
			wantBase:       "сок",
			wantType:       "ябълка",
			wantNormalized: "сок ябълка",
			wantConfidence: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			c := got.Components

			assert.Equal(t, tt.wantBase, c.BaseProduct)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.wantBrand, c.Brand)
			assert.InDelta(t, tt.wantSize, c.Size, 0.0001)
			assert.Equal(t, tt.wantUnit, c.Unit)
			assert.Equal(t, tt.wantBarcode, c.Barcode)
			assert.Equal(t, tt.wantAttributes, c.Attributes)
			if tt.fat == nil {
				assert.Nil(t, c.FatContentPct)
			} else {
				require.NotNil(t, c.FatContentPct)
				assert.InDelta(t, *tt.fat, *c.FatContentPct, 0.0001)
			}
			assert.Equal(t, tt.wantNormalized, got.NormalizedName)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 0.0001)
		})
	}
}

func TestNormalize_MilkScenarioConfidence(t *testing.T) {
	got := Normalize("Прясно мляко Верея 1л 3.6%")
	assert.GreaterOrEqual(t, got.Confidence, 0.95)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.Equal(t, "Мляко прясно Верея 3.6% 1л", got.DisplayName)
}

func TestNormalize_Deterministic(t *testing.T) {
	names := []string{
		"Прясно мляко Верея 1л 3.6%",
		"Кока-Кола 2л",
		"ДОМАТЕНА ПАСТА 140г",
		"Био кисело мляко Olympus 2% 400 гр",
		"хляб добруджа 650гр",
		"",
		"   ",
		"12345678",
	}

	for _, name := range names {
		first := Normalize(name)
		second := Normalize(name)
		assert.Equal(t, first.NormalizedName, second.NormalizedName, name)
		assert.Equal(t, first.DisplayName, second.DisplayName, name)
		assert.Equal(t, first.Keywords, second.Keywords, name)
		assert.NotEmpty(t, first.Components.BaseProduct, name)
	}
}

func TestNormalize_IdenticalComponentsIdenticalKey(t *testing.T) {
	a := Normalize("Прясно мляко Верея 1л 3,6%")
	b := Normalize("ВЕРЕЯ прясно МЛЯКО 3.6 % 1 литър")

	assert.Equal(t, a.Components, b.Components)
	assert.Equal(t, a.NormalizedName, b.NormalizedName)
}

func TestNormalize_Keywords(t *testing.T) {
	got := Normalize("Прясно мляко Верея 1л 3.6%")

	assert.Subset(t, got.Keywords, []string{"мляко", "milk", "верея", "прясно", "1л"})
	assert.IsNonDecreasing(t, got.Keywords)
	for _, k := range got.Keywords {
		assert.Greater(t, len([]rune(k)), 1)
	}
}

func TestNormalize_MultiWordBrand(t *testing.T) {
	got := Normalize("Минерална вода Горна Баня 1.5л")

	assert.Equal(t, "Горна Баня", got.Components.Brand)
	assert.Equal(t, "вода", got.Components.BaseProduct)
	assert.Equal(t, "минерална", got.Components.Type)
	assert.Contains(t, got.Keywords, "горна баня")
	assert.Contains(t, got.Keywords, "горнабаня")
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "case and whitespace", raw: "  Кисело   МЛЯКО, 2% ", want: "кисело мляко 2%"},
		{name: "yo folds to ye", raw: "Ёлха", want: "елха"},
		{name: "decimal comma", raw: "Олио 0,5л", want: "олио 0.5л"},
		{name: "punctuation dropped", raw: "Сирене*краве/400г", want: "сирене краве 400г"},
		{name: "latin words untouched", raw: "Coca-Cola", want: "coca-cola"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestGroup(t *testing.T) {
	assert.Equal(t, "condiments", Group("доматена паста"))
	assert.Equal(t, "fruits_vegetables", Group("домати"))
	assert.Equal(t, "dairy", Group("мляко"))
	assert.Equal(t, "dairy", Group("масло"))
	assert.Equal(t, "pantry", Group("олио"))
	assert.Equal(t, "baby", Group("адаптирано мляко"))
	assert.Empty(t, Group("xyzzy"))
}
