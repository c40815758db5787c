package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-receipts-must-flow/internal/catalog"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/quality"
)

func yamlViper(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return v
}

func TestLoadThresholds(t *testing.T) {
	t.Run("defaults when unset", func(t *testing.T) {
		got, err := LoadThresholds(viper.New())
		require.NoError(t, err)
		assert.Equal(t, quality.DefaultThresholds(), got)
	})

	t.Run("overrides keep other defaults", func(t *testing.T) {
		v := yamlViper(t, `
quality:
  total_tolerance: 0.05
  history_months: 6
`)
		got, err := LoadThresholds(v)
		require.NoError(t, err)
		assert.InDelta(t, 0.05, got.TotalTolerance, 1e-9)
		assert.Equal(t, 6, got.HistoryMonths)
		assert.InDelta(t, 0.85, got.NewItemConfidence, 1e-9)
	})

	t.Run("rejects out of range values", func(t *testing.T) {
		v := yamlViper(t, `
quality:
  total_tolerance: 1.5
`)
		_, err := LoadThresholds(v)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestLoadMatchConfig(t *testing.T) {
	got, err := LoadMatchConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultMatchConfig(), got)

	v := yamlViper(t, `
catalog:
  threshold: 0.7
  weights:
    name: 0.5
`)
	got, err = LoadMatchConfig(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.Threshold, 1e-9)
	assert.InDelta(t, 0.5, got.Weights.Name, 1e-9)
	assert.InDelta(t, 0.25, got.Weights.Brand, 1e-9)

	v = yamlViper(t, `
catalog:
  weights: {name: 0, brand: 0, size: 0, keywords: 0}
`)
	_, err = LoadMatchConfig(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadCategorizeConfig(t *testing.T) {
	v := yamlViper(t, `
categorize:
  workers: 8
  ai_timeout: 30s
`)
	got, err := LoadCategorizeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Workers)
	assert.Equal(t, 30*time.Second, got.AITimeout)
	assert.Equal(t, 5*time.Second, got.StageTimeout)
}

func TestLoadPreferences(t *testing.T) {
	got, err := LoadPreferences(viper.New())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), got)

	v := yamlViper(t, `
preferences:
  confidence_threshold: 0.8
  always_review: true
`)
	got, err = LoadPreferences(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.ConfidenceThreshold, 1e-9)
	assert.True(t, got.AlwaysReview)
	assert.True(t, got.AutoProcessReceipts)

	v = yamlViper(t, `
preferences:
  confidence_threshold: 0.3
`)
	_, err = LoadPreferences(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestValidatePreferences(t *testing.T) {
	assert.NoError(t, ValidatePreferences(model.Preferences{ConfidenceThreshold: 0.5}))
	assert.NoError(t, ValidatePreferences(model.Preferences{ConfidenceThreshold: 0.95}))
	assert.Error(t, ValidatePreferences(model.Preferences{ConfidenceThreshold: 0.96}))
}

func TestLoadLLMConfig(t *testing.T) {
	t.Run("disabled without provider", func(t *testing.T) {
		_, enabled, err := LoadLLMConfig(viper.New())
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("falls back to provider key variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-test")
		v := viper.New()
		v.Set("llm.provider", "Anthropic")
		v.Set("llm.rate_limit", 30)
		v.Set("llm.timeout", "5s")

		cfg, enabled, err := LoadLLMConfig(v)
		require.NoError(t, err)
		assert.True(t, enabled)
		assert.Equal(t, "anthropic", cfg.Provider)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 30, cfg.RateLimit)
		assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		v := viper.New()
		v.Set("llm.provider", "openai")
		_, _, err := LoadLLMConfig(v)
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("unknown provider", func(t *testing.T) {
		v := viper.New()
		v.Set("llm.provider", "ollama")
		_, _, err := LoadLLMConfig(v)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_DATA_HOME", "")
	assert.Equal(t, "/home/test/.local/share/bon/bon.db", DatabasePath(viper.New()))

	v := viper.New()
	v.Set("database.path", "~/receipts.db")
	assert.Equal(t, "/home/test/receipts.db", DatabasePath(v))
}

func TestPaths(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("RECEIPTS", "/srv/receipts")

	assert.Equal(t, "/home/test", ExpandPath("~"))
	assert.Equal(t, "/home/test/bon.db", ExpandPath("~/bon.db"))
	assert.Equal(t, "/srv/receipts/may.json", ExpandPath("$RECEIPTS/may.json"))
	assert.Equal(t, "relative/~/x", ExpandPath("relative/~/x"))
	assert.Empty(t, ExpandPath(""))

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	assert.Equal(t, "/home/test/.config/bon", ConfigDir())
	assert.Equal(t, "/home/test/.local/share/bon", DataDir())

	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	t.Setenv("XDG_DATA_HOME", "relative")
	assert.Equal(t, "/etc/xdg/bon", ConfigDir())
	assert.Equal(t, "/home/test/.local/share/bon", DataDir(), "relative XDG paths are ignored")
}
