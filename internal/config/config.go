package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-receipts-must-flow/internal/catalog"
	"github.com/Veraticus/the-receipts-must-flow/internal/categorize"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/llm"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/quality"
)

// DatabaseFile is the database name inside DataDir.
const DatabaseFile = "bon.db"

// DatabasePath returns the expanded database location.
func DatabasePath(v *viper.Viper) string {
	v = orGlobal(v)
	path := v.GetString("database.path")
	if path == "" {
		return filepath.Join(DataDir(), DatabaseFile)
	}
	return ExpandPath(path)
}

// LoadThresholds reads quality.* over the default thresholds.
func LoadThresholds(v *viper.Viper) (quality.Thresholds, error) {
	thresholds := quality.DefaultThresholds()
	if err := decode(orGlobal(v), "quality", &thresholds); err != nil {
		return quality.Thresholds{}, err
	}
	return thresholds, nil
}

// LoadMatchConfig reads catalog.* over the default matcher configuration.
// The weights must not all be zero.
func LoadMatchConfig(v *viper.Viper) (catalog.MatchConfig, error) {
	cfg := catalog.DefaultMatchConfig()
	if err := decode(orGlobal(v), "catalog", &cfg); err != nil {
		return catalog.MatchConfig{}, err
	}
	w := cfg.Weights
	if w.Name+w.Brand+w.Size+w.Keywords == 0 {
		return catalog.MatchConfig{}, fmt.Errorf("%w: catalog.weights are all zero", common.ErrInvalidConfig)
	}
	return cfg, nil
}

// LoadCategorizeConfig reads categorize.* over the categorizer defaults.
func LoadCategorizeConfig(v *viper.Viper) (categorize.Config, error) {
	cfg := categorize.DefaultConfig()
	if err := decode(orGlobal(v), "categorize", &cfg); err != nil {
		return categorize.Config{}, err
	}
	return cfg, nil
}

// LoadPreferences reads preferences.* over the built-in defaults. These are
// the settings applied to users who never saved their own.
func LoadPreferences(v *viper.Viper) (model.Preferences, error) {
	prefs := model.DefaultPreferences()
	if err := decode(orGlobal(v), "preferences", &prefs); err != nil {
		return model.Preferences{}, err
	}
	return prefs, nil
}

// ValidatePreferences checks user supplied preferences.
func ValidatePreferences(prefs model.Preferences) error {
	if err := common.ValidateStruct(prefs); err != nil {
		return fmt.Errorf("%w: preferences: %w", common.ErrInvalidConfig, err)
	}
	return nil
}

// LoadLLMConfig reads llm.* and falls back to the provider's conventional
// API key variable when llm.api_key is unset. Classification is disabled when
// llm.provider is empty, in which case the returned config is zero.
func LoadLLMConfig(v *viper.Viper) (llm.Config, bool, error) {
	v = orGlobal(v)

	provider := strings.ToLower(v.GetString("llm.provider"))
	if provider == "" || provider == "none" {
		return llm.Config{}, false, nil
	}

	cfg := llm.Config{
		Provider:    provider,
		APIKey:      v.GetString("llm.api_key"),
		Model:       v.GetString("llm.model"),
		BaseURL:     v.GetString("llm.base_url"),
		MaxRetries:  v.GetInt("llm.max_retries"),
		RetryDelay:  v.GetDuration("llm.retry_delay"),
		CacheTTL:    v.GetDuration("llm.cache_ttl"),
		RateLimit:   v.GetInt("llm.rate_limit"),
		Temperature: v.GetFloat64("llm.temperature"),
		MaxTokens:   v.GetInt("llm.max_tokens"),
		Timeout:     v.GetDuration("llm.timeout"),
	}

	if cfg.APIKey == "" {
		switch provider {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			return llm.Config{}, false, fmt.Errorf("%w: unsupported llm.provider %q", common.ErrInvalidConfig, provider)
		}
	}
	if cfg.APIKey == "" {
		return llm.Config{}, false, fmt.Errorf("%w: no API key for %s", common.ErrMissingConfig, provider)
	}
	if cfg.CacheTTL < 0 || cfg.RetryDelay < 0 || cfg.Timeout < 0 {
		return llm.Config{}, false, fmt.Errorf("%w: negative llm durations", common.ErrInvalidConfig)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	return cfg, true, nil
}

func decode(v *viper.Viper, key string, out any) error {
	if v.IsSet(key) {
		if err := v.UnmarshalKey(key, out); err != nil {
			return fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, key, err)
		}
	}
	if err := common.ValidateStruct(out); err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, key, err)
	}
	return nil
}

func orGlobal(v *viper.Viper) *viper.Viper {
	if v == nil {
		return viper.GetViper()
	}
	return v
}
