package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-receipts-must-flow/internal/catalog"
	"github.com/Veraticus/the-receipts-must-flow/internal/categorize"
	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/config"
	"github.com/Veraticus/the-receipts-must-flow/internal/engine"
	"github.com/Veraticus/the-receipts-must-flow/internal/llm"
	"github.com/Veraticus/the-receipts-must-flow/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(nil)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError("could not open the receipt database at "+dbPath, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newCategorizer builds the waterfall. The external classifier stage is
// enabled when llm.provider is configured; the returned cleanup releases it.
func newCategorizer(corrections categorize.CorrectionStore) (*categorize.Categorizer, func(), error) {
	cfg, err := config.LoadCategorizeConfig(nil)
	if err != nil {
		return nil, nil, err
	}

	var classifier categorize.Classifier
	cleanup := func() {}

	llmCfg, enabled, err := config.LoadLLMConfig(nil)
	if err != nil {
		return nil, nil, common.NewUserError("the external classifier is misconfigured", err)
	}
	if enabled {
		if llmCfg.Timeout == 0 {
			llmCfg.Timeout = cfg.AITimeout
		}
		c, err := llm.NewClassifier(llmCfg, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		classifier = c
		cleanup = func() { _ = c.Close() }
		slog.Debug("External classifier enabled", "provider", llmCfg.Provider, "model", llmCfg.Model)
	}

	return categorize.New(corrections, classifier, cfg, categorize.WithLogger(slog.Default())), cleanup, nil
}

// newEngine wires the full pipeline over store. extra is applied last.
func newEngine(store *storage.SQLiteStorage, extra ...engine.Option) (*engine.Engine, func(), error) {
	categorizer, closeCategorizer, err := newCategorizer(store)
	if err != nil {
		return nil, nil, err
	}

	thresholds, err := config.LoadThresholds(nil)
	if err != nil {
		closeCategorizer()
		return nil, nil, err
	}
	defaults, err := config.LoadPreferences(nil)
	if err != nil {
		closeCategorizer()
		return nil, nil, err
	}

	opts := []engine.Option{
		engine.WithThresholds(thresholds),
		engine.WithDefaultPreferences(defaults),
		engine.WithLogger(slog.Default()),
	}
	cleanup := closeCategorizer

	if viper.GetBool("catalog.enabled") {
		matchCfg, err := config.LoadMatchConfig(nil)
		if err != nil {
			closeCategorizer()
			return nil, nil, err
		}
		c, err := catalog.New(store, matchCfg, slog.Default())
		if err != nil {
			closeCategorizer()
			return nil, nil, err
		}
		opts = append(opts, engine.WithCatalog(c))
		cleanup = func() {
			_ = c.Close()
			closeCategorizer()
		}
	}

	opts = append(opts, extra...)
	return engine.New(store, categorizer, opts...), cleanup, nil
}
