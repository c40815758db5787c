package llm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
	"github.com/Veraticus/the-receipts-must-flow/internal/model"
	"github.com/Veraticus/the-receipts-must-flow/internal/service"
)

// Classifier adapts an LLM client to the categorizer's external classifier
// contract. Answers are memoized per product name.
type Classifier struct {
	client      Client
	memo        *Memo
	logger      *slog.Logger
	rateLimiter *rateLimiter
	provider    string
	retryOpts   service.RetryOptions
	timeout     time.Duration
	ownsMemo    bool
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
	// Timeout bounds one outbound classification, retries included.
	Timeout     time.Duration
}

const defaultTimeout = 15 * time.Second

// NewClassifier creates a new LLM-based classifier.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(client, cfg, nil, logger), nil
}

// NewClassifierWithClient wraps an existing client. A nil memo gets a private
// one that Close releases.
func NewClassifierWithClient(client Client, cfg Config, memo *Memo, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = 500 * time.Millisecond
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ownsMemo := memo == nil
	if ownsMemo {
		memo = NewMemo(cfg.CacheTTL)
	}

	return &Classifier{
		client:      client,
		memo:        memo,
		logger:      logger,
		retryOpts:   retryOpts,
		timeout:     timeout,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		provider:    strings.ToLower(cfg.Provider),
		ownsMemo:    ownsMemo,
	}
}

// Classify returns the provider's category for name, restricted to
// categoryIDs. Identical names share one outbound call.
func (c *Classifier) Classify(ctx context.Context, name string, categoryIDs []string) (*model.Suggestion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty product name", common.ErrClassificationFailed)
	}

	suggestion, err := c.memo.Do(ctx, strings.ToLower(name), func() (model.Suggestion, error) {
		// Every waiter on this name shares the call, so it runs on its own
		// deadline and outlives a cancelled first caller.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fetchCtx, name, categoryIDs)
	})
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

func (c *Classifier) fetch(ctx context.Context, name string, categoryIDs []string) (model.Suggestion, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return model.Suggestion{}, fmt.Errorf("rate limit error: %w", err)
	}

	prompt := buildPrompt(name, categoryIDs)

	var response ClassificationResponse
	err := common.WithRetry(ctx, func() error {
		var callErr error
		response, callErr = c.client.Classify(ctx, prompt)
		if callErr != nil {
			c.logger.Debug("classification attempt failed",
				"error", callErr,
				"item", name)
		}
		return callErr
	}, c.retryOpts)
	if err != nil {
		return model.Suggestion{}, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	if !slices.Contains(categoryIDs, response.CategoryID) {
		return model.Suggestion{}, fmt.Errorf("%w: category %q is not permitted", common.ErrUnknownCategory, response.CategoryID)
	}

	c.logger.Debug("external classifier answered",
		"item", name,
		"category", response.CategoryID,
		"confidence", response.Confidence)

	return model.Suggestion{
		CategoryID: response.CategoryID,
		Confidence: response.Confidence,
		Provider:   c.provider,
	}, nil
}

// Close stops background goroutines and cleans up resources.
func (c *Classifier) Close() error {
	if c.ownsMemo && c.memo != nil {
		c.memo.Close()
	}
	return nil
}
