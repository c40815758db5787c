package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
)

// Client defines the interface for LLM providers.
type Client interface {
	Classify(ctx context.Context, prompt string) (ClassificationResponse, error)
}

// ClassificationResponse contains the LLM's classification result.
type ClassificationResponse struct {
	CategoryID string
	Confidence float64
}

// statusError converts a non-2xx provider response into an error that the
// retry loop understands: 429 and 5xx are retried, other statuses are not.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return common.Permanent(err)
	}
}
