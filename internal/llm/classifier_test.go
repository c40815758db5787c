package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
)

type mockClient struct {
	classify func(call int, prompt string) (ClassificationResponse, error)
	prompts  []string
	mu       sync.Mutex
}

func (m *mockClient) Classify(_ context.Context, prompt string) (ClassificationResponse, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	call := len(m.prompts)
	m.mu.Unlock()
	return m.classify(call, prompt)
}

func (m *mockClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func testConfig() Config {
	return Config{Provider: "openai", MaxRetries: 3, RetryDelay: time.Millisecond, RateLimit: 6000}
}

var permitted = []string{"dairy", "bakery", "snacks", "other"}

func TestClassifier_Classify(t *testing.T) {
	client := &mockClient{classify: func(int, string) (ClassificationResponse, error) {
		return ClassificationResponse{CategoryID: "dairy", Confidence: 0.9}, nil
	}}
	c := NewClassifierWithClient(client, testConfig(), nil, nil)
	defer func() { _ = c.Close() }()

	got, err := c.Classify(context.Background(), "кашкавал Маджаров 400г", permitted)
	require.NoError(t, err)
	assert.Equal(t, "dairy", got.CategoryID)
	assert.InDelta(t, 0.9, got.Confidence, 0.0001)
	assert.Equal(t, "openai", got.Provider)

	// Second call for the same name is served from the memo.
	_, err = c.Classify(context.Background(), "кашкавал Маджаров 400г", permitted)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls())
}

func TestClassifier_SharedMemo(t *testing.T) {
	memo := NewMemo(time.Minute)
	defer memo.Close()

	client := &mockClient{classify: func(int, string) (ClassificationResponse, error) {
		return ClassificationResponse{CategoryID: "bakery", Confidence: 0.8}, nil
	}}
	first := NewClassifierWithClient(client, testConfig(), memo, nil)
	second := NewClassifierWithClient(client, testConfig(), memo, nil)

	_, err := first.Classify(context.Background(), "хляб", permitted)
	require.NoError(t, err)
	_, err = second.Classify(context.Background(), "хляб", permitted)
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls())
	require.NoError(t, first.Close())
	_, found := memo.Get("хляб")
	assert.True(t, found, "closing a classifier must not touch a shared memo")
}

func TestClassifier_ConcurrentIdenticalNames(t *testing.T) {
	release := make(chan struct{})
	client := &mockClient{classify: func(int, string) (ClassificationResponse, error) {
		<-release
		return ClassificationResponse{CategoryID: "snacks", Confidence: 0.7}, nil
	}}
	c := NewClassifierWithClient(client, testConfig(), nil, nil)
	defer func() { _ = c.Close() }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Classify(context.Background(), "чипс", permitted)
			assert.NoError(t, err)
			if got != nil {
				assert.Equal(t, "snacks", got.CategoryID)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, client.calls())
}

type blockingClient struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingClient) Classify(ctx context.Context, _ string) (ClassificationResponse, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
		return ClassificationResponse{CategoryID: "dairy", Confidence: 0.85}, nil
	case <-ctx.Done():
		return ClassificationResponse{}, ctx.Err()
	}
}

func TestClassifier_CancelledCallerDoesNotFailOthers(t *testing.T) {
	client := &blockingClient{started: make(chan struct{}), release: make(chan struct{})}
	c := NewClassifierWithClient(client, testConfig(), nil, nil)
	defer func() { _ = c.Close() }()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Classify(firstCtx, "сирене", permitted)
		firstErr <- err
	}()
	<-client.started

	type outcome struct {
		category string
		err      error
	}
	second := make(chan outcome, 1)
	go func() {
		got, err := c.Classify(context.Background(), "сирене", permitted)
		if err != nil {
			second <- outcome{err: err}
			return
		}
		second <- outcome{category: got.CategoryID}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(client.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "dairy", res.category)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestClassifier_SharedCallHasOwnDeadline(t *testing.T) {
	client := &blockingClient{started: make(chan struct{}), release: make(chan struct{})}
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.Timeout = 20 * time.Millisecond
	c := NewClassifierWithClient(client, cfg, nil, nil)
	defer func() { _ = c.Close() }()

	_, err := c.Classify(context.Background(), "сирене", permitted)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassifier_Failures(t *testing.T) {
	tests := []struct {
		classify  func(call int, prompt string) (ClassificationResponse, error)
		wantIs    error
		name      string
		wantCalls int
	}{
		{
			name: "category outside the permitted list",
			classify: func(int, string) (ClassificationResponse, error) {
				return ClassificationResponse{CategoryID: "spaceships", Confidence: 0.99}, nil
			},
			wantIs:    common.ErrUnknownCategory,
			wantCalls: 1,
		},
		{
			name: "unparseable payload is not retried",
			classify: func(int, string) (ClassificationResponse, error) {
				return parseClassification("no json here")
			},
			wantIs:    common.ErrClassificationFailed,
			wantCalls: 1,
		},
		{
			name: "transient errors exhaust retries",
			classify: func(int, string) (ClassificationResponse, error) {
				return ClassificationResponse{}, &common.RetryableError{Err: errors.New("502"), Retryable: true}
			},
			wantIs:    common.ErrClassificationFailed,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{classify: tt.classify}
			c := NewClassifierWithClient(client, testConfig(), nil, nil)
			defer func() { _ = c.Close() }()

			got, err := c.Classify(context.Background(), "xyzzy", permitted)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCalls, client.calls())
		})
	}
}

func TestClassifier_RecoversAfterTransientError(t *testing.T) {
	client := &mockClient{classify: func(call int, _ string) (ClassificationResponse, error) {
		if call == 1 {
			return ClassificationResponse{}, &common.RetryableError{Err: errors.New("503"), Retryable: true}
		}
		return ClassificationResponse{CategoryID: "dairy", Confidence: 0.95}, nil
	}}
	c := NewClassifierWithClient(client, testConfig(), nil, nil)
	defer func() { _ = c.Close() }()

	got, err := c.Classify(context.Background(), "извара", permitted)
	require.NoError(t, err)
	assert.Equal(t, "dairy", got.CategoryID)
	assert.Equal(t, 2, client.calls())
}

func TestClassifier_EmptyName(t *testing.T) {
	c := NewClassifierWithClient(&mockClient{}, testConfig(), nil, nil)
	defer func() { _ = c.Close() }()

	_, err := c.Classify(context.Background(), "   ", permitted)
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := newRateLimiter(1)
	require.NoError(t, rl.wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.wait(ctx))
}
