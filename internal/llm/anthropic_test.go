package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropicClient(t *testing.T) {
	_, err := newAnthropicClient(Config{})
	require.Error(t, err)

	client, err := newAnthropicClient(Config{APIKey: "test-key", Model: "claude-3-5-sonnet-latest"})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet-latest", client.(*anthropicClient).model)
}

func TestAnthropicClient_Classify(t *testing.T) {
	tests := []struct {
		name           string
		reply          string
		wantCategory   string
		wantConfidence float64
		wantErr        bool
	}{
		{
			name:           "plain json",
			reply:          `{"category_id": "bakery", "confidence": 0.88}`,
			wantCategory:   "bakery",
			wantConfidence: 0.88,
		},
		{
			name:           "json with prose",
			reply:          "Here you go:\n{\"category_id\": \"meat\", \"confidence\": 0.75}",
			wantCategory:   "meat",
			wantConfidence: 0.75,
		},
		{
			name:    "unparseable",
			reply:   "I think it is bread",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/messages", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
				assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

				var req map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, systemPrompt, req["system"])

				body, _ := json.Marshal(map[string]any{
					"id":      "msg_1",
					"type":    "message",
					"role":    "assistant",
					"content": []map[string]string{{"type": "text", "text": tt.reply}},
				})
				_, _ = io.WriteString(w, string(body))
			}))
			defer server.Close()

			client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)

			got, err := client.Classify(context.Background(), "prompt")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, got.CategoryID)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 0.0001)
		})
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)

	_, err = NewClient(Config{Provider: "Anthropic", APIKey: "k"})
	require.NoError(t, err)

	_, err = NewClient(Config{Provider: "gemini", APIKey: "k"})
	assert.Error(t, err)
}
