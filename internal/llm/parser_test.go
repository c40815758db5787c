package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
)

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bare json",
			content: `{"category_id": "dairy", "confidence": 0.9}`,
			want:    `{"category_id": "dairy", "confidence": 0.9}`,
		},
		{
			name:    "json fence",
			content: "```json\n{\"category_id\": \"dairy\", \"confidence\": 0.9}\n```",
			want:    `{"category_id": "dairy", "confidence": 0.9}`,
		},
		{
			name:    "plain fence",
			content: "```\n{\"category_id\": \"meat\"}\n```",
			want:    `{"category_id": "meat"}`,
		},
		{
			name:    "prose around object",
			content: "Sure! Here is the answer: {\"category_id\": \"fish\"} Hope it helps.",
			want:    `{"category_id": "fish"}`,
		},
		{
			name:    "no object",
			content: "I cannot help with that",
			want:    "I cannot help with that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMarkdownWrapper(tt.content))
		})
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantCategory   string
		wantConfidence float64
		wantErr        bool
	}{
		{
			name:           "valid",
			content:        `{"category_id": "dairy", "confidence": 0.92}`,
			wantCategory:   "dairy",
			wantConfidence: 0.92,
		},
		{
			name:           "fenced",
			content:        "```json\n{\"category_id\": \"bakery\", \"confidence\": 0.7}\n```",
			wantCategory:   "bakery",
			wantConfidence: 0.7,
		},
		{
			name:           "percent confidence",
			content:        `{"category_id": "snacks", "confidence": 85}`,
			wantCategory:   "snacks",
			wantConfidence: 0.85,
		},
		{
			name:    "missing category",
			content: `{"confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: `CATEGORY: dairy`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			content: `{"category_id": "dairy", "confidence": 250}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				var retryable *common.RetryableError
				require.True(t, errors.As(err, &retryable))
				assert.False(t, retryable.Retryable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, got.CategoryID)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 0.0001)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("мляко прясно Верея 1л", []string{"dairy", "other"})

	assert.Contains(t, prompt, "мляко прясно Верея 1л")
	assert.Contains(t, prompt, "- dairy\n")
	assert.Contains(t, prompt, "- other\n")
	assert.Contains(t, prompt, `"category_id"`)
}
