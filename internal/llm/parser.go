package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/the-receipts-must-flow/internal/common"
)

const systemPrompt = "You categorize Bulgarian grocery receipt items. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

// buildPrompt creates the prompt for a single product name.
func buildPrompt(name string, categoryIDs []string) string {
	var categoryList strings.Builder
	for _, id := range categoryIDs {
		fmt.Fprintf(&categoryList, "- %s\n", id)
	}

	return fmt.Sprintf(`Categorize this grocery receipt item into exactly one of the permitted categories.

Permitted category ids:
%s
Item: %s

Respond with:
{"category_id": "<one of the permitted ids>", "confidence": <0.0-1.0>}`,
		categoryList.String(),
		name)
}

// cleanMarkdownWrapper strips code fences and any prose around the first JSON
// object in content.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```JSON")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// parseClassification extracts category id and confidence from the LLM
// response. Any malformed payload is a non-retryable failure.
func parseClassification(content string) (ClassificationResponse, error) {
	var jsonResp struct {
		CategoryID string  `json:"category_id"`
		Confidence float64 `json:"confidence"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return ClassificationResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("failed to parse JSON response: %w", err),
			Retryable: false,
		}
	}

	if jsonResp.CategoryID == "" {
		return ClassificationResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("no category found in response"),
			Retryable: false,
		}
	}

	// Some models answer in percent.
	confidence := jsonResp.Confidence
	if confidence > 1 && confidence <= 100 {
		confidence /= 100
	}
	if confidence < 0 || confidence > 1 {
		return ClassificationResponse{}, &common.RetryableError{
			Err:       fmt.Errorf("confidence %v out of range", jsonResp.Confidence),
			Retryable: false,
		}
	}

	return ClassificationResponse{
		CategoryID: strings.TrimSpace(jsonResp.CategoryID),
		Confidence: confidence,
	}, nil
}
