// Package llm provides the external product classifier used as the last
// stage of the categorization waterfall. It supports OpenAI and Anthropic,
// with retry logic, rate limiting, and a single-flight response memo.
package llm
