// Package llm translates natural language questions into candidate SQL.
//
// Translated queries are never trusted: every result goes through the same
// classification and role gate as hand-written SQL before execution.
package llm

import (
	"context"
)

// TranslationRequest carries one question and the context needed to answer it.
type TranslationRequest struct {
	// Question is the natural language query as the user typed it.
	Question string

	// SchemaContext is the textual schema block built by pkg/prompts.
	SchemaContext string

	// Language names the language the question may be written in.
	// Empty means English.
	Language string

	// AllowMutations permits the model to generate DML/DDL. It follows the
	// caller's role and does not bypass the gate.
	AllowMutations bool
}

// TranslationResult is the parsed model output.
type TranslationResult struct {
	// Query is the extracted SQL statement.
	Query string

	// Explanation is any commentary the model emitted around the SQL,
	// despite being told not to. Often empty.
	Explanation string
}

// ExplanationRequest asks for a natural language summary of executed results.
type ExplanationRequest struct {
	Query    string
	Columns  []string
	Rows     []map[string]any
	Language string
}

// Translator defines the translation model boundary.
// One synchronous call per operation; callers see a typed result or an error,
// never a partial answer. Use this interface for dependency injection to
// enable mocking in tests.
type Translator interface {
	// Translate converts a natural language question into SQL.
	Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error)

	// ExplainResults summarizes a query and a sample of its results.
	ExplainResults(ctx context.Context, req ExplanationRequest) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Config holds configuration for creating a translator.
type Config struct {
	Provider  string // "openai", "anthropic", or "mock"
	Endpoint  string // Base URL override; empty uses the provider default
	Model     string // Model name, e.g. "gpt-4o"
	APIKey    string // Optional for local OpenAI-compatible endpoints
	MaxTokens int    // Response cap; 0 uses defaultMaxTokens
}

// defaultMaxTokens bounds responses when the config does not say otherwise.
// The Anthropic API requires an explicit cap on every request.
const defaultMaxTokens = 1024
