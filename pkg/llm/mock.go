package llm

import (
	"context"
)

// MockTranslator is a configurable mock for testing translation flows.
// Set the function fields to control behavior in tests. It also backs the
// "mock" provider for local development without an API key.
type MockTranslator struct {
	// TranslateFunc is called when Translate is invoked.
	// If nil, returns a harmless canned query.
	TranslateFunc func(ctx context.Context, req TranslationRequest) (TranslationResult, error)

	// ExplainResultsFunc is called when ExplainResults is invoked.
	// If nil, returns a canned explanation.
	ExplainResultsFunc func(ctx context.Context, req ExplanationRequest) (string, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Call tracking for verification
	TranslateCalls      int
	ExplainResultsCalls int

	// LastTranslateRequest records the most recent Translate argument.
	LastTranslateRequest TranslationRequest
}

// Ensure MockTranslator implements Translator at compile time.
var _ Translator = (*MockTranslator)(nil)

// NewMockTranslator creates a new mock with sensible defaults.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// Translate implements Translator.
func (m *MockTranslator) Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	m.TranslateCalls++
	m.LastTranslateRequest = req
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, req)
	}
	return TranslationResult{Query: "SELECT 1"}, nil
}

// ExplainResults implements Translator.
func (m *MockTranslator) ExplainResults(ctx context.Context, req ExplanationRequest) (string, error) {
	m.ExplainResultsCalls++
	if m.ExplainResultsFunc != nil {
		return m.ExplainResultsFunc(ctx, req)
	}
	return "The query returned a fixed sample value.", nil
}

// GetModel implements Translator.
func (m *MockTranslator) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements Translator.
func (m *MockTranslator) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears call tracking counters.
func (m *MockTranslator) Reset() {
	m.TranslateCalls = 0
	m.ExplainResultsCalls = 0
	m.LastTranslateRequest = TranslationRequest{}
}
