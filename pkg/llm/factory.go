package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted by NewTranslator.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// NewTranslator creates a Translator for the configured provider.
// Real providers are wrapped in a circuit breaker; the mock provider is
// returned bare so tests control every call.
func NewTranslator(cfg Config, logger *zap.Logger) (Translator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		client, err := NewOpenAIClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai translator: %w", err)
		}
		return WithCircuitBreaker(client, DefaultCircuitBreakerConfig(), logger), nil

	case ProviderAnthropic:
		client, err := NewAnthropicClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic translator: %w", err)
		}
		return WithCircuitBreaker(client, DefaultCircuitBreakerConfig(), logger), nil

	case ProviderMock:
		return NewMockTranslator(), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
