package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/prompts"
)

// OpenAIClient is a Translator backed by an OpenAI-compatible chat API.
// With a custom endpoint it also serves vLLM, Ollama and similar servers.
type OpenAIClient struct {
	client    *openai.Client
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// Ensure OpenAIClient implements Translator at compile time.
var _ Translator = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI-compatible translator.
func NewOpenAIClient(cfg Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		endpoint:  clientConfig.BaseURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("llm"),
	}, nil
}

// Translate implements Translator.
func (c *OpenAIClient) Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompts.BuildTranslationSystemMessage(req.AllowMutations)},
		{Role: openai.ChatMessageRoleUser, Content: prompts.BuildTranslationPrompt(req.Question, req.SchemaContext, req.Language)},
	}

	c.logger.Debug("Translation request",
		zap.String("model", c.model),
		zap.Int("question_len", len(req.Question)),
		zap.Bool("allow_mutations", req.AllowMutations))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		c.logger.Error("Translation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return TranslationResult{}, ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return TranslationResult{}, fmt.Errorf("no choices in response")
	}

	query, commentary := ExtractSQL(resp.Choices[0].Message.Content)
	if query == "" {
		return TranslationResult{}, NewErrorWithContext(ErrorTypeModel, "empty translation", false, nil, c.model, c.endpoint, 0)
	}

	c.logger.Info("Translation completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return TranslationResult{Query: query, Explanation: commentary}, nil
}

// ExplainResults implements Translator.
func (c *OpenAIClient) ExplainResults(ctx context.Context, req ExplanationRequest) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompts.BuildExplanationSystemMessage()},
		{Role: openai.ChatMessageRoleUser, Content: prompts.BuildExplanationPrompt(req.Query, req.Columns, req.Rows, req.Language)},
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		c.logger.Error("Explanation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.logger.Info("Explanation completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *OpenAIClient) GetEndpoint() string {
	return c.endpoint
}
