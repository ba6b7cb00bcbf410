package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/datagate-ai/datagate-engine/pkg/prompts"
)

// AnthropicClient is a Translator backed by the Anthropic Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// Ensure AnthropicClient implements Translator at compile time.
var _ Translator = (*AnthropicClient)(nil)

// anthropicDefaultEndpoint mirrors the client library's default base URL.
const anthropicDefaultEndpoint = "https://api.anthropic.com/v1"

// NewAnthropicClient creates a new Anthropic translator.
func NewAnthropicClient(cfg Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []anthropic.ClientOption
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(endpoint))
	} else {
		endpoint = anthropicDefaultEndpoint
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:  endpoint,
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("llm"),
	}, nil
}

// Translate implements Translator.
func (c *AnthropicClient) Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error) {
	userPrompt := prompts.BuildTranslationPrompt(req.Question, req.SchemaContext, req.Language)

	c.logger.Debug("Translation request",
		zap.String("model", c.model),
		zap.Int("question_len", len(req.Question)),
		zap.Bool("allow_mutations", req.AllowMutations))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    prompts.BuildTranslationSystemMessage(req.AllowMutations),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &userPrompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("Translation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return TranslationResult{}, ClassifyError(err)
	}

	query, commentary := ExtractSQL(textFromResponse(resp))
	if query == "" {
		return TranslationResult{}, NewErrorWithContext(ErrorTypeModel, "empty translation", false, nil, c.model, c.endpoint, 0)
	}

	c.logger.Info("Translation completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return TranslationResult{Query: query, Explanation: commentary}, nil
}

// ExplainResults implements Translator.
func (c *AnthropicClient) ExplainResults(ctx context.Context, req ExplanationRequest) (string, error) {
	userPrompt := prompts.BuildExplanationPrompt(req.Query, req.Columns, req.Rows, req.Language)

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    prompts.BuildExplanationSystemMessage(),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &userPrompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("Explanation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	c.logger.Info("Explanation completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(textFromResponse(resp)), nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *AnthropicClient) GetEndpoint() string {
	return c.endpoint
}

// textFromResponse returns the first text block of a messages response.
func textFromResponse(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}
