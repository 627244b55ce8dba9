// Package openai provides a unified client for OpenAI API access
// with support for both Azure OpenAI (primary) and OpenAI platform (fallback)
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailtriage/internal/config"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the model answers without any text
var ErrEmptyResponse = errors.New("empty completion response")

// chatAPI is the subset of the go-openai client used here
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps OpenAI client with Azure OpenAI support and fallback capability
type Client struct {
	primary       chatAPI
	fallback      chatAPI
	gptModel      string
	fallbackModel string
	providerName  string
	timeout       time.Duration
	logger        zerolog.Logger
}

// NewClient creates a new OpenAI client with Azure as primary and OpenAI as fallback
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	client := &Client{
		fallbackModel: cfg.OpenAIModel,
		timeout:       time.Duration(cfg.OpenAITimeout) * time.Second,
		logger:        logger.With().Str("component", "openai").Logger(),
	}

	if cfg.UseAzureOpenAI() {
		azureConfig := openai.DefaultAzureConfig(cfg.AzureOpenAIKey, cfg.AzureOpenAIEndpoint)
		client.primary = openai.NewClientWithConfig(azureConfig)
		client.gptModel = cfg.AzureOpenAIGPTDeployment
		client.providerName = "Azure OpenAI"
	}

	if cfg.HasOpenAIFallback() {
		platform := openai.NewClient(cfg.OpenAIKey)
		if client.primary == nil {
			client.primary = platform
			client.gptModel = cfg.OpenAIModel
			client.providerName = "OpenAI"
		} else {
			client.fallback = platform
		}
	}

	if client.primary == nil {
		return nil, fmt.Errorf("no OpenAI provider configured: set AZURE_OPENAI_ENDPOINT + AZURE_OPENAI_KEY or OPENAI_API_KEY")
	}

	client.logger.Info().
		Str("provider", client.providerName).
		Bool("fallback", client.fallback != nil).
		Msg("OpenAI client configured")

	return client, nil
}

// CreateChatCompletion generates a chat completion
func (c *Client) CreateChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, temperature float32) (*openai.ChatCompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.gptModel,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	resp, err := c.primary.CreateChatCompletion(ctx, req)
	if err != nil && c.fallback != nil {
		c.logger.Warn().Err(err).Msg("Primary chat failed, trying fallback")
		req.Model = c.fallbackModel
		resp, err = c.fallback.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("both providers failed: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	return &resp, nil
}

// Complete sends a system and a user prompt and returns the first choice's text
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	resp, err := c.CreateChatCompletion(ctx, messages, 800, 0.1)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// GetProviderName returns the current primary provider name
func (c *Client) GetProviderName() string {
	return c.providerName
}

// GetGPTModel returns the GPT model/deployment name being used
func (c *Client) GetGPTModel() string {
	return c.gptModel
}
