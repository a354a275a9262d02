package llmservice

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"filing-analyzer/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyResponse = errors.New("completion service returned no choices")

// Completer sends one system instruction and one user message to a
// completion service and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client is a long-lived, immutable handle on an OpenAI-compatible chat
// completion endpoint. It is safe for concurrent use.
type Client struct {
	llm  llms.Model
	opts []llms.CallOption
}

// NewClient builds the completion client once at startup.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating completion client")

	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
		openai.WithHTTPClient(&http.Client{Timeout: llmConfig.Timeout}),
	)
	if err != nil {
		return nil, err
	}

	var opts []llms.CallOption
	if llmConfig.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}
	return &Client{llm: llm, opts: opts}, nil
}

// Complete issues a single non-streaming completion.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	res, err := c.llm.GenerateContent(ctx, messages, c.opts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}
