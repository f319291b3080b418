// Package llm adapts the OpenAI chat completion API to the support pipeline's generator.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"shopdesk-backend/internal/prompts"
	"shopdesk-backend/internal/types"
)

const (
	chatTimeout     = 20 * time.Second
	classifyTimeout = 10 * time.Second
)

var errNoChoices = errors.New("no choices")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Style   prompts.Style
}

// Client calls the chat completion endpoint once per request; it holds no
// conversation state between calls.
type Client struct {
	client *openai.Client
	model  string
	style  prompts.Style
}

// New returns nil when no API key is configured so callers can treat the
// backend as unavailable.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{client: openai.NewClientWithConfig(oc), model: model, style: cfg.Style}
}

// Generate sends history followed by message and returns the reply text.
func (c *Client) Generate(ctx context.Context, history []types.ChatTurn, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	messages := convertMessages(history)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.style.Temperature,
		TopP:        c.style.TopP,
		MaxTokens:   c.style.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete runs a single-prompt completion, used for short labelling tasks.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	maxTok := c.style.ClassifyMaxTokens
	if maxTok <= 0 {
		maxTok = 5
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   maxTok,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "classification completion")
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func convertMessages(turns []types.ChatTurn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	for _, t := range turns {
		role := t.Role
		switch role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleUser, "":
			role = openai.ChatMessageRoleUser
		default:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return out
}
