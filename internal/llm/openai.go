package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI speaks the chat completions protocol, which also covers local
// gateways exposing the same endpoint.
type OpenAI struct {
	http *resty.Client
	cfg  Config
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAI returns a client for cfg. A key is optional for self-hosted gateways.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	cfg.SetDefaults()
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
		}
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &OpenAI{http: client, cfg: cfg}, nil
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: user})

	var (
		out    chatResponse
		failed apiError
	)
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&failed).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if resp.IsError() {
		msg := failed.Error.Message
		if msg == "" {
			msg = resp.String()
		}
		return "", fmt.Errorf("openai chat: status %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
