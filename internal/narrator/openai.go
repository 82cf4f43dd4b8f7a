package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

// OpenAIGateway talks to any OpenAI-compatible chat completion endpoint
// (OpenAI, OpenRouter, a local inference server).
type OpenAIGateway struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	log        zerolog.Logger
}

func NewOpenAIGateway(cfg Config) (*OpenAIGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("narrator API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	return &OpenAIGateway{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        cfg.Logger.With().Str("component", "narrator").Logger(),
	}, nil
}

func (g *OpenAIGateway) Narrate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(req),
		Temperature: 0.8,
		MaxTokens:   1024,
		TopP:        0.95,
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			lastErr = err
			g.log.Warn().Err(err).Int("attempt", attempt).Msg("narration call failed")
			if ctx.Err() != nil {
				break
			}
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			lastErr = errors.New("empty completion")
			g.log.Warn().Int("attempt", attempt).Msg("narration call returned no content")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no narration produced")
	}
	return "", fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
