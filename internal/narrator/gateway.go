// Package narrator is the boundary to the external language model acting as
// the in-fiction game master. Everything behind Gateway may fail; callers
// decide what flavor text covers for it.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"questmaster/internal/history"
	"questmaster/internal/player"
)

// Request carries everything a narration needs: the character sheet for
// persona framing, the bounded history oldest first, and the turn's prompt
// text (raw player input or a synthesized roll directive).
type Request struct {
	Profile player.Profile
	History []history.Turn
	Prompt  string
}

// Gateway produces one narration per request. Implementations must return an
// explicit error on any transport or inference failure; they never invent a
// reply to cover for one.
type Gateway interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

// ErrExhausted marks a narration that failed after all retries.
var ErrExhausted = errors.New("narrator retries exhausted")

// Config controls gateway construction.
type Config struct {
	Mode       string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     zerolog.Logger
}

// New picks the gateway implementation by mode. "auto" uses the OpenAI
// compatible backend when a key is configured and the mock otherwise, so the
// bot stays playable in local development.
func New(cfg Config) (Gateway, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewOpenAIGateway(cfg)
		}
		return NewMockGateway(), nil
	case "openai":
		return NewOpenAIGateway(cfg)
	case "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unsupported narrator mode %q", cfg.Mode)
	}
}
