package narrator

import (
	"context"
	"fmt"
	"strings"
)

// MockGateway produces deterministic local narration so the bot can be
// played end to end without an inference backend.
type MockGateway struct{}

func NewMockGateway() *MockGateway { return &MockGateway{} }

func (g *MockGateway) Narrate(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	name := strings.TrimSpace(req.Profile.Name)
	if name == "" {
		name = "adventurer"
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = "silence"
	}
	return fmt.Sprintf(
		"The Dungeon Master narrows his eyes at %s. \"So, %q, is it? The torchlight "+
			"flickers, and somewhere ahead something answers.\" (%d turns remembered)",
		name, prompt, len(req.History)), nil
}
