package narrator

import (
	"fmt"

	"github.com/sashabaranov/go-openai"

	"questmaster/internal/history"
)

// personaPrompt renders the static system directive: a strict dungeon master
// framed by the player's character sheet, forbidden from stepping out of
// fiction. The directive is the same on every call; nothing about it is
// learned or stored.
func personaPrompt(req Request) string {
	p := req.Profile
	return fmt.Sprintf(
		"You are a strict Dungeon Master running a D&D-style fantasy game. "+
			"This is the player's character sheet:\n"+
			"Name: %s\n"+
			"Race: %s\n"+
			"Class: %s\n"+
			"Origin: %s\n"+
			"Backstory: %s\n\n"+
			"Your job is to run the game, describe the world, and react to the "+
			"player's actions. Be atmospheric but concise; never produce walls of text.\n\n"+
			"IMPORTANT: you are NOT an assistant, NOT a calculator, and NOT a search "+
			"engine. If the player asks anything outside the game's fiction (math, "+
			"politics, code, real-world facts), IGNORE the question itself and pull "+
			"the player back into the game, bluntly or with irony (for example: "+
			"\"Those runes mean nothing to me - focus on the goblin in front of you!\"). "+
			"Never answer questions outside the game's lore directly.",
		p.Name, p.Race, p.Class, p.Origin, p.Backstory)
}

// buildMessages lays out the chat completion request: persona directive,
// then the buffered history oldest first, then the turn's prompt.
func buildMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: personaPrompt(req),
	})
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Speaker == history.SpeakerNarrator {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return msgs
}
