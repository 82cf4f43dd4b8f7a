package game

import (
	"fmt"
	"math/rand"
	"strings"
)

// DiceButtonLabel is the canonical reply-keyboard action exposed during
// active play.
const DiceButtonLabel = "🎲 Roll the dice (D20)"

// rollPhrase is the free-text shorthand that also triggers a roll.
const rollPhrase = "roll the dice"

// IsRollRequest classifies a mechanical turn: the literal button label or
// the shorthand phrase, case-insensitively. Anything else, including text
// that merely mentions dice, is narrative.
func IsRollRequest(text string) bool {
	t := strings.TrimSpace(text)
	return strings.EqualFold(t, DiceButtonLabel) || strings.EqualFold(t, rollPhrase)
}

// rollD20 draws a uniform result in [1, 20].
func rollD20() int { return rand.Intn(20) + 1 }

func rollAck(result int) string {
	return fmt.Sprintf("🎲 The die is cast! Result: %d", result)
}

// rollDirective synthesizes the system-style prompt that replaces the
// button text in history and in the narration request, so the model sees
// the mechanics without the player's literal input ever reaching it.
func rollDirective(result int) string {
	return fmt.Sprintf(
		"System update: the player rolled a D20. Result: %d. "+
			"Describe the outcome of the player's action (or of unfolding events) "+
			"according to this number (1 is a critical failure, 20 a triumph, "+
			"everything else in proportion).", result)
}
