package history

import "encoding/json"

// Speaker identifies which side of the dialogue produced a turn.
type Speaker string

const (
	SpeakerUser     Speaker = "user"
	SpeakerNarrator Speaker = "narrator"
)

// MaxTurns bounds the conversational context kept per player:
// ten user/narrator exchanges.
const MaxTurns = 20

// Turn is one atomic unit of dialogue. Turns are immutable once appended;
// chronological order is the only ordering signal.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Buffer holds the most recent turns, oldest first.
type Buffer struct {
	turns []Turn
}

func New() *Buffer { return &Buffer{} }

// Decode restores a buffer from its persisted JSON form. Malformed input
// yields an empty buffer: a player must never be locked out of the game by
// corrupted history.
func Decode(raw string) *Buffer {
	if raw == "" {
		return New()
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return New()
	}
	return &Buffer{turns: turns}
}

// Encode serializes the buffer for storage inside the player record.
func (b *Buffer) Encode() (string, error) {
	if len(b.turns) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(b.turns)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Append adds one turn, evicting the oldest beyond MaxTurns.
func (b *Buffer) Append(t Turn) {
	b.turns = append(b.turns, t)
	b.truncate()
}

// AppendPair commits a completed exchange as one unit so the buffer never
// observes half an exchange.
func (b *Buffer) AppendPair(user, narrator Turn) {
	next := make([]Turn, 0, len(b.turns)+2)
	next = append(next, b.turns...)
	next = append(next, user, narrator)
	b.turns = next
	b.truncate()
}

func (b *Buffer) truncate() {
	if len(b.turns) > MaxTurns {
		b.turns = b.turns[len(b.turns)-MaxTurns:]
	}
}

// Turns returns a copy of the buffered turns, oldest first.
func (b *Buffer) Turns() []Turn {
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

func (b *Buffer) Len() int { return len(b.turns) }
