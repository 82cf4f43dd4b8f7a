package player

import (
	"context"
	"errors"
)

// Stage is the player's position in the per-user state machine: the five
// questionnaire steps followed by active play. The stage is persisted so a
// restart resumes mid-flow.
type Stage string

const (
	StageAwaitName      Stage = "await_name"
	StageAwaitRace      Stage = "await_race"
	StageAwaitClass     Stage = "await_class"
	StageAwaitOrigin    Stage = "await_origin"
	StageAwaitBackstory Stage = "await_backstory"
	StageActive         Stage = "active"
)

var ErrNotFound = errors.New("player record not found")

// Profile is the committed character sheet. It is written as one unit when
// the questionnaire completes and cleared as one unit on a new-game reset;
// a partially filled profile never reaches the store.
type Profile struct {
	Name      string `json:"name"`
	Race      string `json:"race"`
	Class     string `json:"class"`
	Origin    string `json:"origin"`
	Backstory string `json:"backstory"`
}

func (p Profile) Complete() bool {
	return p.Name != "" && p.Race != "" && p.Class != "" && p.Origin != "" && p.Backstory != ""
}

// Record is the durable per-player state, keyed by the chat user ID.
// History holds the encoded conversation buffer (see internal/history).
type Record struct {
	UserID  int64   `json:"user_id"`
	Stage   Stage   `json:"stage"`
	Profile Profile `json:"profile"`
	History string  `json:"history"`
}

// Patch carries only the fields an Upsert should overwrite.
type Patch struct {
	Stage   *Stage
	Profile *Profile
	History *string
}

// Store persists player records. Get and Upsert are atomic at the
// single-record granularity; Upsert creates the record when absent and
// merges only the supplied fields otherwise. No cross-record transactions
// are needed anywhere in the game.
type Store interface {
	Get(ctx context.Context, userID int64) (Record, error)
	Upsert(ctx context.Context, userID int64, patch Patch) error
	Close() error
}

// EmptyHistory is the encoded form of an empty conversation buffer.
const EmptyHistory = "[]"
