// Package game is the session orchestration core: the per-user state
// machine over the questionnaire and active play, and the turn pipeline
// that feeds the narrator.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"questmaster/internal/drafts"
	"questmaster/internal/narrator"
	"questmaster/internal/observability"
	"questmaster/internal/player"
)

// Reply is one outbound message. DiceKeyboard asks the transport to attach
// the persistent roll-die keyboard; transports without keyboards ignore it.
type Reply struct {
	Text         string `json:"text"`
	DiceKeyboard bool   `json:"dice_keyboard"`
}

// Responder delivers replies for one chat. Telegram chats and the playtest
// websocket console both implement it.
type Responder interface {
	Send(ctx context.Context, reply Reply) error
	// Typing signals best-effort that a narration is being prepared.
	Typing(ctx context.Context)
}

// AnswerPolicy validates questionnaire answers. The zero value accepts
// anything verbatim, matching the original flow; operators can tighten it
// through configuration.
type AnswerPolicy struct {
	MinLen int
	MaxLen int
}

func (p AnswerPolicy) check(text string) (string, bool) {
	if p.MinLen > 0 && len([]rune(strings.TrimSpace(text))) < p.MinLen {
		return fmt.Sprintf("Give me at least %d characters, adventurer.", p.MinLen), false
	}
	if p.MaxLen > 0 && len([]rune(text)) > p.MaxLen {
		return fmt.Sprintf("That is a saga, not an answer. Keep it under %d characters.", p.MaxLen), false
	}
	return "", true
}

// Engine drives every player session. One turn holds its user's lock end to
// end; sessions for different users run concurrently.
type Engine struct {
	store           player.Store
	drafts          drafts.Store
	gateway         narrator.Gateway
	metrics         *observability.Metrics
	log             zerolog.Logger
	policy          AnswerPolicy
	narratorTimeout time.Duration
	roll            func() int
	locks           *userLocks
}

func NewEngine(
	store player.Store,
	draftStore drafts.Store,
	gateway narrator.Gateway,
	metrics *observability.Metrics,
	log zerolog.Logger,
	policy AnswerPolicy,
	narratorTimeout time.Duration,
) *Engine {
	if narratorTimeout <= 0 {
		narratorTimeout = 90 * time.Second
	}
	return &Engine{
		store:           store,
		drafts:          draftStore,
		gateway:         gateway,
		metrics:         metrics,
		log:             log.With().Str("component", "game").Logger(),
		policy:          policy,
		narratorTimeout: narratorTimeout,
		roll:            rollD20,
		locks:           newUserLocks(),
	}
}

// HandleMessage routes one inbound message by the persisted stage. A user
// without a record gets one created at the first questionnaire stage, and
// the message itself is consumed as the first answer.
func (e *Engine) HandleMessage(ctx context.Context, userID int64, text string, rsp Responder) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	rec, err := e.store.Get(ctx, userID)
	if errors.Is(err, player.ErrNotFound) {
		if err := e.store.Upsert(ctx, userID, player.Patch{}); err != nil {
			return fmt.Errorf("create player record: %w", err)
		}
		rec = player.Record{UserID: userID, Stage: player.StageAwaitName, History: player.EmptyHistory}
	} else if err != nil {
		return fmt.Errorf("load player record: %w", err)
	}

	if rec.Stage == player.StageActive {
		return e.processTurn(ctx, rec, text, rsp)
	}
	return e.processAnswer(ctx, rec, text, rsp)
}

// Begin handles the explicit greeting (/start). A returning player with a
// complete profile resumes active play without replaying the questionnaire;
// everyone else starts character creation from the top.
func (e *Engine) Begin(ctx context.Context, userID int64, rsp Responder) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	rec, err := e.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, player.ErrNotFound) {
		return fmt.Errorf("load player record: %w", err)
	}

	if err == nil && rec.Profile.Complete() {
		stage := player.StageActive
		if err := e.store.Upsert(ctx, userID, player.Patch{Stage: &stage}); err != nil {
			return fmt.Errorf("resume game: %w", err)
		}
		return rsp.Send(ctx, Reply{Text: welcomeBackText, DiceKeyboard: true})
	}

	stage := player.StageAwaitName
	if err := e.store.Upsert(ctx, userID, player.Patch{Stage: &stage}); err != nil {
		return fmt.Errorf("start questionnaire: %w", err)
	}
	if err := e.drafts.Delete(ctx, userID); err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("draft cleanup failed")
	}
	e.metrics.StageTransitions.WithLabelValues(string(player.StageAwaitName)).Inc()
	return rsp.Send(ctx, Reply{Text: greetingText})
}

// Reset is the administrative new-game operation: profile and history are
// cleared as one unit, the identity key survives, and the questionnaire
// restarts. Returns player.ErrNotFound for unknown users.
func (e *Engine) Reset(ctx context.Context, userID int64) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.store.Get(ctx, userID); err != nil {
		return err
	}

	stage := player.StageAwaitName
	empty := player.Profile{}
	hist := player.EmptyHistory
	if err := e.store.Upsert(ctx, userID, player.Patch{Stage: &stage, Profile: &empty, History: &hist}); err != nil {
		return fmt.Errorf("reset player %d: %w", userID, err)
	}
	if err := e.drafts.Delete(ctx, userID); err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("draft cleanup failed")
	}
	e.log.Info().Int64("user_id", userID).Msg("player reset to a new game")
	return nil
}
