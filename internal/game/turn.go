package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"questmaster/internal/history"
	"questmaster/internal/narrator"
	"questmaster/internal/player"
)

// FallbackNarration stands in for the narrator whenever the model call
// fails, so the conversation can always continue.
const FallbackNarration = "The Dungeon Master stares into the void... " +
	"(The magical link faltered. Try that again.)"

// processTurn runs one active-game turn: classify, optionally roll, narrate,
// and commit the exchange as one pair. The caller already holds the user
// lock.
func (e *Engine) processTurn(ctx context.Context, rec player.Record, text string, rsp Responder) error {
	if !rec.Profile.Complete() {
		// An active record with holes in the profile means storage damage.
		// Nothing is guessed; the player restarts the questionnaire.
		e.log.Error().Int64("user_id", rec.UserID).Msg("active record with incomplete profile")
		stage := player.StageAwaitName
		if err := e.store.Upsert(ctx, rec.UserID, player.Patch{Stage: &stage}); err != nil {
			return fmt.Errorf("quarantine damaged record: %w", err)
		}
		return rsp.Send(ctx, Reply{Text: sheetLostText})
	}

	log := e.log.With().Int64("user_id", rec.UserID).Str("turn_id", uuid.NewString()).Logger()

	e.metrics.InFlightTurns.Inc()
	defer e.metrics.InFlightTurns.Dec()

	kind := "narrative"
	prompt := text
	if IsRollRequest(text) {
		kind = "mechanical"
		result := e.roll()
		prompt = rollDirective(result)
		log.Info().Int("roll", result).Msg("die cast")
		// The numeric ack goes out before the model is consulted; a delivery
		// hiccup must not abort the turn.
		if err := rsp.Send(ctx, Reply{Text: rollAck(result), DiceKeyboard: true}); err != nil {
			log.Warn().Err(err).Msg("roll acknowledgment delivery failed")
		}
	}

	buf := history.Decode(rec.History)

	rsp.Typing(ctx)

	// The turn outlives the inbound request: once the narrator is consulted,
	// the exchange commits even if the caller has gone away. Only the
	// narrator timeout bounds it.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.narratorTimeout)
	defer cancel()

	start := time.Now()
	narration, err := e.gateway.Narrate(tctx, narrator.Request{
		Profile: rec.Profile,
		History: buf.Turns(),
		Prompt:  prompt,
	})
	e.metrics.ObserveNarratorLatency(time.Since(start))
	if err != nil {
		e.metrics.NarratorErrors.WithLabelValues(narrationErrorReason(err)).Inc()
		log.Error().Err(err).Msg("narration failed, substituting fallback")
		narration = FallbackNarration
	}

	buf.AppendPair(
		history.Turn{Speaker: history.SpeakerUser, Text: prompt},
		history.Turn{Speaker: history.SpeakerNarrator, Text: narration},
	)
	encoded, err := buf.Encode()
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := e.store.Upsert(tctx, rec.UserID, player.Patch{History: &encoded}); err != nil {
		return fmt.Errorf("persist exchange: %w", err)
	}
	e.metrics.TurnsTotal.WithLabelValues(kind).Inc()

	if err := rsp.Send(tctx, Reply{Text: narration, DiceKeyboard: true}); err != nil {
		return fmt.Errorf("deliver narration: %w", err)
	}
	return nil
}

func narrationErrorReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, narrator.ErrExhausted):
		return "exhausted"
	default:
		return "other"
	}
}
