package game

import (
	"context"
	"fmt"

	"questmaster/internal/drafts"
	"questmaster/internal/player"
)

const (
	greetingText = "Well met, traveler! I am the Dungeon Master.\n" +
		"Let us create your character.\n\nWhat is your name?"
	askRaceText        = "Good. Your race? (Human, Elf, Orc...)"
	askClassText       = "Your class? (Warrior, Mage, Rogue...)"
	askOriginText      = "Your origin? (Where are you from, what did you do before?)"
	askBackstoryText   = "A short backstory: how did you become an adventurer?"
	characterReadyText = "Your character is ready! The story begins...\n\n" +
		"You stand at a crossroads. Where do you go?"
	welcomeBackText = "Welcome back to the game! What will you do?"
	sheetLostText   = "Your character sheet has been lost to the void. Send /start to forge a new hero."
	draftLostText   = "My notes on your character were scattered. Let us start over.\n\nWhat is your name?"
)

// stageStep is one questionnaire transition: where the answer lands, the
// stage that follows, and the prompt sent after advancing.
type stageStep struct {
	assign func(*drafts.Draft, string)
	next   player.Stage
	prompt string
}

// questionnaire is the fixed dispatch table over the five await stages. The
// order is the only reachable one; no input skips or reorders it.
var questionnaire = map[player.Stage]stageStep{
	player.StageAwaitName: {
		assign: func(d *drafts.Draft, v string) { d.Name = v },
		next:   player.StageAwaitRace,
		prompt: askRaceText,
	},
	player.StageAwaitRace: {
		assign: func(d *drafts.Draft, v string) { d.Race = v },
		next:   player.StageAwaitClass,
		prompt: askClassText,
	},
	player.StageAwaitClass: {
		assign: func(d *drafts.Draft, v string) { d.Class = v },
		next:   player.StageAwaitOrigin,
		prompt: askOriginText,
	},
	player.StageAwaitOrigin: {
		assign: func(d *drafts.Draft, v string) { d.Origin = v },
		next:   player.StageAwaitBackstory,
		prompt: askBackstoryText,
	},
	player.StageAwaitBackstory: {
		assign: func(d *drafts.Draft, v string) { d.Backstory = v },
		next:   player.StageActive,
		prompt: characterReadyText,
	},
}

// stagePrompt is the question asked on entering a stage, used when a flow
// resumes or an answer is rejected.
func stagePrompt(stage player.Stage) string {
	switch stage {
	case player.StageAwaitName:
		return greetingText
	case player.StageAwaitRace:
		return askRaceText
	case player.StageAwaitClass:
		return askClassText
	case player.StageAwaitOrigin:
		return askOriginText
	case player.StageAwaitBackstory:
		return askBackstoryText
	default:
		return greetingText
	}
}

func (e *Engine) processAnswer(ctx context.Context, rec player.Record, text string, rsp Responder) error {
	if msg, ok := e.policy.check(text); !ok {
		return rsp.Send(ctx, Reply{Text: msg + "\n\n" + stagePrompt(rec.Stage)})
	}

	step, ok := questionnaire[rec.Stage]
	if !ok {
		return fmt.Errorf("no questionnaire step for stage %q", rec.Stage)
	}

	draft, found, err := e.drafts.Get(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if !found && rec.Stage != player.StageAwaitName {
		// Scratch state vanished mid-flow (a restart, usually). Committing a
		// hole-filled profile would break the active-implies-complete
		// invariant, so the questionnaire starts over instead.
		stage := player.StageAwaitName
		if err := e.store.Upsert(ctx, rec.UserID, player.Patch{Stage: &stage}); err != nil {
			return fmt.Errorf("restart questionnaire: %w", err)
		}
		e.log.Warn().Int64("user_id", rec.UserID).Str("stage", string(rec.Stage)).
			Msg("draft lost mid-questionnaire, restarting")
		return rsp.Send(ctx, Reply{Text: draftLostText})
	}

	// Answers are stored verbatim; validation is the policy's job above.
	step.assign(&draft, text)

	if step.next == player.StageActive {
		profile := player.Profile(draft)
		stage := player.StageActive
		hist := player.EmptyHistory
		if err := e.store.Upsert(ctx, rec.UserID, player.Patch{Stage: &stage, Profile: &profile, History: &hist}); err != nil {
			return fmt.Errorf("commit profile: %w", err)
		}
		if err := e.drafts.Delete(ctx, rec.UserID); err != nil {
			e.log.Warn().Err(err).Int64("user_id", rec.UserID).Msg("draft cleanup failed")
		}
		e.metrics.StageTransitions.WithLabelValues(string(player.StageActive)).Inc()
		e.log.Info().Int64("user_id", rec.UserID).Str("name", profile.Name).Msg("character committed, game active")
		return rsp.Send(ctx, Reply{Text: step.prompt, DiceKeyboard: true})
	}

	if err := e.drafts.Put(ctx, rec.UserID, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	next := step.next
	if err := e.store.Upsert(ctx, rec.UserID, player.Patch{Stage: &next}); err != nil {
		return fmt.Errorf("advance stage: %w", err)
	}
	e.metrics.StageTransitions.WithLabelValues(string(next)).Inc()
	return rsp.Send(ctx, Reply{Text: step.prompt})
}
