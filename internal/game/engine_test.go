package game

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"questmaster/internal/drafts"
	"questmaster/internal/history"
	"questmaster/internal/narrator"
	"questmaster/internal/observability"
	"questmaster/internal/player"
)

// scriptGateway returns a fixed narration (or error) and records every
// request it sees.
type scriptGateway struct {
	mu    sync.Mutex
	reqs  []narrator.Request
	reply string
	err   error
}

func (g *scriptGateway) Narrate(_ context.Context, req narrator.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *scriptGateway) requests() []narrator.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]narrator.Request, len(g.reqs))
	copy(out, g.reqs)
	return out
}

type memoryResponder struct {
	mu      sync.Mutex
	replies []Reply
	typing  int
}

func (r *memoryResponder) Send(_ context.Context, reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *memoryResponder) Typing(_ context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing++
}

func (r *memoryResponder) all() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reply, len(r.replies))
	copy(out, r.replies)
	return out
}

func (r *memoryResponder) last() Reply {
	all := r.all()
	if len(all) == 0 {
		return Reply{}
	}
	return all[len(all)-1]
}

func newTestEngine(t *testing.T, gw narrator.Gateway, policy AnswerPolicy) (*Engine, *player.MemoryStore) {
	t.Helper()
	store := player.NewMemoryStore()
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "test")
	e := NewEngine(store, drafts.NewMemoryStore(), gw, metrics, zerolog.Nop(), policy, time.Second)
	return e, store
}

func seedActivePlayer(t *testing.T, store *player.MemoryStore, userID int64) player.Profile {
	t.Helper()
	profile := player.Profile{
		Name: "Alex", Race: "Elf", Class: "Mage",
		Origin: "Merchant town", Backstory: "Ran from a burning village",
	}
	stage := player.StageActive
	if err := store.Upsert(context.Background(), userID, player.Patch{Stage: &stage, Profile: &profile}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return profile
}

func storedTurns(t *testing.T, store *player.MemoryStore, userID int64) []history.Turn {
	t.Helper()
	rec, err := store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return history.Decode(rec.History).Turns()
}

func TestQuestionnaireScenario(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "unreached"}
	e, store := newTestEngine(t, gw, AnswerPolicy{})

	answers := []string{"Alex", "Elf", "Mage", "Merchant town", "Ran from a burning village"}
	wantStages := []player.Stage{
		player.StageAwaitRace,
		player.StageAwaitClass,
		player.StageAwaitOrigin,
		player.StageAwaitBackstory,
		player.StageActive,
	}

	for i, answer := range answers {
		rsp := &memoryResponder{}
		if err := e.HandleMessage(ctx, 100, answer, rsp); err != nil {
			t.Fatalf("message %d: HandleMessage() error = %v", i, err)
		}
		rec, err := store.Get(ctx, 100)
		if err != nil {
			t.Fatalf("message %d: Get() error = %v", i, err)
		}
		if rec.Stage != wantStages[i] {
			t.Fatalf("message %d: Stage = %q, want %q", i, rec.Stage, wantStages[i])
		}
	}

	rec, err := store.Get(ctx, 100)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := player.Profile{Name: "Alex", Race: "Elf", Class: "Mage", Origin: "Merchant town", Backstory: "Ran from a burning village"}
	if rec.Profile != want {
		t.Fatalf("Profile = %+v, want %+v", rec.Profile, want)
	}
	if got := history.Decode(rec.History).Len(); got != 0 {
		t.Fatalf("history length = %d, want 0 after questionnaire", got)
	}
	if len(gw.requests()) != 0 {
		t.Fatalf("narrator called %d times during questionnaire", len(gw.requests()))
	}
}

func TestReturningActiveUserRoutesToTurnProcessor(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "The cave swallows your torchlight."}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 7)

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 7, "I enter the cave", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	reqs := gw.requests()
	if len(reqs) != 1 {
		t.Fatalf("narrator calls = %d, want 1", len(reqs))
	}
	if reqs[0].Prompt != "I enter the cave" {
		t.Fatalf("Prompt = %q, want raw input", reqs[0].Prompt)
	}
	if reqs[0].Profile.Name != "Alex" {
		t.Fatalf("Profile.Name = %q, want Alex", reqs[0].Profile.Name)
	}

	rec, _ := store.Get(ctx, 7)
	if rec.Stage != player.StageActive {
		t.Fatalf("Stage = %q, returning user fell back into the questionnaire", rec.Stage)
	}
	turns := storedTurns(t, store, 7)
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[0].Speaker != history.SpeakerUser || turns[1].Speaker != history.SpeakerNarrator {
		t.Fatalf("history speakers = %q,%q", turns[0].Speaker, turns[1].Speaker)
	}
	if rsp.last().Text != "The cave swallows your torchlight." {
		t.Fatalf("last reply = %q", rsp.last().Text)
	}
	if !rsp.last().DiceKeyboard {
		t.Fatalf("active reply is missing the dice keyboard hint")
	}
	if rsp.typing == 0 {
		t.Fatalf("typing indicator never fired before narration")
	}
}

func TestMechanicalTurn(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "A crit! The ogre topples."}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 8)
	e.roll = func() int { return 17 }

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 8, DiceButtonLabel, rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	replies := rsp.all()
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want ack + narration", len(replies))
	}
	if !strings.Contains(replies[0].Text, "17") {
		t.Fatalf("ack %q does not carry the roll result", replies[0].Text)
	}

	turns := storedTurns(t, store, 8)
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[0].Text == DiceButtonLabel {
		t.Fatalf("literal button text leaked into history")
	}
	if !strings.Contains(turns[0].Text, "17") {
		t.Fatalf("synthesized directive %q does not mention the roll", turns[0].Text)
	}

	reqs := gw.requests()
	if len(reqs) != 1 || reqs[0].Prompt != turns[0].Text {
		t.Fatalf("narrator prompt = %q, want the synthesized directive", reqs[0].Prompt)
	}
}

func TestMechanicalShorthandIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "The die clatters."}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 9)
	e.roll = func() int { return 3 }

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 9, "ROLL THE DICE", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(rsp.all()) != 2 {
		t.Fatalf("replies = %d, want ack + narration", len(rsp.all()))
	}
	if !strings.Contains(rsp.all()[0].Text, "3") {
		t.Fatalf("ack %q does not carry the roll result", rsp.all()[0].Text)
	}
}

func TestNarratorFailureFallsBackAndStillCommits(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{err: errors.New("inference backend down")}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 10)

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 10, "I search the altar", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if rsp.last().Text != FallbackNarration {
		t.Fatalf("last reply = %q, want fallback narration", rsp.last().Text)
	}

	turns := storedTurns(t, store, 10)
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want exactly one committed pair", len(turns))
	}
	if turns[1].Text != FallbackNarration {
		t.Fatalf("narrator turn = %q, want fallback narration", turns[1].Text)
	}
}

func TestCorruptedHistoryRecoversAsEmpty(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "You wake at the crossroads."}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 11)

	corrupted := `{"not":"a turn array`
	if err := store.Upsert(ctx, 11, player.Patch{History: &corrupted}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 11, "Where am I?", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	reqs := gw.requests()
	if len(reqs) != 1 || len(reqs[0].History) != 0 {
		t.Fatalf("narrator saw %d history turns, want 0 after corruption", len(reqs[0].History))
	}
	if got := storedTurns(t, store, 11); len(got) != 2 {
		t.Fatalf("history length = %d, want 2 (fresh pair replacing corrupted blob)", len(got))
	}
}

func TestHistoryStaysBoundedAcrossManyTurns(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "Noted."}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 12)

	for i := 0; i < 15; i++ {
		rsp := &memoryResponder{}
		if err := e.HandleMessage(ctx, 12, "step "+strconv.Itoa(i), rsp); err != nil {
			t.Fatalf("turn %d: HandleMessage() error = %v", i, err)
		}
	}

	turns := storedTurns(t, store, 12)
	if len(turns) != history.MaxTurns {
		t.Fatalf("history length = %d, want %d", len(turns), history.MaxTurns)
	}
	if turns[0].Text != "step 5" {
		t.Fatalf("oldest retained turn = %q, want %q", turns[0].Text, "step 5")
	}
	if turns[len(turns)-2].Text != "step 14" {
		t.Fatalf("newest user turn = %q, want %q", turns[len(turns)-2].Text, "step 14")
	}
}

func TestBeginResumesCompletedProfileWithoutReplay(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "unused"}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 13)

	rsp := &memoryResponder{}
	if err := e.Begin(ctx, 13, rsp); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if rsp.last().Text != welcomeBackText || !rsp.last().DiceKeyboard {
		t.Fatalf("Begin reply = %+v, want welcome back with keyboard", rsp.last())
	}
	rec, _ := store.Get(ctx, 13)
	if rec.Stage != player.StageActive {
		t.Fatalf("Stage = %q, want active", rec.Stage)
	}
}

func TestBeginStartsQuestionnaireForNewUser(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{}
	e, store := newTestEngine(t, gw, AnswerPolicy{})

	rsp := &memoryResponder{}
	if err := e.Begin(ctx, 14, rsp); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if rsp.last().Text != greetingText {
		t.Fatalf("Begin reply = %q, want greeting", rsp.last().Text)
	}
	rec, err := store.Get(ctx, 14)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Stage != player.StageAwaitName {
		t.Fatalf("Stage = %q, want await_name", rec.Stage)
	}
}

func TestResetClearsProfileAndHistoryButKeepsKey(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{reply: "ok"}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 15)

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 15, "I travel east", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if err := e.Reset(ctx, 15); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	rec, err := store.Get(ctx, 15)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Stage != player.StageAwaitName {
		t.Fatalf("Stage = %q, want await_name", rec.Stage)
	}
	if rec.Profile != (player.Profile{}) {
		t.Fatalf("Profile = %+v, want empty", rec.Profile)
	}
	if got := history.Decode(rec.History).Len(); got != 0 {
		t.Fatalf("history length = %d, want 0", got)
	}

	if err := e.Reset(ctx, 9999); !errors.Is(err, player.ErrNotFound) {
		t.Fatalf("Reset(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestDraftLossMidFlowRestartsQuestionnaire(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{}
	e, store := newTestEngine(t, gw, AnswerPolicy{})

	// Durable stage says mid-questionnaire, but the scratch draft is gone,
	// as after a process restart with the in-memory draft store.
	stage := player.StageAwaitClass
	if err := store.Upsert(ctx, 16, player.Patch{Stage: &stage}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 16, "Mage", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if rsp.last().Text != draftLostText {
		t.Fatalf("reply = %q, want draft-lost restart", rsp.last().Text)
	}
	rec, _ := store.Get(ctx, 16)
	if rec.Stage != player.StageAwaitName {
		t.Fatalf("Stage = %q, want await_name", rec.Stage)
	}
}

func TestActiveRecordWithIncompleteProfileAsksForRestart(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{}
	e, store := newTestEngine(t, gw, AnswerPolicy{})

	stage := player.StageActive
	if err := store.Upsert(ctx, 17, player.Patch{Stage: &stage}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 17, "I attack", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if rsp.last().Text != sheetLostText {
		t.Fatalf("reply = %q, want restart instruction", rsp.last().Text)
	}
	if len(gw.requests()) != 0 {
		t.Fatalf("narrator called on a damaged record")
	}
	rec, _ := store.Get(ctx, 17)
	if rec.Stage != player.StageAwaitName {
		t.Fatalf("Stage = %q, want await_name", rec.Stage)
	}
}

func TestAnswerPolicyRejectsAndReprompts(t *testing.T) {
	ctx := context.Background()
	gw := &scriptGateway{}
	e, store := newTestEngine(t, gw, AnswerPolicy{MinLen: 2})

	rsp := &memoryResponder{}
	if err := e.HandleMessage(ctx, 18, "A", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !strings.Contains(rsp.last().Text, "at least 2") {
		t.Fatalf("reply = %q, want validation message", rsp.last().Text)
	}
	rec, _ := store.Get(ctx, 18)
	if rec.Stage != player.StageAwaitName {
		t.Fatalf("Stage advanced past a rejected answer: %q", rec.Stage)
	}

	if err := e.HandleMessage(ctx, 18, "Alex", rsp); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	rec, _ = store.Get(ctx, 18)
	if rec.Stage != player.StageAwaitRace {
		t.Fatalf("Stage = %q, want await_race after accepted answer", rec.Stage)
	}
}

// overlapGateway errors if two narrations for the same engine overlap.
type overlapGateway struct {
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (g *overlapGateway) Narrate(_ context.Context, _ narrator.Request) (string, error) {
	if g.inFlight.Add(1) > 1 {
		g.overlaps.Add(1)
	}
	time.Sleep(5 * time.Millisecond)
	g.inFlight.Add(-1)
	return "serially yours", nil
}

func TestTurnsForOneUserAreSerialized(t *testing.T) {
	ctx := context.Background()
	gw := &overlapGateway{}
	e, store := newTestEngine(t, gw, AnswerPolicy{})
	seedActivePlayer(t, store, 19)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rsp := &memoryResponder{}
			if err := e.HandleMessage(ctx, 19, "move "+strconv.Itoa(n), rsp); err != nil {
				t.Errorf("HandleMessage() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := gw.overlaps.Load(); got != 0 {
		t.Fatalf("observed %d overlapping narrations for one user", got)
	}
	if turns := storedTurns(t, store, 19); len(turns) != 8 {
		t.Fatalf("history length = %d, want 8 (four committed pairs)", len(turns))
	}
}
