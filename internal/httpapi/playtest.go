package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"questmaster/internal/game"
)

// playtestFrame is one websocket message in either direction. Inbound
// frames carry only text; outbound frames mirror engine replies.
type playtestFrame struct {
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	DiceKeyboard bool   `json:"dice_keyboard,omitempty"`
}

// handlePlaytestWS drives a game session over a websocket, without any
// Telegram credentials. Each text frame is one player message; "/start"
// maps to the greeting flow like the bot command does.
func (s *Server) handlePlaytestWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("user_id")), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "query parameter user_id must be a positive integer")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := s.log.With().Int64("user_id", userID).Logger()
	log.Info().Msg("playtest session connected")

	rsp := &wsResponder{conn: conn}
	ctx := r.Context()

	conn.SetReadLimit(64 << 10)
	for {
		var frame playtestFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		text := strings.TrimSpace(frame.Text)
		if text == "" {
			continue
		}

		if text == "/start" {
			err = s.engine.Begin(ctx, userID, rsp)
		} else {
			err = s.engine.HandleMessage(ctx, userID, text, rsp)
		}
		if err != nil {
			log.Error().Err(err).Msg("playtest message failed")
			_ = rsp.writeFrame(playtestFrame{Type: "error", Text: "internal error, see service logs"})
		}
	}
	log.Info().Msg("playtest session closed")
}

// wsResponder implements game.Responder over one websocket connection.
// Writes are serialized in writeFrame since the engine may interleave
// acks and narrations.
type wsResponder struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (r *wsResponder) Send(_ context.Context, reply game.Reply) error {
	return r.writeFrame(playtestFrame{Type: "reply", Text: reply.Text, DiceKeyboard: reply.DiceKeyboard})
}

func (r *wsResponder) Typing(_ context.Context) {
	_ = r.writeFrame(playtestFrame{Type: "typing"})
}

func (r *wsResponder) writeFrame(frame playtestFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return r.conn.WriteJSON(frame)
}
