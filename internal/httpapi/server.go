// Package httpapi serves the operational surface: health probes, metrics,
// the admin player endpoints, and the playtest websocket console.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"questmaster/internal/game"
	"questmaster/internal/observability"
	"questmaster/internal/player"
)

type Server struct {
	engine   *game.Engine
	store    player.Store
	metrics  *observability.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(engine *game.Engine, store player.Store, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		engine:  engine,
		store:   store,
		metrics: metrics,
		log:     log.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// The playtest console is a local tool; browsers only connect
				// from the same host the service is bound to.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/admin/players/{id}", s.handleGetPlayer)
	r.Post("/v1/admin/players/{id}/reset", s.handleResetPlayer)
	r.Get("/v1/playtest/ws", s.handlePlaytestWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type playerView struct {
	UserID  int64          `json:"user_id"`
	Stage   player.Stage   `json:"stage"`
	Profile player.Profile `json:"profile"`
	Turns   int            `json:"history_turns"`
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), userID)
	if errors.Is(err, player.ErrNotFound) {
		respondError(w, http.StatusNotFound, "player_not_found", "no record for user")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, playerView{
		UserID:  rec.UserID,
		Stage:   rec.Stage,
		Profile: rec.Profile,
		Turns:   historyLen(rec.History),
	})
}

func (s *Server) handleResetPlayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	err := s.engine.Reset(r.Context(), userID)
	if errors.Is(err, player.ErrNotFound) {
		respondError(w, http.StatusNotFound, "player_not_found", "no record for user")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset", "user_id": userID})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func historyLen(encoded string) int {
	var turns []json.RawMessage
	if err := json.Unmarshal([]byte(encoded), &turns); err != nil {
		return 0
	}
	return len(turns)
}
