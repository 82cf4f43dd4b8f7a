package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"questmaster/internal/config"
	"questmaster/internal/drafts"
	"questmaster/internal/game"
	"questmaster/internal/httpapi"
	"questmaster/internal/narrator"
	"questmaster/internal/observability"
	"questmaster/internal/player"
	"questmaster/internal/telegram"
)

func main() {
	// A missing .env is fine; the environment itself is authoritative.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config error")
	}

	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := player.NewStore(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("player store init failed")
	}
	defer store.Close()
	log.Info().Str("backend", storeBackend(cfg)).Msg("player store ready")

	draftStore, err := drafts.NewStore(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("draft store init failed")
	}
	defer draftStore.Close()

	gateway, err := narrator.New(narrator.Config{
		Mode:       cfg.NarratorMode,
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.NarratorModel,
		Timeout:    cfg.NarratorTimeout,
		MaxRetries: cfg.NarratorMaxRetries,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("narrator init failed")
	}

	engine := game.NewEngine(
		store,
		draftStore,
		gateway,
		metrics,
		log,
		game.AnswerPolicy{MinLen: cfg.AnswerMinLen, MaxLen: cfg.AnswerMaxLen},
		cfg.NarratorTimeout,
	)

	api := httpapi.New(engine, store, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, engine, log)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram init failed")
		}
		go func() {
			if err := bot.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	} else {
		log.Warn().Msg("TELEGRAM_TOKEN not set, serving the playtest console only")
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}

func storeBackend(cfg config.Config) string {
	switch {
	case cfg.DatabaseURL != "":
		return "postgres"
	case cfg.SQLitePath != "":
		return "sqlite"
	default:
		return "memory"
	}
}
