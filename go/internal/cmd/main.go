package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MrDemonWolf/wolfwave-sub002/go/internal/overlay"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("WOLFWAVE_CONFIG", "wolfwave.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	clock := clockwork.NewRealClock()
	engine := overlay.NewEngine(overlay.Config{
		SourceURL:   cfg.SourceURL(),
		AutoHide:    cfg.AutoHide(),
		HideArtwork: cfg.Overlay.HideArtwork,
	}, clock)
	engine.Start()

	server := setupStatusServer(cfg.Status.Addr, engine, clock)
	go func() {
		log.Info().Str("addr", cfg.Status.Addr).Msg("status server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	engine.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("status server shutdown failed")
	}
}
