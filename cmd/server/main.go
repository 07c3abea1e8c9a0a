package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/ya-signal/internal/adapter/driven/metrics"
	"github.com/Wyydra/ya-signal/internal/adapter/driven/persistence/memory"
	handler "github.com/Wyydra/ya-signal/internal/adapter/driving/http"
	"github.com/Wyydra/ya-signal/internal/config"
	"github.com/Wyydra/ya-signal/internal/core/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}

	l := newLogger(cfg)
	log.Logger = l

	registry := memory.NewRoomRegistry()
	hub := ws.NewHub()
	recorder := metrics.NewRecorder(registry.RoomCount, hub.Connections)

	signaling := service.NewSignalingService(registry, hub, service.WithMetrics(recorder))
	sessions := service.NewSessionService(signaling)
	h := handler.NewHandler(signaling, sessions, hub, registry, recorder.Handler(), handler.Options{
		AllowedOrigins: cfg.Origins(),
		StaticDir:      cfg.StaticDir,
		ReadLimit:      cfg.WSReadLimit,
		SendBuffer:     cfg.WSSendBuffer,
		WriteWait:      cfg.WSWriteWait,
		PongWait:       cfg.WSPongWait,
		PingPeriod:     cfg.WSPingPeriod,
	})

	go hub.Run()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.HTTPAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	l.Info().Msg("Server exited")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if cfg.LogFormat == "json" {
		l = zerolog.New(os.Stdout)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return l.Level(level).With().Timestamp().Caller().Logger()
}
