package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/llamachat/internal/config"
	"github.com/MegaGrindStone/llamachat/internal/handlers"
	"github.com/MegaGrindStone/llamachat/internal/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfgDir, err := config.Dir()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve config dir")
	}
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create config directory")
	}

	cfg, err := config.Load(filepath.Join(cfgDir, "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger, err := cfg.Logger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build logger")
	}

	generator, err := cfg.Generator(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build generator")
	}

	inferenceOpts := []services.InferenceOption{services.WithFallbackMessage(cfg.FallbackMessage)}

	cache, err := cfg.ResponseCache(context.Background(), cfgDir)
	if err != nil {
		logger.Fatal().Err(err).Str("kind", cfg.Cache.Kind).Msg("Failed to open response cache")
	}
	if cache != nil {
		inferenceOpts = append(inferenceOpts, services.WithCache(cache))
	}

	inference := services.NewInference(generator, logger, inferenceOpts...)

	if cfg.Warmup {
		go func() {
			logger.Info().Str("model", generator.Model()).Msg("Warming up model")
			if err := inference.Warmup(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("Model warmup failed")
			}
		}()
	}

	m, err := handlers.NewMain(inference, logger,
		handlers.WithRevealInterval(cfg.Reveal.Interval),
		handlers.WithSessionIdleTimeout(cfg.SessionIdleTimeout),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create handlers")
	}

	router, err := m.Router()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create router")
	}

	// Create custom server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Shutdown runs in its own goroutine; the cache is closed only once it is done, since it waits
	// for the sends still writing to the cache.
	handlersDone := make(chan struct{})
	srv.RegisterOnShutdown(func() {
		defer close(handlersDone)
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown sse server")
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Str("model", generator.Model()).Msg("Server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Start shutdown")

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
			if err := srv.Close(); err != nil {
				logger.Error().Err(err).Msg("Forcing server close")
			}
		}

		select {
		case <-handlersDone:
		case <-ctx.Done():
			logger.Warn().Msg("Handlers still shutting down, closing cache anyway")
		}
	}

	if cache != nil {
		if err := cache.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close response cache")
		}
	}
}
