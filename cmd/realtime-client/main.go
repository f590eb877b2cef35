// Command realtime-client keeps a realtime WebSocket session open against the
// configured server and serves its status over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/providers"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	plugin := providers.NewClientPlugin(cfg, logger)
	if err := plugin.Activate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start realtime client")
	}

	app := fiber.New()
	plugin.RegisterRoutes(app)

	go func() {
		logger.Info().Str("addr", cfg.StatusAddr).Msg("status server listening")
		if err := app.Listen(cfg.StatusAddr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			logger.Error().Err(err).Msg("status server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("status server shutdown error")
	}
	if err := plugin.Deactivate(); err != nil {
		logger.Error().Err(err).Msg("deactivate error")
	}
}
