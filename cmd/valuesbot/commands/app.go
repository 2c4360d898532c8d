package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/analytics"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/assistant"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/config"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/emotion"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/openaiapi"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/speech"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/validation"
)

// app holds the components shared by serve and chat.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	client       *openai.Client
	hub          *database.Hub
	values       *database.UserValuesRepository
	tracker      *analytics.Tracker
	orchestrator *assistant.Orchestrator
	transcriber  *speech.Transcriber
	emotions     *emotion.Service
	synthesizer  speech.Provider
}

// loadConfig reads the config named by --config (or found in the standard
// locations) and builds the logger described by it.
func loadConfig(cmd *cobra.Command, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	// Secrets resolution logs at debug level before the real logger exists.
	bootLevel := slog.LevelWarn
	if verbose {
		bootLevel = slog.LevelDebug
	}
	boot := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: bootLevel}))

	cfg, err := config.Load(configPath, boot)
	if err != nil {
		return nil, nil, err
	}
	if configPath != "" {
		config.AuditSecrets(configPath, boot)
	}
	return cfg, newLogger(cfg.Logging, verbose, logOut), nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig, verbose bool, out io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// newApp wires every component and initializes the remote assistant.
// The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	client, err := openaiapi.NewClient(cfg.OpenAI)
	if err != nil {
		return nil, err
	}
	a.client = client

	a.hub, err = database.NewHub(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.values = database.NewUserValuesRepository(a.hub.Primary())

	a.tracker = analytics.NewTracker(analytics.NewSink(cfg.Analytics, logger), cfg.Analytics, logger)

	a.orchestrator = assistant.New(cfg.Assistant, assistant.Deps{
		API:       client,
		Validator: validation.NewGate(client, cfg.Validation, logger),
		Store:     a.values,
		Tracker:   a.tracker,
		Metrics:   assistant.DefaultMetrics(),
		Logger:    logger,
	})
	if err := a.orchestrator.Initialize(ctx); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("initializing assistant: %w", err)
	}

	a.transcriber = speech.NewTranscriber(client, cfg.Speech.TranscriptionModel, cfg.Speech.Language)
	a.emotions = emotion.NewService(client, cfg.Emotion, logger)
	a.synthesizer, err = speech.NewProvider(cfg.Speech, client, logger)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// close drains analytics and closes the database.
func (a *app) close(ctx context.Context) {
	if a.tracker != nil {
		if err := a.tracker.Close(ctx); err != nil {
			a.logger.Warn("closing analytics", "error", err)
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
}
