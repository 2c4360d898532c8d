package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/bot"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels/telegram"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/gateway"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/media"
)

// newServeCmd creates the `valuesbot serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Telegram bot",
		Long: `Start valuesbot: initialize the OpenAI assistant, connect to Telegram
and answer messages until interrupted.

Examples:
  valuesbot serve
  valuesbot serve --gateway
  valuesbot serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().Bool("gateway", false, "start the HTTP gateway even when disabled in config")
	cmd.Flags().Bool("no-voice", false, "disable voice replies")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, os.Stdout)
	if err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}
	if force, _ := cmd.Flags().GetBool("gateway"); force {
		cfg.Gateway.Enabled = true
	}
	if noVoice, _ := cmd.Flags().GetBool("no-voice"); noVoice {
		cfg.Speech.VoiceReplies = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	tg := telegram.New(cfg.Telegram, logger)
	if err := tg.Connect(ctx); err != nil {
		a.close(context.Background())
		return fmt.Errorf("connecting to telegram: %w", err)
	}

	handler := bot.New(bot.Config{VoiceReplies: cfg.Speech.VoiceReplies}, bot.Deps{
		Channel:     tg,
		Assistant:   a.orchestrator,
		Transcriber: a.transcriber,
		Emotions:    a.emotions,
		Speech:      a.synthesizer,
		Values:      a.values,
		Media:       media.NewValidator(cfg.Media),
		Tracker:     a.tracker,
		Logger:      logger,
	})

	var gw *gateway.Gateway
	if cfg.Gateway.Enabled {
		gw = gateway.New(cfg.Gateway, gateway.Deps{
			Database:  a.hub,
			Channels:  []channels.Channel{tg},
			Sources:   a.orchestrator,
			Analytics: a.tracker,
			Gatherer:  prometheus.DefaultGatherer,
			Logger:    logger,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		handler.Run(gctx)
		return nil
	})
	if gw != nil {
		g.Go(func() error {
			if err := gw.Start(gctx); err != nil {
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		})
	}

	logger.Info("valuesbot running. Press Ctrl+C to stop.",
		"assistant", cfg.Assistant.Name,
		"model", cfg.Assistant.Model,
		"sources", len(a.orchestrator.ActiveSources()),
		"voice_replies", cfg.Speech.VoiceReplies,
		"gateway", cfg.Gateway.Enabled,
	)

	<-gctx.Done()
	logger.Info("shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := tg.Disconnect(); err != nil {
			logger.Warn("disconnecting telegram", "error", err)
		}
		if gw != nil {
			if err := gw.Stop(shutdownCtx); err != nil {
				logger.Warn("stopping gateway", "error", err)
			}
		}
		runErr := g.Wait()
		a.close(shutdownCtx)
		done <- runErr
	}()

	select {
	case runErr := <-done:
		logger.Info("shutdown complete")
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}
	return nil
}
