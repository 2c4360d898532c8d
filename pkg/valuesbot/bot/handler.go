// Package bot turns channel messages into assistant requests and sends the
// replies back as text and, optionally, voice notes.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/analytics"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/database"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/media"
	"github.com/jholhewres/valuesbot/pkg/valuesbot/speech"
)

// Assistant is the conversation backend. *assistant.Orchestrator satisfies it.
type Assistant interface {
	CreateThread(ctx context.Context, userID int64) (string, error)
	ClearContext(userID int64)
	Request(ctx context.Context, userID int64, prompt string) (string, error)
	Sources() string
}

// Transcriber converts a voice note to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// EmotionIdentifier names the emotion shown in a photo.
type EmotionIdentifier interface {
	Identify(ctx context.Context, image []byte, mimeType string) (string, error)
}

// ValuesReader reads a user's stored key values.
// Get must return database.ErrNotFound when nothing is stored.
type ValuesReader interface {
	Get(ctx context.Context, userID int64) (*database.UserValues, error)
}

// Tracker records analytics events without blocking.
type Tracker interface {
	Track(userID int64, event analytics.EventType, info string)
}

// Config controls reply behavior.
type Config struct {
	// VoiceReplies sends each reply a second time as a voice note.
	VoiceReplies bool

	// Voice overrides the synthesis provider's default voice.
	Voice string
}

// Deps are the collaborators of a Handler. Channel and Assistant are
// required; a nil Transcriber, Emotions or Values disables that feature.
type Deps struct {
	Channel     channels.Channel
	Assistant   Assistant
	Transcriber Transcriber
	Emotions    EmotionIdentifier
	Speech      speech.Provider
	Values      ValuesReader
	Media       *media.Validator
	Tracker     Tracker
	Logger      *slog.Logger
}

// Handler routes incoming messages to commands and conversation pipelines.
type Handler struct {
	cfg  Config
	deps Deps

	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Media == nil {
		deps.Media = media.NewValidator(media.DefaultConfig())
	}
	if deps.Tracker == nil {
		deps.Tracker = nopTracker{}
	}
	return &Handler{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "bot"),
	}
}

type nopTracker struct{}

func (nopTracker) Track(int64, analytics.EventType, string) {}

// Run dispatches every message from the channel to its own goroutine until
// ctx is done or the channel's queue is closed, then waits for in-flight
// handlers.
func (h *Handler) Run(ctx context.Context) {
	in := h.deps.Channel.Receive()
	defer h.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.Handle(ctx, msg)
			}()
		}
	}
}

// Handle processes one message synchronously.
func (h *Handler) Handle(ctx context.Context, msg *channels.IncomingMessage) {
	logger := h.logger.With(
		"request_id", uuid.NewString(),
		"user_id", msg.UserID,
		"chat_id", msg.ChatID,
		"type", msg.Type,
	)

	switch msg.Type {
	case channels.MessageText:
		if cmd, ok := parseCommand(msg.Content); ok && h.handleCommand(ctx, logger, msg, cmd) {
			return
		}
		h.deps.Tracker.Track(msg.UserID, analytics.EventTextMessageSent, "")
		h.converse(ctx, logger, msg, func(context.Context) (string, error) {
			return msg.Content, nil
		})

	case channels.MessageVoice, channels.MessageAudio:
		h.deps.Tracker.Track(msg.UserID, analytics.EventVoiceMessageSent, "")
		h.converse(ctx, logger, msg, func(ctx context.Context) (string, error) {
			return h.transcribe(ctx, msg)
		})

	case channels.MessageImage:
		h.deps.Tracker.Track(msg.UserID, analytics.EventImageSent, "")
		h.converse(ctx, logger, msg, func(ctx context.Context) (string, error) {
			emotion, err := h.identifyEmotion(ctx, msg)
			if err != nil {
				return "", err
			}
			return emotionPrompt + emotion, nil
		})

	default:
		logger.Debug("ignoring unsupported message")
	}
}

// parseCommand extracts "/name" from text, dropping a "@botname" suffix.
func parseCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd), true
}

// handleCommand runs a known command and reports whether cmd was one.
func (h *Handler) handleCommand(ctx context.Context, logger *slog.Logger, msg *channels.IncomingMessage, cmd string) bool {
	userID := msg.UserID

	switch cmd {
	case "/start":
		h.deps.Tracker.Track(userID, analytics.EventStartCommand, "")
		if _, err := h.deps.Assistant.CreateThread(ctx, userID); err != nil {
			logger.Error("creating thread", "error", err)
			h.reply(ctx, logger, msg, apologyMsg)
			return true
		}
		h.reply(ctx, logger, msg, helloMsg)

	case "/help":
		h.deps.Tracker.Track(userID, analytics.EventHelpCommand, "")
		h.reply(ctx, logger, msg, helpMsg)

	case "/clear":
		h.deps.Tracker.Track(userID, analytics.EventClearCommand, "")
		h.deps.Assistant.ClearContext(userID)
		h.reply(ctx, logger, msg, clearMsg)

	case "/get_sources", "/get_sorces":
		h.deps.Tracker.Track(userID, analytics.EventGetSourcesCommand, "")
		h.reply(ctx, logger, msg, h.deps.Assistant.Sources())

	case "/values":
		h.deps.Tracker.Track(userID, analytics.EventValuesCommand, "")
		h.reply(ctx, logger, msg, h.storedValues(ctx, logger, userID))

	default:
		return false
	}
	return true
}

func (h *Handler) storedValues(ctx context.Context, logger *slog.Logger, userID int64) string {
	if h.deps.Values == nil {
		return keyValuesNotDefinedMsg
	}
	uv, err := h.deps.Values.Get(ctx, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return keyValuesNotDefinedMsg
	case err != nil:
		logger.Error("reading stored values", "error", err)
		return apologyMsg
	case strings.TrimSpace(uv.KeyValues) == "":
		return keyValuesNotDefinedMsg
	}
	return keyValuesDefinedMsg + uv.KeyValues
}

// converse runs the shared reply pipeline: wait message, prompt
// preparation, assistant request, text reply, then a best-effort voice reply.
func (h *Handler) converse(ctx context.Context, logger *slog.Logger, msg *channels.IncomingMessage, prompt func(context.Context) (string, error)) {
	h.reply(ctx, logger, msg, waitMsg)
	if pc, ok := h.deps.Channel.(channels.PresenceChannel); ok {
		if err := pc.SendTyping(ctx, msg.ChatID); err != nil {
			logger.Debug("typing action failed", "error", err)
		}
	}

	text, err := prompt(ctx)
	if err != nil {
		logger.Error("preparing prompt", "error", err)
		h.reply(ctx, logger, msg, apologyMsg)
		return
	}

	answer, err := h.deps.Assistant.Request(ctx, msg.UserID, text)
	if err != nil {
		logger.Error("assistant request failed", "error", err)
		h.reply(ctx, logger, msg, apologyMsg)
		return
	}

	h.reply(ctx, logger, msg, answer)

	if h.cfg.VoiceReplies {
		if err := h.sendVoice(ctx, msg.ChatID, answer); err != nil {
			logger.Warn("voice reply failed", "error", err)
		}
	}
}

func (h *Handler) reply(ctx context.Context, logger *slog.Logger, msg *channels.IncomingMessage, text string) {
	if err := h.deps.Channel.Send(ctx, msg.ChatID, &channels.OutgoingMessage{Content: text}); err != nil {
		logger.Error("sending reply", "error", err)
	}
}

// download fetches the attachment of msg and checks it is of kind want.
func (h *Handler) download(ctx context.Context, msg *channels.IncomingMessage, want media.Kind) ([]byte, *media.Result, error) {
	mc, ok := h.deps.Channel.(channels.MediaChannel)
	if !ok {
		return nil, nil, channels.ErrMediaNotSupported
	}
	data, mime, err := mc.DownloadMedia(ctx, msg)
	if err != nil {
		return nil, nil, err
	}
	filename := ""
	if msg.Media != nil {
		filename = msg.Media.Filename
	}
	res, err := h.deps.Media.Validate(data, filename, mime)
	if err != nil {
		return nil, nil, err
	}
	if res.Kind != want {
		return nil, nil, fmt.Errorf("%w: got %s, want %s", media.ErrUnsupported, res.MimeType, want)
	}
	return data, res, nil
}

func (h *Handler) transcribe(ctx context.Context, msg *channels.IncomingMessage) (string, error) {
	if h.deps.Transcriber == nil {
		return "", errors.New("voice messages are disabled")
	}
	audio, _, err := h.download(ctx, msg, media.KindAudio)
	if err != nil {
		return "", fmt.Errorf("downloading voice: %w", err)
	}
	name := ""
	if msg.Media != nil {
		name = msg.Media.Filename
	}
	return h.deps.Transcriber.Transcribe(ctx, audio, name)
}

func (h *Handler) identifyEmotion(ctx context.Context, msg *channels.IncomingMessage) (string, error) {
	if h.deps.Emotions == nil {
		return "", errors.New("image messages are disabled")
	}
	image, res, err := h.download(ctx, msg, media.KindImage)
	if err != nil {
		return "", fmt.Errorf("downloading image: %w", err)
	}
	return h.deps.Emotions.Identify(ctx, image, res.MimeType)
}

// sendVoice synthesizes text and sends it as a voice note.
func (h *Handler) sendVoice(ctx context.Context, chatID, text string) error {
	mc, ok := h.deps.Channel.(channels.MediaChannel)
	if !ok || h.deps.Speech == nil {
		return nil
	}
	audio, mime, err := h.deps.Speech.Synthesize(ctx, text, h.cfg.Voice)
	if err != nil {
		return err
	}
	ext := ".ogg"
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return mc.SendMedia(ctx, chatID, &channels.MediaMessage{
		Type:     channels.MessageVoice,
		Data:     audio,
		MimeType: mime,
		Filename: "reply-" + uuid.NewString() + ext,
	})
}
