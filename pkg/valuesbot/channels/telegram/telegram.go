// Package telegram connects the bot to Telegram through the Bot API over
// plain HTTP: getUpdates long polling in, JSON and multipart calls out.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels"
)

const defaultAPIBase = "https://api.telegram.org"

// Config configures the Telegram channel.
type Config struct {
	// Token is the Bot API token issued by @BotFather.
	Token string `yaml:"token"`

	// APIBase overrides the Bot API host (default: https://api.telegram.org).
	APIBase string `yaml:"api_base"`

	// AllowedChats limits the bot to these chat IDs. Empty allows every chat.
	AllowedChats []int64 `yaml:"allowed_chats"`

	// PollTimeout is the getUpdates long-poll timeout in seconds (default: 30).
	PollTimeout int `yaml:"poll_timeout"`

	// BufferSize is the capacity of the incoming message queue (default: 256).
	BufferSize int `yaml:"buffer_size"`
}

// Effective returns a copy with zero fields set to their defaults.
func (c Config) Effective() Config {
	out := c
	if out.APIBase == "" {
		out.APIBase = defaultAPIBase
	}
	out.APIBase = strings.TrimRight(out.APIBase, "/")
	if out.PollTimeout <= 0 {
		out.PollTimeout = 30
	}
	if out.BufferSize <= 0 {
		out.BufferSize = 256
	}
	return out
}

// Telegram implements channels.MediaChannel and channels.PresenceChannel.
type Telegram struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client

	// baseURL is <api_base>/bot<token>.
	baseURL string
	// fileURL is <api_base>/file/bot<token>.
	fileURL string

	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time of the last delivered message
	errorCount atomic.Int64

	// offset is the last processed update ID + 1. Only the poll loop touches it.
	offset int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Telegram channel. Nothing touches the network until Connect.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.Effective()
	return &Telegram{
		cfg:      cfg,
		logger:   logger.With("component", "telegram"),
		client:   &http.Client{Timeout: time.Duration(cfg.PollTimeout+30) * time.Second},
		baseURL:  cfg.APIBase + "/bot" + cfg.Token,
		fileURL:  cfg.APIBase + "/file/bot" + cfg.Token,
		messages: make(chan *channels.IncomingMessage, cfg.BufferSize),
	}
}

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Connect checks the token with getMe and starts polling.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return errors.New("telegram: bot token is required")
	}
	if t.connected.Load() {
		return nil
	}

	me, err := call[tgUser](ctx, t, "getMe", nil)
	if err != nil {
		return fmt.Errorf("telegram: token rejected: %w", err)
	}
	t.logger.Info("connected", "bot", me.Username, "bot_id", me.ID)

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.connected.Store(true)

	go t.pollLoop()
	return nil
}

// Disconnect stops polling and waits for the loop to exit.
func (t *Telegram) Disconnect() error {
	if t.cancel != nil {
		t.cancel()
		<-t.done
	}
	t.connected.Store(false)
	t.logger.Info("disconnected")
	return nil
}

// Send delivers message.Content as plain text. Replies are never parsed as
// HTML or Markdown.
func (t *Telegram) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	chatID, err := t.target(to)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"chat_id": chatID,
		"text":    message.Content,
	}
	if replyTo, err := strconv.ParseInt(message.ReplyTo, 10, 64); err == nil {
		payload["reply_parameters"] = map[string]any{"message_id": replyTo}
	}
	_, err = call[json.RawMessage](ctx, t, "sendMessage", payload)
	return err
}

// Receive returns the queue of incoming messages.
func (t *Telegram) Receive() <-chan *channels.IncomingMessage {
	return t.messages
}

// IsConnected reports whether the poll loop is running.
func (t *Telegram) IsConnected() bool { return t.connected.Load() }

func (t *Telegram) Health() channels.HealthStatus {
	h := channels.HealthStatus{
		Connected:  t.connected.Load(),
		ErrorCount: int(t.errorCount.Load()),
	}
	if at, ok := t.lastMsg.Load().(time.Time); ok {
		h.LastMessageAt = at
	}
	return h
}

// uploadTargets maps outgoing media to the Bot API method and form field.
var uploadTargets = map[channels.MessageType][2]string{
	channels.MessageVoice: {"sendVoice", "voice"},
	channels.MessageAudio: {"sendAudio", "audio"},
	channels.MessageImage: {"sendPhoto", "photo"},
}

// SendMedia uploads a voice note, audio file or photo. Anything else goes
// out as a document.
func (t *Telegram) SendMedia(ctx context.Context, to string, media *channels.MediaMessage) error {
	chatID, err := t.target(to)
	if err != nil {
		return err
	}
	dest, ok := uploadTargets[media.Type]
	if !ok {
		dest = [2]string{"sendDocument", "document"}
	}
	return t.upload(ctx, dest[0], dest[1], chatID, media)
}

// DownloadMedia fetches the attachment of msg. A missing filename is filled
// in on msg.Media from the server-side file path.
func (t *Telegram) DownloadMedia(ctx context.Context, msg *channels.IncomingMessage) ([]byte, string, error) {
	if msg.Media == nil || msg.Media.FileID == "" {
		return nil, "", channels.ErrMediaDownloadFailed
	}

	file, err := call[tgFileRef](ctx, t, "getFile", map[string]any{"file_id": msg.Media.FileID})
	if err != nil {
		return nil, "", err
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("%w: no file path for %s", channels.ErrMediaDownloadFailed, msg.Media.FileID)
	}
	if msg.Media.Filename == "" {
		msg.Media.Filename = path.Base(file.FilePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.fileURL+"/"+file.FilePath, nil)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: download request: %w", stripURL(err))
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: download: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", channels.ErrMediaDownloadFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("telegram: download body: %w", err)
	}
	return data, msg.Media.MimeType, nil
}

// SendTyping shows the "typing" chat action. It is best effort: a
// disconnected channel or a malformed chat ID is silently ignored.
func (t *Telegram) SendTyping(ctx context.Context, to string) error {
	chatID, err := t.target(to)
	if err != nil {
		return nil
	}
	_, err = call[json.RawMessage](ctx, t, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	})
	return err
}

// target validates that the channel is up and parses a chat ID.
func (t *Telegram) target(to string) (int64, error) {
	if !t.connected.Load() {
		return 0, channels.ErrChannelDisconnected
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad chat id %q: %w", to, err)
	}
	return chatID, nil
}

func (t *Telegram) pollLoop() {
	defer close(t.done)
	t.logger.Info("polling started", "timeout_s", t.cfg.PollTimeout)

	const maxBackoff = 30 * time.Second
	backoff := time.Second
	for t.ctx.Err() == nil {
		updates, err := call[[]tgUpdate](t.ctx, t, "getUpdates", map[string]any{
			"offset":          t.offset,
			"limit":           100,
			"timeout":         t.cfg.PollTimeout,
			"allowed_updates": []string{"message"},
		})
		if err != nil {
			if t.ctx.Err() != nil {
				break
			}
			t.errorCount.Add(1)
			t.logger.Warn("getUpdates failed", "error", err, "retry_in", backoff)
			select {
			case <-t.ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		t.errorCount.Store(0)
		for _, u := range updates {
			t.offset = max(t.offset, u.UpdateID+1)
			if incoming := t.convertUpdate(u); incoming != nil {
				t.deliver(incoming)
			}
		}
	}
	t.logger.Info("polling stopped")
}

func (t *Telegram) deliver(incoming *channels.IncomingMessage) {
	t.lastMsg.Store(time.Now())
	select {
	case t.messages <- incoming:
	default:
		t.logger.Warn("incoming queue full, message dropped", "msg_id", incoming.ID, "user_id", incoming.UserID)
	}
}

// convertUpdate maps an update to an IncomingMessage. It returns nil for
// updates without a sender and for chats outside AllowedChats.
func (t *Telegram) convertUpdate(u tgUpdate) *channels.IncomingMessage {
	msg := u.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	if len(t.cfg.AllowedChats) > 0 && !slices.Contains(t.cfg.AllowedChats, msg.Chat.ID) {
		return nil
	}

	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.Username
	}
	content := msg.Text
	if content == "" {
		content = msg.Caption
	}

	incoming := &channels.IncomingMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Channel:   "telegram",
		UserID:    msg.From.ID,
		FromName:  name,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Type:      channels.MessageText,
		Content:   content,
		Timestamp: time.Unix(msg.Date, 0),
	}

	switch {
	case msg.Voice != nil:
		incoming.Type, incoming.Media = channels.MessageVoice, msg.Voice.mediaInfo()
	case msg.Audio != nil:
		incoming.Type, incoming.Media = channels.MessageAudio, msg.Audio.mediaInfo()
	case len(msg.Photo) > 0:
		// Sizes are ordered smallest first.
		incoming.Type, incoming.Media = channels.MessageImage, msg.Photo[len(msg.Photo)-1].mediaInfo()
		incoming.Media.MimeType = "image/jpeg"
	case msg.Document != nil:
		incoming.Type, incoming.Media = channels.MessageDocument, msg.Document.mediaInfo()
		if strings.HasPrefix(msg.Document.MimeType, "image/") {
			incoming.Type = channels.MessageImage
		}
	case msg.Text == "":
		incoming.Type = channels.MessageOther
	}
	return incoming
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	MessageID int         `json:"message_id"`
	From      *tgUser     `json:"from"`
	Chat      tgChat      `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []tgFileRef `json:"photo"`
	Audio     *tgFileRef  `json:"audio"`
	Voice     *tgFileRef  `json:"voice"`
	Document  *tgFileRef  `json:"document"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

// tgFileRef covers PhotoSize, Audio, Voice, Document and File: they share
// file_id and differ only in which optional fields are set.
type tgFileRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

func (f *tgFileRef) mediaInfo() *channels.MediaInfo {
	return &channels.MediaInfo{
		FileID:   f.FileID,
		MimeType: f.MimeType,
		Filename: f.FileName,
		FileSize: f.FileSize,
		Duration: f.Duration,
	}
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      T      `json:"result"`
}

// call POSTs payload as JSON to a Bot API method and decodes the result.
func call[T any](ctx context.Context, t *Telegram, method string, payload map[string]any) (T, error) {
	var zero T
	body, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("telegram: encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("telegram: %s request: %w", method, stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	return send[T](t, req, method)
}

func send[T any](t *Telegram, req *http.Request, method string) (T, error) {
	var out apiResponse[T]
	resp, err := t.client.Do(req)
	if err != nil {
		return out.Result, fmt.Errorf("telegram: %s: %w", method, stripURL(err))
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out.Result, fmt.Errorf("telegram: decode %s: %w", method, err)
	}
	if !out.OK {
		return out.Result, fmt.Errorf("telegram: %s: %s", method, out.Description)
	}
	return out.Result, nil
}

// stripURL drops the request URL from transport errors. Bot API URLs carry
// the token.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// upload posts media as multipart form data under field.
func (t *Telegram) upload(ctx context.Context, method, field string, chatID int64, media *channels.MediaMessage) error {
	if len(media.Data) == 0 {
		return errors.New("telegram: nothing to upload")
	}
	filename := media.Filename
	if filename == "" {
		filename = "file"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if media.Caption != "" {
		fields["caption"] = media.Caption
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("telegram: %s form: %w", method, err)
		}
	}
	part, err := w.CreateFormFile(field, filename)
	if err == nil {
		_, err = part.Write(media.Data)
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		return fmt.Errorf("telegram: %s form: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, &buf)
	if err != nil {
		return fmt.Errorf("telegram: %s request: %w", method, stripURL(err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, err = send[json.RawMessage](t, req, method)
	return err
}

var (
	_ channels.MediaChannel    = (*Telegram)(nil)
	_ channels.PresenceChannel = (*Telegram)(nil)
)
