package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/valuesbot/pkg/valuesbot/channels"
)

// fakeBotAPI serves the subset of the Bot API the adapter uses.
type fakeBotAPI struct {
	mu       sync.Mutex
	updates  []json.RawMessage
	sent     []map[string]any
	uploads  []upload
	files    map[string]string // file_id -> file_path
	contents map[string][]byte // file_path -> bytes
}

type upload struct {
	method   string
	chatID   string
	field    string
	filename string
	data     []byte
}

func (f *fakeBotAPI) reply(w http.ResponseWriter, result any) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(apiResponse[json.RawMessage]{OK: true, Result: raw})
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/file/botTOKEN/"); ok {
		f.mu.Lock()
		data, found := f.contents[rest]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/botTOKEN/")
	if !ok {
		_ = json.NewEncoder(w).Encode(apiResponse[json.RawMessage]{OK: false, Description: "Unauthorized"})
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f.handleUpload(w, r, method)
		return
	}

	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	switch method {
	case "getMe":
		f.reply(w, tgUser{ID: 42, IsBot: true, Username: "values_bot"})
	case "getUpdates":
		f.mu.Lock()
		batch := f.updates
		f.updates = nil
		f.mu.Unlock()
		if len(batch) == 0 {
			time.Sleep(10 * time.Millisecond)
			batch = []json.RawMessage{}
		}
		f.reply(w, batch)
	case "getFile":
		f.mu.Lock()
		p := f.files[payload["file_id"].(string)]
		f.mu.Unlock()
		f.reply(w, tgFileRef{FileID: payload["file_id"].(string), FilePath: p})
	case "sendMessage", "sendChatAction":
		f.mu.Lock()
		payload["_method"] = method
		f.sent = append(f.sent, payload)
		f.mu.Unlock()
		f.reply(w, map[string]any{"message_id": 1})
	default:
		_ = json.NewEncoder(w).Encode(apiResponse[json.RawMessage]{OK: false, Description: "Not Found: method " + method})
	}
}

func (f *fakeBotAPI) handleUpload(w http.ResponseWriter, r *http.Request, method string) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	up := upload{method: method, chatID: r.FormValue("chat_id")}
	for field, headers := range r.MultipartForm.File {
		fh := headers[0]
		file, _ := fh.Open()
		up.data, _ = io.ReadAll(file)
		file.Close()
		up.field = field
		up.filename = fh.Filename
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, up)
	f.mu.Unlock()
	f.reply(w, map[string]any{"message_id": 2})
}

func newTestChannel(t *testing.T, api *fakeBotAPI) *Telegram {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tg := New(Config{Token: "TOKEN", APIBase: srv.URL, PollTimeout: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, tg.Connect(context.Background()))
	t.Cleanup(func() { _ = tg.Disconnect() })
	return tg
}

func TestConnectRequiresToken(t *testing.T) {
	tg := New(Config{}, nil)
	require.Error(t, tg.Connect(context.Background()))
	assert.False(t, tg.IsConnected())
}

func TestConnectRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(&fakeBotAPI{})
	defer srv.Close()

	tg := New(Config{Token: "WRONG", APIBase: srv.URL}, nil)
	err := tg.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

// unreachableBase returns a URL nothing listens on.
func unreachableBase(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestConnectErrorHidesToken(t *testing.T) {
	tg := New(Config{Token: "123:SECRET", APIBase: unreachableBase(t)}, nil)
	err := tg.Connect(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.Contains(t, err.Error(), "getMe")
}

func TestDownloadErrorHidesToken(t *testing.T) {
	api := &fakeBotAPI{files: map[string]string{"v1": "voice/file_3.oga"}}
	tg := newTestChannel(t, api)
	tg.fileURL = unreachableBase(t) + "/file/botTOKEN"

	_, _, err := tg.DownloadMedia(context.Background(), &channels.IncomingMessage{Media: &channels.MediaInfo{FileID: "v1"}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "TOKEN")
}

func TestPollDeliversMessages(t *testing.T) {
	api := &fakeBotAPI{updates: []json.RawMessage{
		json.RawMessage(`{"update_id":10,"message":{"message_id":5,"date":1700000000,"text":"/start","chat":{"id":77,"type":"private"},"from":{"id":1001,"first_name":"Ann"}}}`),
		json.RawMessage(`{"update_id":11,"message":{"message_id":6,"date":1700000001,"chat":{"id":77,"type":"private"},"from":{"id":1001,"first_name":"Ann"},"voice":{"file_id":"v1","duration":3,"mime_type":"audio/ogg","file_size":1234}}}`),
	}}
	tg := newTestChannel(t, api)

	var got []*channels.IncomingMessage
	for len(got) < 2 {
		select {
		case msg := <-tg.Receive():
			got = append(got, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, received %d messages", len(got))
		}
	}

	assert.Equal(t, channels.MessageText, got[0].Type)
	assert.Equal(t, "/start", got[0].Content)
	assert.Equal(t, int64(1001), got[0].UserID)
	assert.Equal(t, "77", got[0].ChatID)
	assert.Equal(t, "Ann", got[0].FromName)

	assert.Equal(t, channels.MessageVoice, got[1].Type)
	require.NotNil(t, got[1].Media)
	assert.Equal(t, "v1", got[1].Media.FileID)
	assert.Equal(t, "audio/ogg", got[1].Media.MimeType)

	assert.True(t, tg.Health().Connected)
	assert.False(t, tg.Health().LastMessageAt.IsZero())

	require.NoError(t, tg.Disconnect())
	assert.Equal(t, int64(12), tg.offset)
	assert.False(t, tg.IsConnected())
}

func TestConvertUpdate(t *testing.T) {
	tg := New(Config{Token: "TOKEN", AllowedChats: []int64{77}}, nil)

	photo := tgUpdate{Message: &tgMessage{
		MessageID: 1,
		From:      &tgUser{ID: 5, Username: "ann"},
		Chat:      tgChat{ID: 77},
		Caption:   "look",
		Photo: []tgFileRef{
			{FileID: "small", FileSize: 900},
			{FileID: "large", FileSize: 128000},
		},
	}}
	msg := tg.convertUpdate(photo)
	require.NotNil(t, msg)
	assert.Equal(t, channels.MessageImage, msg.Type)
	assert.Equal(t, "large", msg.Media.FileID)
	assert.Equal(t, "image/jpeg", msg.Media.MimeType)
	assert.Equal(t, "look", msg.Content)
	assert.Equal(t, "ann", msg.FromName)

	doc := tgUpdate{Message: &tgMessage{
		From:     &tgUser{ID: 5},
		Chat:     tgChat{ID: 77},
		Document: &tgFileRef{FileID: "d", MimeType: "image/png", FileName: "a.png"},
	}}
	msg = tg.convertUpdate(doc)
	require.NotNil(t, msg)
	assert.Equal(t, channels.MessageImage, msg.Type)

	sticker := tgUpdate{Message: &tgMessage{From: &tgUser{ID: 5}, Chat: tgChat{ID: 77}}}
	msg = tg.convertUpdate(sticker)
	require.NotNil(t, msg)
	assert.Equal(t, channels.MessageOther, msg.Type)

	other := tgUpdate{Message: &tgMessage{From: &tgUser{ID: 5}, Chat: tgChat{ID: 99}, Text: "hi"}}
	assert.Nil(t, tg.convertUpdate(other), "chat outside AllowedChats")

	assert.Nil(t, tg.convertUpdate(tgUpdate{}), "update without message")
}

func TestSendAndTyping(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestChannel(t, api)

	require.NoError(t, tg.Send(context.Background(), "77", &channels.OutgoingMessage{Content: "<b>not html</b>", ReplyTo: "5"}))
	require.NoError(t, tg.SendTyping(context.Background(), "77"))
	require.Error(t, tg.Send(context.Background(), "not-a-number", &channels.OutgoingMessage{Content: "x"}))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 2)
	assert.Equal(t, "sendMessage", api.sent[0]["_method"])
	assert.Equal(t, "<b>not html</b>", api.sent[0]["text"])
	assert.NotContains(t, api.sent[0], "parse_mode")
	assert.Equal(t, map[string]any{"message_id": float64(5)}, api.sent[0]["reply_parameters"])
	assert.Equal(t, "typing", api.sent[1]["action"])
}

func TestSendWhenDisconnected(t *testing.T) {
	tg := New(Config{Token: "TOKEN"}, nil)
	err := tg.Send(context.Background(), "1", &channels.OutgoingMessage{Content: "x"})
	assert.ErrorIs(t, err, channels.ErrChannelDisconnected)
}

func TestSendMediaVoice(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestChannel(t, api)

	err := tg.SendMedia(context.Background(), "77", &channels.MediaMessage{
		Type:     channels.MessageVoice,
		Data:     []byte("OggS-opus"),
		MimeType: "audio/ogg",
		Filename: "reply.ogg",
	})
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.uploads, 1)
	up := api.uploads[0]
	assert.Equal(t, "sendVoice", up.method)
	assert.Equal(t, "voice", up.field)
	assert.Equal(t, "77", up.chatID)
	assert.Equal(t, "reply.ogg", up.filename)
	assert.Equal(t, []byte("OggS-opus"), up.data)

	assert.Error(t, tg.SendMedia(context.Background(), "77", &channels.MediaMessage{Type: channels.MessageVoice}))
}

func TestDownloadMedia(t *testing.T) {
	api := &fakeBotAPI{
		files:    map[string]string{"v1": "voice/file_3.oga"},
		contents: map[string][]byte{"voice/file_3.oga": []byte("audio-bytes")},
	}
	tg := newTestChannel(t, api)

	msg := &channels.IncomingMessage{Media: &channels.MediaInfo{FileID: "v1", MimeType: "audio/ogg"}}
	data, mime, err := tg.DownloadMedia(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), data)
	assert.Equal(t, "audio/ogg", mime)
	assert.Equal(t, "file_3.oga", msg.Media.Filename)

	_, _, err = tg.DownloadMedia(context.Background(), &channels.IncomingMessage{})
	assert.ErrorIs(t, err, channels.ErrMediaDownloadFailed)
}
