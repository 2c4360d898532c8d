package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// EdgeProvider synthesizes MP3 audio through the Microsoft Edge read-aloud
// service. It needs no API key and serves as the fallback voice.
type EdgeProvider struct {
	endpoint string
	voice    string
	client   *http.Client
	logger   *slog.Logger
}

const edgeEndpoint = "https://speech.platform.bing.com/consumer/speech/synthesize/readaloud/naturaltts/v1" +
	"?TrustedClientToken=6A5AA1D4EAFF4E9FB37E23D68491D6F4&ConnectionId=gen&Enc=mp3&OutputFormat=audio-24khz-48kbitrate-mono-mp3"

// DefaultEdgeVoice is used when no voice is configured.
const DefaultEdgeVoice = "ru-RU-SvetlanaNeural"

// NewEdgeProvider creates an Edge provider. An empty endpoint uses the
// public read-aloud service.
func NewEdgeProvider(endpoint, voice string, logger *slog.Logger) *EdgeProvider {
	if endpoint == "" {
		endpoint = edgeEndpoint
	}
	if voice == "" {
		voice = DefaultEdgeVoice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EdgeProvider{
		endpoint: endpoint,
		voice:    voice,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "edge-tts"),
	}
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func (p *EdgeProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		voice = p.voice
	}
	ssml := fmt.Sprintf(`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>`+
		`<voice name='%s'><prosody pitch='+0Hz' rate='+0%%' volume='+0%%'>%s</prosody></voice></speak>`,
		voiceLocale(voice), voice, ssmlEscaper.Replace(truncate(text, MaxInputChars)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, "", fmt.Errorf("edge-tts: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("edge-tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("edge-tts: HTTP %d: %s", resp.StatusCode, string(body))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("edge-tts: reading audio: %w", err)
	}
	audio = stripFraming(audio)
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("edge-tts: empty audio response")
	}
	return audio, "audio/mpeg", nil
}

// voiceLocale extracts "ru-RU" from "ru-RU-SvetlanaNeural".
func voiceLocale(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

// stripFraming drops binary framing that sometimes precedes the MP3 stream.
func stripFraming(data []byte) []byte {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return data[i:]
		}
	}
	if len(data) > 2 {
		n := int(binary.BigEndian.Uint16(data[:2]))
		if n > 0 && n < len(data) {
			return data[n:]
		}
	}
	return data
}
