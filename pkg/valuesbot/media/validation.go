// Package media validates inbound voice notes and photos before they are
// sent to transcription or vision models.
package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the category of a media payload.
type Kind string

const (
	KindImage   Kind = "image"
	KindAudio   Kind = "audio"
	KindUnknown Kind = "unknown"
)

var (
	ErrEmpty       = errors.New("media: empty payload")
	ErrUnsupported = errors.New("media: unsupported type")
	ErrTooLarge    = errors.New("media: payload too large")
)

// AllowedMimeTypes lists accepted MIME types per kind. Audio matches what
// Whisper accepts, images what the vision models accept.
var AllowedMimeTypes = map[Kind][]string{
	KindImage: {
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
	},
	KindAudio: {
		"audio/ogg",
		"application/ogg",
		"audio/mpeg",
		"audio/wav",
		"audio/webm",
		"audio/mp4",
		"audio/x-m4a",
	},
}

var extensionMimeTypes = map[string]string{
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/x-m4a",
	".wav":  "audio/wav",
	".weba": "audio/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Config holds per-kind size limits in bytes.
type Config struct {
	MaxImageSize int64 `yaml:"max_image_size"`
	MaxAudioSize int64 `yaml:"max_audio_size"`
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxImageSize: 20 * 1024 * 1024, // 20MB
		MaxAudioSize: 25 * 1024 * 1024, // 25MB (Whisper limit)
	}
}

// Result describes a validated payload.
type Result struct {
	MimeType string
	Kind     Kind
	Size     int64
}

// Validator checks media type and size.
type Validator struct {
	config Config
}

// NewValidator creates a validator. Zero limits take the defaults.
func NewValidator(config Config) *Validator {
	def := DefaultConfig()
	if config.MaxImageSize <= 0 {
		config.MaxImageSize = def.MaxImageSize
	}
	if config.MaxAudioSize <= 0 {
		config.MaxAudioSize = def.MaxAudioSize
	}
	return &Validator{config: config}
}

// Validate detects the type of data and checks it against the limits for
// that kind. declared is the MIME type reported by the sender and is only
// trusted when content sniffing is inconclusive.
func (v *Validator) Validate(data []byte, filename, declared string) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	mime := DetectMimeType(data, filename, declared)
	res := &Result{MimeType: mime, Kind: Categorize(mime), Size: int64(len(data))}

	if res.Kind == KindUnknown {
		return res, fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}
	if limit := v.maxSize(res.Kind); res.Size > limit {
		return res, fmt.Errorf("%w: %d bytes exceeds %d for %s", ErrTooLarge, res.Size, limit, res.Kind)
	}
	return res, nil
}

func (v *Validator) maxSize(k Kind) int64 {
	if k == KindImage {
		return v.config.MaxImageSize
	}
	return v.config.MaxAudioSize
}

// DetectMimeType sniffs data, falling back to the filename extension and
// then to the declared type.
func DetectMimeType(data []byte, filename, declared string) string {
	detected := mimetype.Detect(data)
	if !detected.Is("application/octet-stream") {
		return baseType(detected.String())
	}
	if m, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return m
	}
	if declared != "" {
		return baseType(declared)
	}
	return "application/octet-stream"
}

// Categorize maps an allowed MIME type to its kind.
func Categorize(mime string) Kind {
	mime = baseType(mime)
	for kind, allowed := range AllowedMimeTypes {
		if slices.Contains(allowed, mime) {
			return kind
		}
	}
	return KindUnknown
}

func baseType(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}
