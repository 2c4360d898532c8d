// Package channels defines the interfaces and types for valuesbot messaging
// channels. A channel receives user messages and delivers replies; the bot
// handler only ever talks to this interface.
package channels

import (
	"context"
	"errors"
	"time"
)

// MessageType identifies the kind of message content.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageAudio    MessageType = "audio"
	MessageVoice    MessageType = "voice"
	MessageDocument MessageType = "document"
	MessageOther    MessageType = "other"
)

// Channel defines the interface that every communication channel must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram").
	Name() string

	// Connect establishes the connection and starts delivering messages.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a text message to the specified chat.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	IsConnected() bool

	Health() HealthStatus
}

// MediaChannel extends Channel with media upload and download.
type MediaChannel interface {
	Channel

	// SendMedia sends a voice note, audio file or image.
	SendMedia(ctx context.Context, to string, media *MediaMessage) error

	// DownloadMedia downloads the attachment of an incoming message.
	// Returns the raw bytes and the MIME type reported by the platform.
	DownloadMedia(ctx context.Context, msg *IncomingMessage) ([]byte, string, error)
}

// PresenceChannel extends Channel with chat action indicators.
type PresenceChannel interface {
	Channel

	// SendTyping shows a "typing..." indicator to the recipient.
	SendTyping(ctx context.Context, to string) error
}

// IncomingMessage represents a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel.
	Channel string

	// UserID is the numeric platform user id; it keys the user's thread.
	UserID int64

	// FromName is the sender display name (if available).
	FromName string

	// ChatID is where replies go.
	ChatID string

	Type MessageType

	// Content is the text, or the caption for media messages.
	Content string

	Timestamp time.Time

	// Media contains attachment details (if any).
	Media *MediaInfo
}

// OutgoingMessage represents a text message to be sent through a channel.
type OutgoingMessage struct {
	Content string
	ReplyTo string
}

// MediaMessage represents a media file to be sent.
type MediaMessage struct {
	Type     MessageType
	Data     []byte
	MimeType string
	Filename string
	Caption  string
}

// MediaInfo describes media attached to an incoming message.
type MediaInfo struct {
	// FileID is the platform handle used to download the file.
	FileID   string
	MimeType string
	Filename string
	FileSize int64
	Duration int
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool      `json:"connected"`
	LastMessageAt time.Time `json:"last_message_at"`
	ErrorCount    int       `json:"error_count"`
}

var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrMediaNotSupported   = errors.New("media not supported by this channel")
	ErrMediaDownloadFailed = errors.New("failed to download media")
)
