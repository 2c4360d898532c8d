// Package analytics records product events (messages sent, commands used,
// key values revealed) without slowing down the reply path. Events go
// through a bounded Tracker to a Sink such as Amplitude.
package analytics

import "time"

// EventType names a tracked product event.
type EventType string

const (
	EventImageSent         EventType = "Image Sent"
	EventTextMessageSent   EventType = "Text Message Sent"
	EventVoiceMessageSent  EventType = "Voice Message Sent"
	EventKeyValueRevealed  EventType = "Key Value Revealed"
	EventClearCommand      EventType = "Clear Command"
	EventGetSourcesCommand EventType = "Get Sources Command"
	EventStartCommand      EventType = "Start Command"
	EventHelpCommand       EventType = "Help Command"
	EventValuesCommand     EventType = "Values Command"
)

// Event is a single tracked occurrence.
type Event struct {
	UserID int64
	Type   EventType

	// Info is sent as the "info" event property.
	Info string

	Time time.Time
}
