package analytics

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/amplitude/analytics-go/amplitude"
)

// Sink delivers events to an analytics backend.
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Send(context.Context, Event) error { return nil }
func (NopSink) Close() error                      { return nil }

// amplitudeClient is the part of amplitude.Client used by AmplitudeSink.
type amplitudeClient interface {
	Track(event amplitude.Event)
	Shutdown()
}

// AmplitudeSink forwards events to Amplitude. The client batches and
// uploads in the background; Close flushes what is left.
type AmplitudeSink struct {
	client amplitudeClient
}

// NewAmplitudeSink creates a sink for the given Amplitude API key.
func NewAmplitudeSink(apiKey string) *AmplitudeSink {
	cfg := amplitude.NewConfig(apiKey)
	return &AmplitudeSink{client: amplitude.NewClient(cfg)}
}

// Send enqueues ev on the Amplitude client.
func (s *AmplitudeSink) Send(_ context.Context, ev Event) error {
	s.client.Track(amplitude.Event{
		EventType: string(ev.Type),
		EventOptions: amplitude.EventOptions{
			UserID: strconv.FormatInt(ev.UserID, 10),
			Time:   ev.Time.UnixMilli(),
		},
		EventProperties: map[string]interface{}{"info": ev.Info},
	})
	return nil
}

// Close flushes pending events and stops the client.
func (s *AmplitudeSink) Close() error {
	s.client.Shutdown()
	return nil
}

// NewSink returns an AmplitudeSink when a key is configured and a NopSink
// otherwise.
func NewSink(cfg Config, logger *slog.Logger) Sink {
	if cfg.AmplitudeKey == "" {
		if logger != nil {
			logger.Info("analytics disabled, no amplitude key configured")
		}
		return NopSink{}
	}
	return NewAmplitudeSink(cfg.AmplitudeKey)
}

var (
	_ Sink = NopSink{}
	_ Sink = (*AmplitudeSink)(nil)
)
