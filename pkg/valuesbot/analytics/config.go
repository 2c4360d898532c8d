package analytics

// Config configures event delivery.
type Config struct {
	// AmplitudeKey enables the Amplitude sink. Events are discarded when
	// empty. Supports ${VAR} and keyring references.
	AmplitudeKey string `yaml:"amplitude_key"`

	// Workers is the number of delivery goroutines (default: 4).
	Workers int `yaml:"workers"`

	// QueueSize bounds the number of pending events (default: 4096). Events
	// tracked while the queue is full are dropped and counted.
	QueueSize int `yaml:"queue_size"`
}

// DefaultConfig returns the default analytics configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 4096,
	}
}

// Effective returns a copy with defaults applied for zero fields.
func (c Config) Effective() Config {
	out := c
	def := DefaultConfig()
	if out.Workers <= 0 {
		out.Workers = def.Workers
	}
	if out.QueueSize <= 0 {
		out.QueueSize = def.QueueSize
	}
	return out
}
