package live

import (
	"log/slog"
	"time"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live/protocol"
)

// SessionConfig holds all configuration for one live session.
type SessionConfig struct {
	// URL is the websocket endpoint of the remote agent.
	URL string `json:"url"`

	// System is the system instruction sent in the opening hello.
	System string `json:"system,omitempty"`

	// Tools declares client-handled function tools to the agent.
	Tools []protocol.ToolDecl `json:"tools,omitempty"`

	// InputSampleRate is the microphone sample rate in Hz. Default: 16000.
	InputSampleRate int `json:"input_sample_rate"`

	// OutputSampleRate is the agent speech sample rate in Hz. Default: 24000.
	OutputSampleRate int `json:"output_sample_rate"`

	// FrameSamples is the capture frame size in samples. Default: 4096.
	FrameSamples int `json:"frame_samples"`

	// SnapshotInterval is how often the workspace is checked for a new
	// version. Default: 3s.
	SnapshotInterval time.Duration `json:"snapshot_interval"`

	// SnapshotMinBytes is the size below which a captured snapshot is
	// treated as blank and discarded. Default: 100.
	SnapshotMinBytes int `json:"snapshot_min_bytes"`

	// ConnectTimeout bounds the dial and hello/hello_ack exchange.
	// Default: 15s.
	ConnectTimeout time.Duration `json:"connect_timeout"`

	// PlaybackTick is the scheduler tick interval. Default: 20ms.
	PlaybackTick time.Duration `json:"playback_tick"`

	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `json:"-"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
		FrameSamples:     4096,
		SnapshotInterval: 3 * time.Second,
		SnapshotMinBytes: 100,
		ConnectTimeout:   15 * time.Second,
		PlaybackTick:     20 * time.Millisecond,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = def.InputSampleRate
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = def.OutputSampleRate
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = def.FrameSamples
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = def.SnapshotInterval
	}
	if c.SnapshotMinBytes <= 0 {
		c.SnapshotMinBytes = def.SnapshotMinBytes
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.PlaybackTick <= 0 {
		c.PlaybackTick = def.PlaybackTick
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
