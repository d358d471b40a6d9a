package live

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Workspace is anything that can render its current visual state into an
// image. Version increments whenever the visible content changes, so the
// throttle can skip ticks where nothing moved.
type Workspace interface {
	Snapshot(ctx context.Context) (data []byte, mime string, err error)
	Version() int64
}

// SnapshotSender carries one rendered snapshot toward the remote agent.
type SnapshotSender interface {
	SendImage(data []byte, mime string, version int64) error
}

// SnapshotThrottle polls a Workspace on a fixed interval and forwards a
// snapshot only when the version changed since the last successful send and
// the rendered image is large enough to be non-blank. At most one frame is
// sent per distinct version.
type SnapshotThrottle struct {
	ws       Workspace
	sender   SnapshotSender
	interval time.Duration
	minBytes int
	logger   *slog.Logger

	mu          sync.Mutex
	lastVersion int64

	onSent func(version int64, bytes int)

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewSnapshotThrottle creates a throttle sending workspace snapshots at most
// once per interval.
func NewSnapshotThrottle(ws Workspace, sender SnapshotSender, interval time.Duration, minBytes int, logger *slog.Logger) *SnapshotThrottle {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if minBytes <= 0 {
		minBytes = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotThrottle{
		ws:          ws,
		sender:      sender,
		interval:    interval,
		minBytes:    minBytes,
		logger:      logger,
		lastVersion: -1,
		stopped:     make(chan struct{}),
	}
}

// SetSentFunc registers a callback for each delivered snapshot. Must be set
// before Start.
func (t *SnapshotThrottle) SetSentFunc(fn func(version int64, bytes int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSent = fn
}

// Start runs the polling loop until Stop or context cancellation.
func (t *SnapshotThrottle) Start(ctx context.Context) {
	go t.run(ctx)
}

func (t *SnapshotThrottle) run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopped:
			return
		case <-ticker.C:
			t.TickOnce(ctx)
		}
	}
}

// TickOnce performs a single poll-and-maybe-send pass. Exported so tests can
// drive the throttle without wall time.
func (t *SnapshotThrottle) TickOnce(ctx context.Context) {
	if t.ws == nil || t.sender == nil {
		return
	}
	version := t.ws.Version()

	t.mu.Lock()
	stale := version <= t.lastVersion
	t.mu.Unlock()
	if stale {
		return
	}

	data, mime, err := t.ws.Snapshot(ctx)
	if err != nil {
		t.logger.Warn("workspace snapshot failed", "err", err)
		return
	}
	// A near-empty render means the workspace is blank; skip it but do not
	// record the version, so content appearing later still goes out.
	if len(data) < t.minBytes {
		return
	}

	if err := t.sender.SendImage(data, mime, version); err != nil {
		t.logger.Warn("snapshot send failed", "err", err, "version", version)
		return
	}

	t.mu.Lock()
	t.lastVersion = version
	onSent := t.onSent
	t.mu.Unlock()

	if onSent != nil {
		onSent(version, len(data))
	}
}

// Stop halts the polling loop.
func (t *SnapshotThrottle) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}
