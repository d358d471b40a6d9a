package live

import (
	"encoding/base64"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live/protocol"
)

// Clock abstracts time for the scheduler so tests can drive it directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Sink receives decoded PCM in playback order. Write appends audio to the
// output device; Reset discards everything the device has buffered but not
// yet played.
type Sink interface {
	Write(pcm []byte) error
	Reset() error
}

type scheduledBuffer struct {
	pcm     []byte
	start   time.Time
	end     time.Time
	written bool
}

// Scheduler plays inbound speech frames back-to-back with no gaps or
// overlap. Each buffer starts at max(now, cursor) and the cursor advances by
// exactly that buffer's duration, so ordering follows arrival order even
// under jitter. Frames arriving out of transmission order are not reordered.
//
// The cursor is never drift-corrected against the remote clock; over a very
// long session local and remote time can diverge. Known limitation.
type Scheduler struct {
	clock      Clock
	sink       Sink
	sampleRate int
	tick       time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	cursor   time.Time
	live     map[int64]*scheduledBuffer
	nextID   int64
	speaking bool

	onSpeaking func(bool)

	done   chan struct{}
	closed sync.Once
}

// NewScheduler creates a playback scheduler writing to sink.
func NewScheduler(clock Clock, sink Sink, sampleRate int, tick time.Duration, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if tick <= 0 {
		tick = 20 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		tick:       tick,
		logger:     logger,
		cursor:     clock.Now(),
		live:       make(map[int64]*scheduledBuffer),
		done:       make(chan struct{}),
	}
}

// SetSpeakingFunc registers a callback invoked whenever the speaking flag
// flips. Must be set before Start.
func (s *Scheduler) SetSpeakingFunc(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSpeaking = fn
}

// Start runs the tick loop until Close.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Enqueue decodes one inbound speech frame and schedules it after the last
// scheduled buffer. A malformed frame returns a decode error and is dropped;
// playback continues with the next frame.
func (s *Scheduler) Enqueue(frame protocol.ServerAudioFrame) error {
	pcm, err := base64.StdEncoding.DecodeString(frame.DataB64)
	if err != nil {
		return core.NewDecodeError("audio frame is not valid base64")
	}
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return core.NewDecodeError("audio frame is not 16-bit PCM")
	}
	dur := pcmDuration(len(pcm), s.sampleRate)

	s.mu.Lock()
	now := s.clock.Now()
	start := s.cursor
	if now.After(start) {
		start = now
	}
	s.cursor = start.Add(dur)

	id := s.nextID
	s.nextID++
	s.live[id] = &scheduledBuffer{pcm: pcm, start: start, end: s.cursor}

	flipped := !s.speaking
	s.speaking = true
	onSpeaking := s.onSpeaking
	s.mu.Unlock()

	if flipped && onSpeaking != nil {
		onSpeaking(true)
	}
	return nil
}

// Tick writes due buffers to the sink and retires finished ones. Called by
// the internal loop; exported so tests can drive the scheduler with a fake
// clock.
func (s *Scheduler) Tick() {
	var toWrite [][]byte

	s.mu.Lock()
	now := s.clock.Now()
	ids := make([]int64, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		buf := s.live[id]
		if !buf.written && !buf.start.After(now) {
			toWrite = append(toWrite, buf.pcm)
			buf.written = true
		}
		if !buf.end.After(now) {
			delete(s.live, id)
		}
	}
	flipped := s.speaking && len(s.live) == 0
	if flipped {
		s.speaking = false
	}
	onSpeaking := s.onSpeaking
	s.mu.Unlock()

	for _, pcm := range toWrite {
		if s.sink == nil {
			continue
		}
		if err := s.sink.Write(pcm); err != nil {
			s.logger.Warn("playback sink write failed", "err", err)
		}
	}
	if flipped && onSpeaking != nil {
		onSpeaking(false)
	}
}

// Stop is the barge-in path: every scheduled buffer is halted, the live set
// is cleared and the cursor resets to now so a fresh turn starts immediately
// rather than behind stale audio.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.live = make(map[int64]*scheduledBuffer)
	s.cursor = s.clock.Now()
	flipped := s.speaking
	s.speaking = false
	onSpeaking := s.onSpeaking
	s.mu.Unlock()

	if s.sink != nil {
		if err := s.sink.Reset(); err != nil {
			s.logger.Warn("playback sink reset failed", "err", err)
		}
	}
	if flipped && onSpeaking != nil {
		onSpeaking(false)
	}
}

// Close stops the tick loop. It does not reset the sink; callers that want
// barge-in semantics call Stop first.
func (s *Scheduler) Close() {
	s.closed.Do(func() { close(s.done) })
}

// Speaking reports whether any scheduled buffer has not yet finished.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Cursor returns the next scheduled playback start time.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// LiveCount returns the number of scheduled, not-yet-finished buffers.
func (s *Scheduler) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// pcmDuration converts a 16-bit mono PCM byte length to wall time.
func pcmDuration(pcmBytes, sampleRate int) time.Duration {
	if pcmBytes <= 0 || sampleRate <= 0 {
		return 0
	}
	samples := int64(pcmBytes / 2)
	return time.Duration(samples * int64(time.Second) / int64(sampleRate))
}
