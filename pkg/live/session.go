// Package live implements the real-time interview session: a duplex channel
// to the remote agent carrying microphone audio up and synthesized speech,
// transcript lines and tool calls down, plus the local pipelines that feed
// and drain it (capture, gapless playback, workspace snapshots).
package live

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live/protocol"
)

// Status is the lifecycle state of a Session.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusClosed
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SessionDeps are the device and host hooks a session drives. Any of them
// may be nil: without Source the session is text-only, without Sink inbound
// audio is scheduled but discarded, without Workspace no snapshots are sent.
type SessionDeps struct {
	Source       FrameSource
	Sink         Sink
	Workspace    Workspace
	ToolHandlers map[string]ToolHandler

	// Clock overrides the scheduler clock. Tests only.
	Clock Clock
}

// Session is one live connection to the remote interview agent. It owns the
// websocket, the playback scheduler, the capture pipeline, the snapshot
// throttle and the transcript, and tears all of them down together.
type Session struct {
	cfg    SessionConfig
	deps   SessionDeps
	logger *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once

	mu        sync.Mutex
	status    Status
	err       error
	sessionID string

	transcript *TranscriptStore
	scheduler  *Scheduler
	bridge     *ToolBridge
	capture    *CapturePipeline
	snapshots  *SnapshotThrottle

	audioSeq atomic.Int64
	events   chan Event

	cancel   context.CancelFunc
	readDone chan struct{}
}

// NewSession creates an unconnected session.
func NewSession(cfg SessionConfig, deps SessionDeps) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, core.NewInvalidRequestError("session URL is required")
	}

	s := &Session{
		cfg:        cfg,
		deps:       deps,
		logger:     cfg.Logger,
		transcript: NewTranscriptStore(),
		events:     make(chan Event, 64),
		readDone:   make(chan struct{}),
	}
	s.scheduler = NewScheduler(deps.Clock, deps.Sink, cfg.OutputSampleRate, cfg.PlaybackTick, cfg.Logger)
	s.scheduler.SetSpeakingFunc(func(speaking bool) {
		s.emit(SpeakingChangedEvent{Speaking: speaking})
	})
	s.bridge = NewToolBridge(deps.ToolHandlers, cfg.Logger)
	return s, nil
}

// Connect dials the agent, performs the hello exchange and starts the
// session pipelines. It blocks until the server acknowledges or the connect
// timeout expires.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		status := s.status
		s.mu.Unlock()
		return core.NewInvalidRequestError("session already " + status.String())
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	dialCtx, cancelDial := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancelDial()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.cfg.URL, nil)
	if err != nil {
		return s.failConnect(core.NewTransportError("dial session channel", err))
	}
	s.conn = conn

	hello := protocol.NewHello(s.cfg.System, s.cfg.InputSampleRate, s.cfg.OutputSampleRate, s.cfg.Tools)
	if err := s.writeJSON(hello); err != nil {
		conn.Close()
		return s.failConnect(core.NewTransportError("send hello", err))
	}

	ack, err := s.awaitHelloAck(dialCtx)
	if err != nil {
		conn.Close()
		return s.failConnect(err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.mu.Lock()
	s.status = StatusOpen
	s.sessionID = ack.SessionID
	s.mu.Unlock()

	s.scheduler.Start()
	if s.deps.Source != nil {
		capture, cerr := NewCapturePipeline(s.deps.Source, s, s.cfg.FrameSamples, s.logger)
		if cerr != nil {
			s.Close("capture init failed")
			return cerr
		}
		s.capture = capture
		capture.Start(runCtx)
	}
	if s.deps.Workspace != nil {
		s.snapshots = NewSnapshotThrottle(s.deps.Workspace, s, s.cfg.SnapshotInterval, s.cfg.SnapshotMinBytes, s.logger)
		s.snapshots.SetSentFunc(func(version int64, bytes int) {
			s.emit(SnapshotSentEvent{Version: version, Bytes: bytes})
		})
		s.snapshots.Start(runCtx)
	}

	go s.readLoop(runCtx)
	s.logger.Info("session open", "session_id", ack.SessionID, "url", s.cfg.URL)
	return nil
}

func (s *Session) failConnect(err error) error {
	s.mu.Lock()
	s.status = StatusErrored
	s.err = err
	s.mu.Unlock()
	return err
}

// awaitHelloAck reads frames until hello_ack or an error frame arrives.
func (s *Session) awaitHelloAck(ctx context.Context) (protocol.ServerHelloAck, error) {
	type result struct {
		ack protocol.ServerHelloAck
		err error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				ch <- result{err: core.NewTransportError("read hello_ack", err)}
				return
			}
			frame, err := protocol.DecodeServerFrame(data)
			if err != nil {
				ch <- result{err: core.NewTransportError("handshake frame", err)}
				return
			}
			switch f := frame.(type) {
			case protocol.ServerHelloAck:
				ch <- result{ack: f}
				return
			case protocol.ServerError:
				ch <- result{err: core.NewTransportError(f.Message, nil)}
				return
			default:
				// Server raced ahead of the ack; keep waiting.
			}
		}
	}()

	select {
	case r := <-ch:
		return r.ack, r.err
	case <-ctx.Done():
		return protocol.ServerHelloAck{}, core.NewTransportError("hello_ack timeout", ctx.Err())
	}
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.readDone)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return
			}
			s.teardownWithError(core.NewTransportError("session channel read", err))
			return
		}

		frame, err := protocol.DecodeServerFrame(data)
		if err != nil {
			s.logger.Warn("dropping undecodable frame", "err", err)
			continue
		}

		switch f := frame.(type) {
		case protocol.ServerAudioFrame:
			if err := s.scheduler.Enqueue(f); err != nil {
				s.logger.Warn("dropping malformed audio frame", "err", err, "seq", f.Seq)
			}
		case protocol.ServerTranscript:
			// The user talking over the agent is the interrupt signal:
			// anything still scheduled is stale and gets cut.
			if f.Speaker == protocol.SpeakerUser {
				s.scheduler.Stop()
			}
			entry := s.transcript.Append(f.Speaker, f.Text)
			s.emit(TranscriptEvent{Entry: entry})
		case protocol.ServerToolCall:
			go s.handleToolCalls(ctx, f.Calls)
		case protocol.ServerError:
			s.teardownWithError(core.NewTransportError(f.Message, nil))
			return
		case protocol.ServerHelloAck:
			// Duplicate ack after open; nothing to do.
		}
	}
}

func (s *Session) handleToolCalls(ctx context.Context, calls []protocol.ToolCall) {
	results, _ := s.bridge.Dispatch(ctx, calls)
	ok := 0
	for _, r := range results {
		if err := s.writeJSON(r); err != nil {
			s.logger.Warn("tool result send failed", "id", r.ID, "err", err)
			continue
		}
		if !r.IsError {
			ok++
		}
	}
	s.emit(ToolBatchEvent{Calls: len(calls), Succeeded: ok})
}

// SendAudio forwards one captured PCM frame. Implements FrameSender for the
// capture pipeline; hosts may also call it directly.
func (s *Session) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return core.NewInvalidRequestError("empty audio frame")
	}
	return s.writeJSON(protocol.ClientAudioFrame{
		Type:    "audio_frame",
		Seq:     s.audioSeq.Add(1),
		DataB64: base64.StdEncoding.EncodeToString(pcm),
	})
}

// SendImage forwards one workspace snapshot. Implements SnapshotSender.
func (s *Session) SendImage(data []byte, mime string, version int64) error {
	if len(data) == 0 {
		return core.NewInvalidRequestError("empty image frame")
	}
	return s.writeJSON(protocol.ClientImageFrame{
		Type:    "image_frame",
		Mime:    mime,
		DataB64: base64.StdEncoding.EncodeToString(data),
		Version: version,
	})
}

// SendText injects a typed user turn.
func (s *Session) SendText(text string) error {
	if text == "" {
		return core.NewInvalidRequestError("empty text input")
	}
	return s.writeJSON(protocol.ClientTextInput{Type: "text_input", Text: text})
}

func (s *Session) writeJSON(v any) error {
	if s.closed.Load() {
		return core.NewTransportError("session is closed", nil)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return core.NewTransportError("session not connected", nil)
	}
	return s.conn.WriteJSON(v)
}

func (s *Session) teardownWithError(err error) {
	s.mu.Lock()
	if s.status != StatusClosed {
		s.status = StatusErrored
	}
	s.err = err
	s.mu.Unlock()

	s.emit(ErrorEvent{Err: err})
	s.close("error")
}

// Close ends the session. Every teardown step runs regardless of earlier
// step failures: playback halts, capture stops, the snapshot and assessment
// timers are cancelled, and the channel closes last.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.status != StatusErrored {
		s.status = StatusClosed
	}
	s.mu.Unlock()
	s.close(reason)
}

func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.scheduler.Stop()
		s.scheduler.Close()
		if s.capture != nil {
			s.capture.Stop()
		} else if s.deps.Source != nil {
			// The capture pipeline owns the source once created; before
			// that the session releases it itself.
			if err := s.deps.Source.Close(); err != nil {
				s.logger.Warn("audio source close failed", "err", err)
			}
		}
		if s.snapshots != nil {
			s.snapshots.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
		if s.conn != nil {
			// Best-effort goodbye; the server may already be gone.
			s.writeMu.Lock()
			_ = s.conn.WriteJSON(protocol.ClientControl{Type: "control", Op: "end_session"})
			s.writeMu.Unlock()
			_ = s.conn.Close()
		}

		s.emit(ClosedEvent{Reason: reason})
		s.logger.Info("session closed", "reason", reason)
	})
}

// emit delivers an event without ever blocking the session goroutines.
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Debug("event dropped, consumer behind", "event", fmt.Sprintf("%T", e))
	}
}

// Events returns the session notification stream.
func (s *Session) Events() <-chan Event { return s.events }

// Transcript returns the session's transcript store.
func (s *Session) Transcript() *TranscriptStore { return s.transcript }

// Speaking reports whether agent audio is currently scheduled or playing.
func (s *Session) Speaking() bool { return s.scheduler.Speaking() }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SessionID returns the server-assigned id, empty before connect.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Done is closed when the read loop has exited.
func (s *Session) Done() <-chan struct{} { return s.readDone }
