package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live/protocol"
)

// testAgent is an in-process stand-in for the remote interview agent: it
// accepts one websocket, answers the hello, then records every client frame
// and lets the test inject server frames.
type testAgent struct {
	t   *testing.T
	srv *httptest.Server

	mu    sync.Mutex
	conn  *websocket.Conn
	hello protocol.ClientHello

	ready   chan struct{}
	inbound chan map[string]any
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	a := &testAgent{
		t:       t,
		ready:   make(chan struct{}),
		inbound: make(chan map[string]any, 64),
	}
	a.srv = httptest.NewServer(http.HandlerFunc(a.handle))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *testAgent) handle(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var hello protocol.ClientHello
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return
	}
	if err := conn.WriteJSON(map[string]any{"type": "hello_ack", "session_id": "sess-test-1"}); err != nil {
		conn.Close()
		return
	}

	a.mu.Lock()
	a.conn = conn
	a.hello = hello
	a.mu.Unlock()
	close(a.ready)

	for {
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			return
		}
		a.inbound <- m
	}
}

func (a *testAgent) url() string {
	return "ws" + strings.TrimPrefix(a.srv.URL, "http")
}

func (a *testAgent) send(v any) {
	a.t.Helper()
	select {
	case <-a.ready:
	case <-time.After(2 * time.Second):
		a.t.Fatal("agent never finished handshake")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.conn.WriteJSON(v); err != nil {
		a.t.Fatalf("agent send: %v", err)
	}
}

func (a *testAgent) nextFrame(typ string) map[string]any {
	a.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-a.inbound:
			if m["type"] == typ {
				return m
			}
		case <-deadline:
			a.t.Fatalf("agent never received a %q frame", typ)
		}
	}
}

func awaitEvent[T Event](t *testing.T, s *Session) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-s.Events():
			if ev, ok := e.(T); ok {
				return ev
			}
		case <-deadline:
			var zero T
			t.Fatalf("no %T event arrived", zero)
			return zero
		}
	}
}

func openSession(t *testing.T, agent *testAgent, deps SessionDeps) *Session {
	t.Helper()
	cfg := DefaultSessionConfig()
	cfg.URL = agent.url()
	cfg.System = "You are a mock interviewer."

	s, err := NewSession(cfg, deps)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { s.Close("test done") })
	return s
}

func TestSession_ConnectHandshake(t *testing.T) {
	agent := newTestAgent(t)
	s := openSession(t, agent, SessionDeps{})

	if s.Status() != StatusOpen {
		t.Fatalf("status = %v, want open", s.Status())
	}
	if s.SessionID() != "sess-test-1" {
		t.Fatalf("session id = %q", s.SessionID())
	}

	agent.mu.Lock()
	hello := agent.hello
	agent.mu.Unlock()
	if hello.Type != "hello" || hello.ProtocolVersion != protocol.ProtocolVersion1 {
		t.Fatalf("hello = %+v", hello)
	}
	if hello.AudioIn.SampleRateHz != 16000 || hello.AudioOut.SampleRateHz != 24000 {
		t.Fatalf("hello audio formats = %+v / %+v", hello.AudioIn, hello.AudioOut)
	}
}

func TestSession_TranscriptFlow(t *testing.T) {
	agent := newTestAgent(t)
	s := openSession(t, agent, SessionDeps{Clock: newFakeClock()})

	agent.send(map[string]any{"type": "transcript", "speaker": "agent", "text": "Tell me about caching."})
	ev := awaitEvent[TranscriptEvent](t, s)
	if ev.Entry.Speaker != protocol.SpeakerAgent || ev.Entry.Text != "Tell me about caching." {
		t.Fatalf("entry = %+v", ev.Entry)
	}

	agent.send(map[string]any{"type": "transcript", "speaker": "user", "text": "Sure, so an LRU..."})
	awaitEvent[TranscriptEvent](t, s)

	entries := s.Transcript().Entries()
	if len(entries) != 2 {
		t.Fatalf("transcript has %d entries, want 2", len(entries))
	}
	if entries[0].ArrivalOrder != 0 || entries[1].ArrivalOrder != 1 {
		t.Fatalf("arrival orders = %d, %d", entries[0].ArrivalOrder, entries[1].ArrivalOrder)
	}
}

func TestSession_UserSpeechCutsPlayback(t *testing.T) {
	agent := newTestAgent(t)
	clock := newFakeClock()
	s := openSession(t, agent, SessionDeps{Clock: clock, Sink: &recordingSink{}})

	pcm := base64.StdEncoding.EncodeToString(make([]byte, 48000)) // 1s at 24kHz
	agent.send(map[string]any{"type": "audio_frame", "mime": "audio/pcm", "data_b64": pcm})
	awaitEvent[SpeakingChangedEvent](t, s)
	if !s.Speaking() {
		t.Fatal("not speaking after audio frame")
	}

	agent.send(map[string]any{"type": "transcript", "speaker": "user", "text": "wait, one thing"})
	awaitEvent[TranscriptEvent](t, s)
	if s.Speaking() {
		t.Fatal("still speaking after user barge-in")
	}
}

func TestSession_ToolCallRoundTrip(t *testing.T) {
	agent := newTestAgent(t)
	handlers := map[string]ToolHandler{
		"update_phase": func(ctx context.Context, call protocol.ToolCall) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
	s := openSession(t, agent, SessionDeps{ToolHandlers: handlers})

	agent.send(map[string]any{
		"type": "tool_call",
		"calls": []map[string]any{
			{"id": "call-1", "name": "update_phase", "args": map[string]any{"phase": "design"}},
			{"id": "call-2", "name": "unknown_tool"},
		},
	})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		frame := agent.nextFrame("tool_result")
		id, _ := frame["id"].(string)
		got[id] = true
	}
	if !got["call-1"] || !got["call-2"] {
		t.Fatalf("tool results = %v, want both call ids answered", got)
	}

	ev := awaitEvent[ToolBatchEvent](t, s)
	if ev.Calls != 2 || ev.Succeeded != 2 {
		t.Fatalf("tool batch event = %+v", ev)
	}
}

func TestSession_SendPaths(t *testing.T) {
	agent := newTestAgent(t)
	s := openSession(t, agent, SessionDeps{})

	if err := s.SendText("let me think out loud"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	frame := agent.nextFrame("text_input")
	if frame["text"] != "let me think out loud" {
		t.Fatalf("text frame = %v", frame)
	}

	if err := s.SendAudio(make([]byte, 8192)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	frame = agent.nextFrame("audio_frame")
	if frame["data_b64"] == "" {
		t.Fatalf("audio frame = %v", frame)
	}

	if err := s.SendImage([]byte("fake-png-bytes"), "image/png", 3); err != nil {
		t.Fatalf("SendImage: %v", err)
	}
	frame = agent.nextFrame("image_frame")
	if frame["mime"] != "image/png" {
		t.Fatalf("image frame = %v", frame)
	}
}

func TestSession_ServerErrorTearsDown(t *testing.T) {
	agent := newTestAgent(t)
	s := openSession(t, agent, SessionDeps{})

	agent.send(map[string]any{"type": "error", "code": "quota", "message": "session limit reached"})

	ev := awaitEvent[ErrorEvent](t, s)
	if ev.Err == nil || !strings.Contains(ev.Err.Error(), "session limit reached") {
		t.Fatalf("error event = %v", ev.Err)
	}
	awaitEvent[ClosedEvent](t, s)

	if s.Status() != StatusErrored {
		t.Fatalf("status = %v, want errored", s.Status())
	}
	if err := s.SendText("anyone there?"); err == nil {
		t.Fatal("send after teardown should fail")
	}
}

func TestSession_CloseSendsGoodbye(t *testing.T) {
	agent := newTestAgent(t)
	s := openSession(t, agent, SessionDeps{})

	s.Close("user ended interview")
	frame := agent.nextFrame("control")
	if frame["op"] != "end_session" {
		t.Fatalf("control frame = %v", frame)
	}

	awaitEvent[ClosedEvent](t, s)
	if s.Status() != StatusClosed {
		t.Fatalf("status = %v, want closed", s.Status())
	}

	// Idempotent.
	s.Close("again")
}

func TestSession_ConnectRequiresURL(t *testing.T) {
	if _, err := NewSession(SessionConfig{}, SessionDeps{}); err == nil {
		t.Fatal("expected error for missing URL")
	}
}

func TestSession_CloseReleasesUnadoptedSource(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.URL = "ws://example.invalid/live"
	src := &scriptedSource{}
	s, err := NewSession(cfg, SessionDeps{Source: src})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// No capture pipeline exists before Connect succeeds, so the session
	// itself releases the device.
	s.Close("never connected")

	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		t.Fatal("source left open after Close")
	}
}
