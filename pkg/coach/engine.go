// Package coach assembles the full interview experience: one live session,
// one phase tracker and one assessment loop, started and torn down together.
package coach

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/interview"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live/protocol"
)

// Config configures an Engine.
type Config struct {
	Session live.SessionConfig

	Round interview.Round
	Role  interview.Role

	// Phases overrides the built-in plan for the round and role.
	Phases []interview.Phase

	// Rubric is injected into every assessment pass.
	Rubric string

	// AssessInterval overrides the default 30s grading cadence.
	AssessInterval time.Duration

	Logger *slog.Logger
}

// Deps are the engine's pluggable collaborators.
type Deps struct {
	// Grader powers the assessment loop. Nil disables assessment.
	Grader interview.Grader

	// SourceFactory opens the microphone. A failure here is not fatal:
	// the engine logs it and continues text-only.
	SourceFactory func() (live.FrameSource, error)

	// Sink receives agent speech. Nil discards playback audio.
	Sink live.Sink

	// Workspace feeds the snapshot throttle. Nil disables snapshots.
	Workspace live.Workspace

	// Work feeds the candidate's code and canvas to the grader.
	Work interview.WorkProvider

	// ToolHandlers are host tools beyond the built-in phase controls.
	ToolHandlers map[string]live.ToolHandler
}

// Engine runs one interview end to end. All accessors are safe for
// concurrent use; Connect and Disconnect are not reentrant.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu        sync.Mutex
	session   *live.Session
	tracker   *interview.Tracker
	assessor  *interview.Assessor
	cancel    context.CancelFunc
	connected bool
}

// New creates an engine. It does not touch the network or any device.
func New(cfg Config, deps Deps) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Round == "" {
		cfg.Round = interview.RoundSystemDesign
	}
	return &Engine{cfg: cfg, deps: deps, logger: cfg.Logger}
}

// Connect opens the live session and starts the phase timer and assessment
// loop. A microphone failure downgrades the session to text input instead
// of failing the connect.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.connected {
		e.mu.Unlock()
		return core.NewInvalidRequestError("engine already connected")
	}
	e.mu.Unlock()

	phases := e.cfg.Phases
	if len(phases) == 0 {
		phases = interview.PhasesFor(e.cfg.Round, e.cfg.Role)
	}
	tracker := interview.NewTracker(phases)

	var source live.FrameSource
	if e.deps.SourceFactory != nil {
		src, err := e.deps.SourceFactory()
		if err != nil {
			e.logger.Warn("microphone unavailable, continuing text-only",
				"err", core.NewPermissionError(err.Error()))
		} else {
			source = src
		}
	}

	sessionCfg := e.cfg.Session
	sessionCfg.Logger = e.logger
	sessionCfg.Tools = append(sessionCfg.Tools, phaseToolDecls()...)

	session, err := live.NewSession(sessionCfg, live.SessionDeps{
		Source:       source,
		Sink:         e.deps.Sink,
		Workspace:    e.deps.Workspace,
		ToolHandlers: e.toolHandlers(tracker),
	})
	if err != nil {
		e.releaseSource(source)
		return err
	}
	// On a failed connect the session never adopted the microphone, so the
	// engine releases it.
	if err := session.Connect(ctx); err != nil {
		e.releaseSource(source)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	tracker.Start(runCtx)

	var assessor *interview.Assessor
	if e.deps.Grader != nil {
		assessor, err = interview.NewAssessor(
			e.deps.Grader,
			tracker,
			&transcriptAdapter{store: session.Transcript()},
			e.deps.Work,
			e.cfg.Round,
			interview.AssessorConfig{
				Interval: e.cfg.AssessInterval,
				Rubric:   e.cfg.Rubric,
				Logger:   e.logger,
			},
		)
		if err != nil {
			cancel()
			session.Close("assessor init failed")
			return err
		}
		assessor.SetFeedbackFunc(func(fb interview.FeedbackEvent) {
			e.logger.Info("coaching feedback", "severity", fb.Severity, "message", fb.Message)
		})
		assessor.Start(runCtx)
	}

	// The session dies on its own when the transport fails; stop the phase
	// clock and the assessment loop with it instead of waiting for
	// Disconnect.
	go func() {
		select {
		case <-runCtx.Done():
		case <-session.Done():
			if assessor != nil {
				assessor.Stop()
			}
			tracker.Stop()
			cancel()
		}
	}()

	e.mu.Lock()
	e.session = session
	e.tracker = tracker
	e.assessor = assessor
	e.cancel = cancel
	e.connected = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) releaseSource(source live.FrameSource) {
	if source == nil {
		return
	}
	if err := source.Close(); err != nil {
		e.logger.Warn("audio source close failed", "err", err)
	}
}

// Disconnect tears everything down: assessment loop, phase timer, then the
// session with its playback, capture and snapshot pipelines.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	session, tracker, assessor, cancel := e.session, e.tracker, e.assessor, e.cancel
	e.connected = false
	e.mu.Unlock()

	if assessor != nil {
		assessor.Stop()
	}
	if tracker != nil {
		tracker.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if session != nil {
		session.Close("interview ended")
	}
}

// phaseToolDecls declares the built-in phase controls to the agent.
func phaseToolDecls() []protocol.ToolDecl {
	return []protocol.ToolDecl{
		{
			Name:        "set_phase",
			Description: "Move the interview to the named phase.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"phase_id": map[string]any{"type": "string"},
				},
				"required": []string{"phase_id"},
			},
		},
		{
			Name:        "advance_phase",
			Description: "Move the interview to the next phase.",
			Parameters:  map[string]any{"type": "object"},
		},
	}
}

func (e *Engine) toolHandlers(tracker *interview.Tracker) map[string]live.ToolHandler {
	handlers := map[string]live.ToolHandler{
		"set_phase": func(ctx context.Context, call protocol.ToolCall) (json.RawMessage, error) {
			id, _ := call.Args["phase_id"].(string)
			if id == "" {
				return nil, core.NewInvalidRequestError("set_phase requires phase_id")
			}
			if !tracker.SetPhase(id) {
				return nil, core.NewInvalidRequestError("unknown phase " + id)
			}
			return json.RawMessage(`{"ok":true}`), nil
		},
		"advance_phase": func(ctx context.Context, call protocol.ToolCall) (json.RawMessage, error) {
			tracker.Advance()
			phase, idx := tracker.Current()
			out, err := json.Marshal(map[string]any{"phase_id": phase.ID, "index": idx})
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}
	for name, h := range e.deps.ToolHandlers {
		handlers[name] = h
	}
	return handlers
}

// SendText injects a typed message from the candidate.
func (e *Engine) SendText(text string) error {
	session := e.liveSession()
	if session == nil {
		return core.NewInvalidRequestError("engine not connected")
	}
	return session.SendText(text)
}

// RunAssessmentNow forces one grading pass outside the normal cadence.
func (e *Engine) RunAssessmentNow(ctx context.Context) error {
	e.mu.Lock()
	assessor := e.assessor
	e.mu.Unlock()
	if assessor == nil {
		return core.NewInvalidRequestError("assessment is not enabled")
	}
	_, err := assessor.RunNow(ctx)
	return err
}

// IsConnected reports whether the live session is up.
func (e *Engine) IsConnected() bool {
	session := e.liveSession()
	return session != nil && session.Status() == live.StatusOpen
}

// IsSpeaking reports whether agent speech is playing or scheduled.
func (e *Engine) IsSpeaking() bool {
	session := e.liveSession()
	return session != nil && session.Speaking()
}

// Err returns the error that ended the session, if any.
func (e *Engine) Err() error {
	session := e.liveSession()
	if session == nil {
		return nil
	}
	return session.Err()
}

// Events exposes the live session notification stream.
func (e *Engine) Events() <-chan live.Event {
	session := e.liveSession()
	if session == nil {
		return nil
	}
	return session.Events()
}

// Transcript returns the conversation so far.
func (e *Engine) Transcript() []live.TranscriptEntry {
	session := e.liveSession()
	if session == nil {
		return nil
	}
	return session.Transcript().Entries()
}

// Scores returns the latest assessment score vector.
func (e *Engine) Scores() interview.ScoreVector {
	e.mu.Lock()
	assessor := e.assessor
	e.mu.Unlock()
	if assessor == nil {
		return nil
	}
	return assessor.Scores()
}

// Feedback returns all coaching feedback so far.
func (e *Engine) Feedback() []interview.FeedbackEvent {
	e.mu.Lock()
	assessor := e.assessor
	e.mu.Unlock()
	if assessor == nil {
		return nil
	}
	return assessor.Feedback()
}

// Phases returns the active phase plan.
func (e *Engine) Phases() []interview.Phase {
	tracker := e.phaseTracker()
	if tracker == nil {
		return nil
	}
	return tracker.Phases()
}

// CurrentPhase returns the active phase and its index, or -1 before connect.
func (e *Engine) CurrentPhase() (interview.Phase, int) {
	tracker := e.phaseTracker()
	if tracker == nil {
		return interview.Phase{}, -1
	}
	return tracker.Current()
}

// TimeSpent returns per-phase elapsed seconds.
func (e *Engine) TimeSpent() map[string]int {
	tracker := e.phaseTracker()
	if tracker == nil {
		return nil
	}
	return tracker.TimeSpent()
}

// SetPhase jumps to the named phase.
func (e *Engine) SetPhase(id string) bool {
	tracker := e.phaseTracker()
	return tracker != nil && tracker.SetPhase(id)
}

// AdvancePhase moves to the next phase.
func (e *Engine) AdvancePhase() {
	if tracker := e.phaseTracker(); tracker != nil {
		tracker.Advance()
	}
}

// CompletedSubsteps returns the substeps the grader has credited.
func (e *Engine) CompletedSubsteps() []string {
	tracker := e.phaseTracker()
	if tracker == nil {
		return nil
	}
	return tracker.CompletedSubsteps()
}

func (e *Engine) liveSession() *live.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *Engine) phaseTracker() *interview.Tracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker
}

// transcriptAdapter feeds the live transcript to the assessment loop,
// renaming speakers to the roles the grader prompt expects.
type transcriptAdapter struct {
	store *live.TranscriptStore
}

func (a *transcriptAdapter) Len() int { return a.store.Len() }

func (a *transcriptAdapter) Turns(last int) []interview.Turn {
	entries := a.store.Tail(last)
	turns := make([]interview.Turn, 0, len(entries))
	for _, entry := range entries {
		role := "candidate"
		if entry.Speaker == protocol.SpeakerAgent {
			role = "interviewer"
		}
		turns = append(turns, interview.Turn{Role: role, Text: entry.Text})
	}
	return turns
}
