package interview

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
)

// AssessmentInput is the snapshot of interview state handed to a grader.
type AssessmentInput struct {
	Round            Round
	PhaseName        string
	TimeSpentSeconds int
	Transcript       []Turn
	CompletedPhases  []string
	Rubric           string
	Code             string
	CanvasPNG        []byte
}

// Grader evaluates the candidate's progress in the current phase. The
// production grader calls a model; tests substitute a fake.
type Grader interface {
	AssessProgress(ctx context.Context, input AssessmentInput) (*AssessmentResult, error)
}

// WorkState is the candidate's current work product.
type WorkState struct {
	Code      string
	CanvasPNG []byte
}

// WorkProvider exposes the candidate's work to the assessment loop. May be
// nil when the interview has no code editor or whiteboard.
type WorkProvider interface {
	WorkState(ctx context.Context) (WorkState, error)
}

// TranscriptSource feeds conversation history to the grader.
type TranscriptSource interface {
	Len() int
	Turns(last int) []Turn
}

// AssessorConfig configures the periodic assessment loop.
type AssessorConfig struct {
	// Interval between grading passes. Default: 30s.
	Interval time.Duration

	// TailTurns is how many recent transcript lines the grader sees.
	// Default: 8.
	TailTurns int

	// Rubric is the grading guideline text injected into every pass.
	Rubric string

	Logger *slog.Logger
}

// Assessor runs the periodic grading loop. A pass only runs when the
// transcript has grown since the last one, and at most one pass is in
// flight; a tick that lands mid-pass is dropped, not queued.
type Assessor struct {
	grader     Grader
	tracker    *Tracker
	transcript TranscriptSource
	work       WorkProvider
	round      Round
	cfg        AssessorConfig
	logger     *slog.Logger

	inFlight atomic.Bool

	mu       sync.Mutex
	scores   ScoreVector
	feedback []FeedbackEvent
	lastLen  int
	lastRun  time.Time

	onFeedback func(FeedbackEvent)

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewAssessor creates an assessment loop over the given state sources.
func NewAssessor(grader Grader, tracker *Tracker, transcript TranscriptSource, work WorkProvider, round Round, cfg AssessorConfig) (*Assessor, error) {
	if grader == nil {
		return nil, core.NewInvalidRequestError("grader is required")
	}
	if tracker == nil {
		return nil, core.NewInvalidRequestError("tracker is required")
	}
	if transcript == nil {
		return nil, core.NewInvalidRequestError("transcript source is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.TailTurns <= 0 {
		cfg.TailTurns = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assessor{
		grader:     grader,
		tracker:    tracker,
		transcript: transcript,
		work:       work,
		round:      round,
		cfg:        cfg,
		logger:     cfg.Logger,
		scores:     ScoreVector{},
		stopped:    make(chan struct{}),
	}, nil
}

// SetFeedbackFunc registers a callback for each new feedback event. Must be
// set before Start.
func (a *Assessor) SetFeedbackFunc(fn func(FeedbackEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFeedback = fn
}

// Start runs the loop until Stop or context cancellation.
func (a *Assessor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.stopped:
				return
			case <-ticker.C:
				a.TickOnce(ctx)
			}
		}
	}()
}

// Stop halts the loop. A pass already in flight finishes.
func (a *Assessor) Stop() {
	a.stopOnce.Do(func() { close(a.stopped) })
}

// TickOnce runs one conditional pass: skipped when the transcript has not
// grown since the previous pass. Exported so tests can drive the loop.
func (a *Assessor) TickOnce(ctx context.Context) {
	length := a.transcript.Len()
	a.mu.Lock()
	grown := length > a.lastLen
	a.mu.Unlock()
	if !grown {
		return
	}
	ran, err := a.RunNow(ctx)
	if err != nil {
		// A failed pass is skipped entirely; the next tick retries with
		// fresher state.
		a.logger.Warn("assessment pass skipped", "err", err)
		return
	}
	// A dropped pass (another one in flight) has not seen this growth;
	// leave lastLen alone so the next tick grades it.
	if !ran {
		return
	}
	a.mu.Lock()
	a.lastLen = length
	a.mu.Unlock()
}

// RunNow forces one grading pass regardless of transcript growth. The first
// return reports whether a pass actually ran; it is false when another pass
// already held the in-flight slot.
func (a *Assessor) RunNow(ctx context.Context) (bool, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer a.inFlight.Store(false)

	phase, idx := a.tracker.Current()
	if idx < 0 {
		return false, core.NewInvalidRequestError("no phase plan loaded")
	}

	input := AssessmentInput{
		Round:            a.round,
		PhaseName:        phase.Name,
		TimeSpentSeconds: a.tracker.PhaseSeconds(phase.ID),
		Transcript:       a.transcript.Turns(a.cfg.TailTurns),
		CompletedPhases:  a.tracker.CompletedPhaseIDs(),
		Rubric:           a.cfg.Rubric,
	}
	if a.work != nil {
		state, err := a.work.WorkState(ctx)
		if err != nil {
			a.logger.Warn("work state unavailable, grading transcript only", "err", err)
		} else {
			input.Code = state.Code
			input.CanvasPNG = state.CanvasPNG
		}
	}

	result, err := a.grader.AssessProgress(ctx, input)
	if err != nil {
		return false, core.NewGradingError("assess progress", err)
	}
	if result == nil {
		return false, core.NewGradingError("grader returned no result", nil)
	}

	a.apply(result)
	return true, nil
}

func (a *Assessor) apply(result *AssessmentResult) {
	a.tracker.MarkSubsteps(result.CompletedSubsteps)

	var event *FeedbackEvent
	if result.ImmediateFeedback != "" {
		severity := SeverityInfo
		if len(result.RedFlags) > 0 {
			severity = SeverityError
		} else if result.NextPhaseReady {
			severity = SeveritySuccess
		}
		event = &FeedbackEvent{
			ID:       ulid.Make().String(),
			Message:  result.ImmediateFeedback,
			Severity: severity,
			At:       time.Now(),
		}
	}

	a.mu.Lock()
	// Every successful pass replaces the vector wholesale, including a
	// pass that graded no dimensions.
	a.scores = result.QualityScores.Clone()
	if event != nil {
		a.feedback = append(a.feedback, *event)
	}
	a.lastRun = time.Now()
	onFeedback := a.onFeedback
	a.mu.Unlock()

	if event != nil && onFeedback != nil {
		onFeedback(*event)
	}
}

// Scores returns the latest score vector.
func (a *Assessor) Scores() ScoreVector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scores.Clone()
}

// Feedback returns all feedback events so far, oldest first.
func (a *Assessor) Feedback() []FeedbackEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]FeedbackEvent, len(a.feedback))
	copy(out, a.feedback)
	return out
}

// LastRun returns when the last successful pass finished, zero before the
// first one.
func (a *Assessor) LastRun() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun
}
