package interview

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Phase is one stage of the interview plan.
type Phase struct {
	ID string `json:"id" yaml:"id"`

	Name string `json:"name" yaml:"name"`

	// TargetDurationSeconds is the planned time box. Zero means untimed.
	TargetDurationSeconds int `json:"target_duration_seconds" yaml:"target_duration_seconds"`

	// MinDurationSeconds is the shortest credible time for this phase; the
	// grader treats earlier advancement as rushing.
	MinDurationSeconds int `json:"min_duration_seconds,omitempty" yaml:"min_duration_seconds,omitempty"`

	Required bool `json:"required" yaml:"required"`

	// Substeps are the checklist items the candidate should cover.
	Substeps []string `json:"substeps" yaml:"substeps"`
}

// Tracker follows the candidate through the phase plan: which phase is
// active, how long each phase has run, and which substeps the grader has
// credited. Substep credit is monotone; a later assessment never revokes it.
type Tracker struct {
	mu        sync.Mutex
	phases    []Phase
	current   int
	timeSpent map[string]int
	completed map[string]struct{}
	running   bool

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewTracker creates a tracker positioned at the first phase.
func NewTracker(phases []Phase) *Tracker {
	spent := make(map[string]int, len(phases))
	for _, p := range phases {
		spent[p.ID] = 0
	}
	return &Tracker{
		phases:    phases,
		timeSpent: spent,
		completed: make(map[string]struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins the one-second phase timer. Only the active phase
// accumulates time.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopped:
				return
			case <-ticker.C:
				t.TickSecond()
			}
		}
	}()
}

// TickSecond credits one second to the active phase. Exported so tests can
// drive the timer without wall time.
func (t *Tracker) TickSecond() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return
	}
	t.timeSpent[t.phases[t.current].ID]++
}

// Stop halts the phase timer. Phase position and accumulated time survive.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Running reports whether the phase timer is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Advance moves to the next phase. At the last phase it is a no-op.
func (t *Tracker) Advance() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < len(t.phases)-1 {
		t.current++
	}
}

// SetPhase jumps to the phase with the given id, in either direction.
// Unknown ids are ignored.
func (t *Tracker) SetPhase(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, p := range t.phases {
		if p.ID == id {
			t.current = i
			return true
		}
	}
	return false
}

// Current returns the active phase and its index. The second return is -1
// for an empty plan.
func (t *Tracker) Current() (Phase, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return Phase{}, -1
	}
	return t.phases[t.current], t.current
}

// Phases returns the full plan.
func (t *Tracker) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, len(t.phases))
	copy(out, t.phases)
	return out
}

// CompletedPhaseIDs returns the ids of the phases before the active one.
func (t *Tracker) CompletedPhaseIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, t.current)
	for _, p := range t.phases[:t.current] {
		out = append(out, p.ID)
	}
	return out
}

// TimeSpent returns a copy of the per-phase elapsed seconds.
func (t *Tracker) TimeSpent() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.timeSpent))
	for k, v := range t.timeSpent {
		out[k] = v
	}
	return out
}

// PhaseSeconds returns the elapsed seconds for one phase.
func (t *Tracker) PhaseSeconds(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeSpent[id]
}

// MarkSubsteps credits the given substeps. Credit only grows; marking an
// already-credited substep is a no-op.
func (t *Tracker) MarkSubsteps(steps []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range steps {
		if s != "" {
			t.completed[s] = struct{}{}
		}
	}
}

// CompletedSubsteps returns the credited substeps in sorted order.
func (t *Tracker) CompletedSubsteps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.completed))
	for s := range t.completed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
