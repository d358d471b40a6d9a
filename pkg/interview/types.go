// Package interview models the structure of a mock interview: its phases,
// the running score state, and the periodic assessment loop that grades the
// candidate against a rubric while the live session runs.
package interview

import (
	"time"
)

// Round is the kind of interview being conducted.
type Round string

const (
	RoundSystemDesign Round = "system_design"
	RoundDSA          Round = "dsa"
)

// Role is the position the candidate is interviewing for. It selects the
// phase plan for system design rounds.
type Role string

const (
	RoleBackend   Role = "backend"
	RoleFrontend  Role = "frontend"
	RoleML        Role = "ml"
	RoleFullStack Role = "full_stack"
)

// Scoring dimension ids. System design rounds use the first four, coding
// rounds the last four.
const (
	DimDepth     = "depth"
	DimClarity   = "clarity"
	DimTechnical = "technical"
	DimPractical = "practical"

	DimProblemSolving = "problem_solving"
	DimCoding         = "coding"
	DimVerification   = "verification"
	DimCommunication  = "communication"
)

// ScoreVector holds per-dimension scores on a 0-100 scale. Each assessment
// replaces the whole vector; scores are a current reading, not an average.
type ScoreVector map[string]int

// Clone returns an independent copy.
func (v ScoreVector) Clone() ScoreVector {
	if v == nil {
		return nil
	}
	out := make(ScoreVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// AssessmentResult is one grading pass over the current phase.
type AssessmentResult struct {
	PhaseCompletion   int         `json:"phase_completion"`
	QualityScores     ScoreVector `json:"quality_scores"`
	RedFlags          []string    `json:"red_flags"`
	GreenFlags        []string    `json:"green_flags"`
	ImmediateFeedback string      `json:"immediate_feedback"`
	NextPhaseReady    bool        `json:"next_phase_ready"`
	NextPhaseReason   string      `json:"next_phase_reason"`
	OverallImpression string      `json:"overall_impression"`
	CompletedSubsteps []string    `json:"completed_substeps"`
}

// Severity classifies a feedback event for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// FeedbackEvent is one piece of real-time coaching surfaced to the
// candidate during the interview.
type FeedbackEvent struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Turn is one transcript line as the grader sees it.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// StageFeedback grades one phase in the final report, on a 1-5 scale.
type StageFeedback struct {
	Stage    string `json:"stage"`
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

// FeedbackReport is the detailed post-interview report.
type FeedbackReport struct {
	OverallScore       int             `json:"overallScore"`
	Summary            string          `json:"summary"`
	Strengths          []string        `json:"strengths"`
	Weaknesses         []string        `json:"weaknesses"`
	Stages             []StageFeedback `json:"stages"`
	DetailedAssessment string          `json:"detailedAssessment"`
}

// TestCase is one input/output pair for a coding challenge.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// TestResult is the outcome of running the candidate's code against one
// test case.
type TestResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Logs     string `json:"logs,omitempty"`
}

// CodeEvaluation is the outcome of evaluating the candidate's code.
type CodeEvaluation struct {
	Passed  bool         `json:"passed"`
	Results []TestResult `json:"results"`
}

// Challenge is a generated coding problem: starter code plus test cases.
type Challenge struct {
	StarterCode string     `json:"starterCode"`
	TestCases   []TestCase `json:"testCases"`
}
