package gemini

import (
	"strings"
	"testing"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/interview"
)

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"empty", "", "{}"},
		{"fence with surrounding prose", "Here you go:\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanJSON(tc.in); got != tc.want {
				t.Fatalf("cleanJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"bare code", "class Solution:\n    pass", "class Solution:\n    pass"},
		{"python fence", "```python\nclass Solution:\n    pass\n```", "class Solution:\n    pass"},
		{"plain fence", "```\nfunc twoSum() {}\n```", "func twoSum() {}"},
		{"csharp fence", "```c#\npublic class Solution {}\n```", "public class Solution {}"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripCodeFences(tc.in); got != tc.want {
				t.Fatalf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBuildAssessmentPrompt(t *testing.T) {
	input := interview.AssessmentInput{
		Round:            interview.RoundSystemDesign,
		PhaseName:        "Deep Dive",
		TimeSpentSeconds: 245,
		Transcript: []interview.Turn{
			{Role: "agent", Text: "How would you shard this?"},
			{Role: "user", Text: "By user id, with consistent hashing."},
		},
		CompletedPhases: []string{"requirements", "hld"},
		Rubric:          "Expect concrete numbers.",
		Code:            "type Ring struct{}",
	}
	prompt := buildAssessmentPrompt(input)

	for _, want := range []string{
		"Current Phase: Deep Dive",
		"Time Spent: 245 seconds",
		"Completed Phases: requirements, hld",
		"AGENT: How would you shard this?",
		"USER: By user id, with consistent hashing.",
		"type Ring struct{}",
		"Expect concrete numbers.",
		"CURRENT PHASE",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildAssessmentPrompt_OmitsEmptySections(t *testing.T) {
	prompt := buildAssessmentPrompt(interview.AssessmentInput{
		Round:     interview.RoundDSA,
		PhaseName: "Implementation",
	})
	if strings.Contains(prompt, "Completed Phases:") {
		t.Error("prompt has empty completed-phases section")
	}
	if strings.Contains(prompt, "Candidate's Code:") {
		t.Error("prompt has empty code section")
	}
	if strings.Contains(prompt, "RUBRIC") {
		t.Error("prompt has empty rubric section")
	}
}

func TestAssessmentSchema_RequiredFields(t *testing.T) {
	schema := assessmentSchema()
	want := map[string]bool{"phase_completion": true, "immediate_feedback": true, "next_phase_ready": true}
	if len(schema.Required) != len(want) {
		t.Fatalf("required = %v", schema.Required)
	}
	for _, f := range schema.Required {
		if !want[f] {
			t.Fatalf("unexpected required field %q", f)
		}
	}
	if schema.Properties["quality_scores"].Nullable == nil || !*schema.Properties["quality_scores"].Nullable {
		t.Fatal("quality_scores must be nullable")
	}
}
