package interview

import (
	"testing"
)

func TestPhasesFor_RoundAndRoleSplit(t *testing.T) {
	dsa := PhasesFor(RoundDSA, RoleBackend)
	if len(dsa) != 4 || dsa[0].ID != "problem_understanding" {
		t.Fatalf("dsa plan = %+v", dsa)
	}

	backend := PhasesFor(RoundSystemDesign, RoleBackend)
	if len(backend) != 5 || backend[3].ID != "deep_dive" {
		t.Fatalf("backend plan = %+v", backend)
	}

	// Full stack falls back to the backend plan.
	full := PhasesFor(RoundSystemDesign, RoleFullStack)
	if full[0].ID != backend[0].ID {
		t.Fatalf("full stack plan starts with %s", full[0].ID)
	}

	frontend := PhasesFor(RoundSystemDesign, RoleFrontend)
	if frontend[1].ID != "architecture" {
		t.Fatalf("frontend plan = %+v", frontend)
	}

	ml := PhasesFor(RoundSystemDesign, RoleML)
	if ml[0].ID != "framing" || ml[0].MinDurationSeconds != 300 {
		t.Fatalf("ml plan = %+v", ml)
	}
}

func TestPhasesFor_ReturnsIndependentCopies(t *testing.T) {
	a := PhasesFor(RoundDSA, RoleBackend)
	a[0].Substeps[0] = "mutated"
	b := PhasesFor(RoundDSA, RoleBackend)
	if b[0].Substeps[0] == "mutated" {
		t.Fatal("preset shared a substep slice with the caller")
	}
}

func TestScoringDimensions(t *testing.T) {
	sd := ScoringDimensions(RoundSystemDesign)
	if len(sd) != 4 || sd[0] != DimDepth {
		t.Fatalf("system design dims = %v", sd)
	}
	dsa := ScoringDimensions(RoundDSA)
	if len(dsa) != 4 || dsa[0] != DimProblemSolving {
		t.Fatalf("dsa dims = %v", dsa)
	}
}

func TestParsePhaseYAML(t *testing.T) {
	doc := []byte(`
phases:
  - id: intro
    name: Introduction
    target_duration_seconds: 120
    required: true
    substeps:
      - Greet
      - Outline agenda
  - id: close
    name: Closing
    target_duration_seconds: 60
    required: false
`)
	phases, err := ParsePhaseYAML(doc)
	if err != nil {
		t.Fatalf("ParsePhaseYAML: %v", err)
	}
	if len(phases) != 2 {
		t.Fatalf("got %d phases", len(phases))
	}
	if phases[0].ID != "intro" || phases[0].TargetDurationSeconds != 120 || len(phases[0].Substeps) != 2 {
		t.Fatalf("phase 0 = %+v", phases[0])
	}
	if phases[1].Required {
		t.Fatal("phase 1 should be optional")
	}
}

func TestParsePhaseYAML_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not yaml", ":\n  - ["},
		{"empty plan", "phases: []"},
		{"missing id", "phases:\n  - name: X"},
		{"duplicate id", "phases:\n  - id: a\n  - id: a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePhaseYAML([]byte(tc.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
