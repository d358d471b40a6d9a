package interview

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
)

// PhasesFor returns the built-in phase plan for a round and role. DSA rounds
// share one plan; system design rounds split by role.
func PhasesFor(round Round, role Role) []Phase {
	if round == RoundDSA {
		return clonePhases(dsaPhases)
	}
	switch role {
	case RoleFrontend:
		return clonePhases(frontendPhases)
	case RoleML:
		return clonePhases(mlPhases)
	default:
		return clonePhases(backendPhases)
	}
}

// ScoringDimensions returns the score dimension ids graded in a round.
func ScoringDimensions(round Round) []string {
	if round == RoundDSA {
		return []string{DimProblemSolving, DimCoding, DimVerification, DimCommunication}
	}
	return []string{DimDepth, DimClarity, DimTechnical, DimPractical}
}

// LoadPhaseFile reads a custom phase plan from a YAML file, overriding the
// built-in presets.
func LoadPhaseFile(path string) ([]Phase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phase file: %w", err)
	}
	return ParsePhaseYAML(data)
}

// ParsePhaseYAML decodes and validates a YAML phase plan.
func ParsePhaseYAML(data []byte) ([]Phase, error) {
	var doc struct {
		Phases []Phase `yaml:"phases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, core.NewInvalidRequestError("phase file is not valid YAML: " + err.Error())
	}
	if len(doc.Phases) == 0 {
		return nil, core.NewInvalidRequestError("phase file defines no phases")
	}
	seen := make(map[string]struct{}, len(doc.Phases))
	for i, p := range doc.Phases {
		if p.ID == "" {
			return nil, core.NewInvalidRequestError(fmt.Sprintf("phase %d has no id", i))
		}
		if _, dup := seen[p.ID]; dup {
			return nil, core.NewInvalidRequestError("duplicate phase id " + p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return doc.Phases, nil
}

func clonePhases(in []Phase) []Phase {
	out := make([]Phase, len(in))
	copy(out, in)
	for i := range out {
		out[i].Substeps = append([]string(nil), in[i].Substeps...)
	}
	return out
}

var backendPhases = []Phase{
	{
		ID: "requirements", Name: "Requirements", TargetDurationSeconds: 300, Required: true,
		Substeps: []string{"Functional Requirements", "Non-Functional (CAP, Scale)", "Back-of-envelope Math"},
	},
	{
		ID: "api_db", Name: "API & Data Model", TargetDurationSeconds: 420, Required: true,
		Substeps: []string{"API Endpoints Definition", "Database Schema Design", "SQL vs NoSQL Choice"},
	},
	{
		ID: "hld", Name: "High-Level Design", TargetDurationSeconds: 300, Required: true,
		Substeps: []string{"Draw Core Components", "Data Flow", "Load Balancers/Services"},
	},
	{
		ID: "deep_dive", Name: "Deep Dive", TargetDurationSeconds: 600, Required: true,
		Substeps: []string{"Scaling Strategies", "Caching", "Partitioning/Sharding", "Bottlenecks"},
	},
	{
		ID: "wrapup", Name: "Wrap Up", TargetDurationSeconds: 180, Required: true,
		Substeps: []string{"Trade-offs", "Failure Scenarios", "Future Improvements"},
	},
}

var frontendPhases = []Phase{
	{
		ID: "requirements", Name: "Requirements", TargetDurationSeconds: 300, Required: true,
		Substeps: []string{"User Stories/UX", "Device Support", "Performance Constraints", "Accessibility"},
	},
	{
		ID: "architecture", Name: "Component Arch", TargetDurationSeconds: 420, Required: true,
		Substeps: []string{"Component Tree", "Props/State Flow", "Server vs Client Side Rendering"},
	},
	{
		ID: "state", Name: "State Management", TargetDurationSeconds: 300, Required: true,
		Substeps: []string{"Local vs Global State", "Data Fetching Strategy", "Caching/Store"},
	},
	{
		ID: "perf_ux", Name: "Perf & UX", TargetDurationSeconds: 480, Required: true,
		Substeps: []string{"Rendering Opt (LCP/CLS)", "Network Optimization", "Error Handling", "A11y"},
	},
	{
		ID: "api_interface", Name: "API Interface", TargetDurationSeconds: 300, Required: true,
		Substeps: []string{"API Contract", "Polling vs Sockets", "Mocking/Testing Strategy"},
	},
}

var mlPhases = []Phase{
	{
		ID: "framing", Name: "Problem Framing", TargetDurationSeconds: 420, MinDurationSeconds: 300, Required: true,
		Substeps: []string{"Clarify requirements", "Business Objective", "ML Objective", "Constraints"},
	},
	{
		ID: "design", Name: "High-Level Design", TargetDurationSeconds: 180, MinDurationSeconds: 60, Required: true,
		Substeps: []string{"Block diagram", "Data flow", "Key components"},
	},
	{
		ID: "data", Name: "Data & Features", TargetDurationSeconds: 600, Required: true,
		Substeps: []string{"Data Sources", "Labeling", "Feature Selection", "Feature Engineering"},
	},
	{
		ID: "modeling", Name: "Modeling", TargetDurationSeconds: 600, Required: true,
		Substeps: []string{"Baseline", "Model Selection", "Architecture", "Loss Functions"},
	},
	{
		ID: "eval", Name: "Eval & Serving", TargetDurationSeconds: 420, Required: true,
		Substeps: []string{"Offline Metrics", "Online Metrics", "Latency/Scale", "Deployment"},
	},
}

var dsaPhases = []Phase{
	{
		ID: "problem_understanding", Name: "Problem Understanding", TargetDurationSeconds: 120, Required: true,
		Substeps: []string{"Ask clarifications", "Restate problem", "Identify constraints"},
	},
	{
		ID: "approach_discussion", Name: "Approach Discussion", TargetDurationSeconds: 180, Required: true,
		Substeps: []string{"Brute force approach", "Optimal approach", "Complexity analysis"},
	},
	{
		ID: "implementation", Name: "Implementation", TargetDurationSeconds: 900, Required: true,
		Substeps: []string{"Write clean code", "Think aloud", "Handle edge cases"},
	},
	{
		ID: "verification", Name: "Verification", TargetDurationSeconds: 300, Required: true,
		Substeps: []string{"Dry run", "Test with examples", "Debug if necessary"},
	},
}
