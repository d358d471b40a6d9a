// Package gemini implements interview grading on the Gemini API: the
// periodic progress assessment, code evaluation, question preparation and
// the final feedback report.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/core"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/interview"
)

const (
	// DefaultModel handles reasoning-heavy calls: assessment, code
	// evaluation, the final report.
	DefaultModel = "gemini-2.0-flash-exp"

	// DefaultFastModel handles instant utility calls: rewriting and
	// selecting questions, generating starter code.
	DefaultFastModel = "gemini-2.0-flash-exp"
)

// Config configures a Grader.
type Config struct {
	APIKey    string
	Model     string
	FastModel string
	Logger    *slog.Logger
}

// Grader calls the Gemini API for every grading and authoring operation the
// interview engine needs. It implements interview.Grader.
type Grader struct {
	client    *genai.Client
	model     string
	fastModel string
	logger    *slog.Logger
}

// New creates a Grader.
func New(ctx context.Context, cfg Config) (*Grader, error) {
	if cfg.APIKey == "" {
		return nil, core.NewInvalidRequestError("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.FastModel == "" {
		cfg.FastModel = DefaultFastModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewGradingError("create gemini client", err)
	}
	return &Grader{
		client:    client,
		model:     cfg.Model,
		fastModel: cfg.FastModel,
		logger:    cfg.Logger,
	}, nil
}

var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// cleanJSON strips a markdown code fence if the model wrapped its JSON in
// one despite the response MIME type.
func cleanJSON(text string) string {
	if text == "" {
		return "{}"
	}
	if m := fenceRE.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

func assessmentSchema() *genai.Schema {
	scoreDim := func() *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Nullable: genai.Ptr(true)}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"phase_completion": {Type: genai.TypeNumber},
			"quality_scores": {
				Type:     genai.TypeObject,
				Nullable: genai.Ptr(true),
				Properties: map[string]*genai.Schema{
					interview.DimDepth:          scoreDim(),
					interview.DimClarity:        scoreDim(),
					interview.DimTechnical:      scoreDim(),
					interview.DimPractical:      scoreDim(),
					interview.DimProblemSolving: scoreDim(),
					interview.DimCoding:         scoreDim(),
					interview.DimVerification:   scoreDim(),
					interview.DimCommunication:  scoreDim(),
				},
			},
			"red_flags":          {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"green_flags":        {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"immediate_feedback": {Type: genai.TypeString},
			"next_phase_ready":   {Type: genai.TypeBoolean},
			"next_phase_reason":  {Type: genai.TypeString},
			"overall_impression": {Type: genai.TypeString},
			"completed_substeps": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"phase_completion", "immediate_feedback", "next_phase_ready"},
	}
}

// AssessProgress grades the candidate's progress in the current phase.
func (g *Grader) AssessProgress(ctx context.Context, input interview.AssessmentInput) (*interview.AssessmentResult, error) {
	prompt := buildAssessmentPrompt(input)

	parts := []*genai.Part{{Text: prompt}}
	if len(input.CanvasPNG) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: "image/png",
			Data:     input.CanvasPNG,
		}})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   assessmentSchema(),
	})
	if err != nil {
		return nil, core.NewGradingError("assessment call", err)
	}

	var result interview.AssessmentResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return nil, core.NewGradingError("assessment response is not the expected JSON", err)
	}
	return &result, nil
}

func buildAssessmentPrompt(input interview.AssessmentInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert Interview Assessor for a %s interview.\n", input.Round)
	fmt.Fprintf(&b, "Current Phase: %s\n", input.PhaseName)
	fmt.Fprintf(&b, "Time Spent: %d seconds\n", input.TimeSpentSeconds)
	if len(input.CompletedPhases) > 0 {
		fmt.Fprintf(&b, "Completed Phases: %s\n", strings.Join(input.CompletedPhases, ", "))
	}

	b.WriteString("\nRecent Transcript:\n")
	for _, turn := range input.Transcript {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Text)
	}

	if input.Code != "" {
		fmt.Fprintf(&b, "\nCandidate's Code:\n%s\n", input.Code)
	}
	if input.Rubric != "" {
		fmt.Fprintf(&b, "\nGUIDELINES AND RUBRIC TO FOLLOW:\n%s\n", input.Rubric)
	}

	b.WriteString(`
Assess the candidate's performance in the CURRENT PHASE.
1. Have they completed the required sub-steps for this phase?
2. Are there red flags?
3. Are there green flags?
4. Should they move to the next phase?

Provide actionable immediate feedback (1-2 sentences).
`)
	return b.String()
}

// EvaluateCode mentally executes the candidate's code against the test
// cases and reports per-case results.
func (g *Grader) EvaluateCode(ctx context.Context, question, code, language string, cases []interview.TestCase) (*interview.CodeEvaluation, error) {
	casesJSON, err := json.Marshal(cases)
	if err != nil {
		return nil, core.NewInvalidRequestError("marshal test cases: " + err.Error())
	}
	prompt := fmt.Sprintf(`Act as a %s code execution engine. Execute the following code against the provided test cases.

Problem: %s

User Code (%s):
%s

Test Cases:
%s

1. Mentally execute the code for each test case.
2. Return the strict output for each case.
3. DO NOT provide qualitative feedback here. Just the execution results.
`, language, question, language, code, casesJSON)

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"passed": {Type: genai.TypeBoolean},
			"results": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"input":    {Type: genai.TypeString},
						"expected": {Type: genai.TypeString},
						"actual":   {Type: genai.TypeString},
						"passed":   {Type: genai.TypeBoolean},
						"logs":     {Type: genai.TypeString},
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, core.NewGradingError("code evaluation call", err)
	}

	var eval interview.CodeEvaluation
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &eval); err != nil {
		return nil, core.NewGradingError("code evaluation response is not the expected JSON", err)
	}
	return &eval, nil
}

// GenerateChallenge creates a coding challenge with starter code and three
// test cases.
func (g *Grader) GenerateChallenge(ctx context.Context, topic, language string) (*interview.Challenge, error) {
	prompt := fmt.Sprintf(`Create a LeetCode-style coding challenge for: %q.

1. Provide starter code in %s inside a 'class Solution'.
2. The starter code MUST ONLY contain the class and method definition.
3. DO NOT include the problem description, constraints, or examples in the comments.
4. DO NOT implement the logic. The body should be empty, 'pass', or return null.
5. Provide 3 distinct test cases.
IMPORTANT: For test case inputs, provide ONLY the raw values as they would be passed to the function.
`, topic, language)

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"starterCode": {Type: genai.TypeString},
			"testCases": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"input":  {Type: genai.TypeString},
						"output": {Type: genai.TypeString},
					},
				},
			},
		},
		Required: []string{"starterCode", "testCases"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.fastModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, core.NewGradingError("challenge generation call", err)
	}

	var challenge interview.Challenge
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &challenge); err != nil {
		return nil, core.NewGradingError("challenge response is not the expected JSON", err)
	}
	return &challenge, nil
}

var codeFenceRE = regexp.MustCompile("```[a-zA-Z0-9+#-]*\n?")

// stripCodeFences removes markdown code fences from a code response.
func stripCodeFences(text string) string {
	return strings.TrimSpace(codeFenceRE.ReplaceAllString(text, ""))
}

// GenerateSolutionTemplate produces starter code for an existing question:
// class structure and method signature only, no implementation.
func (g *Grader) GenerateSolutionTemplate(ctx context.Context, question, language string) (string, error) {
	prompt := fmt.Sprintf(`Generate the starter code boilerplate in %s for the following problem: %q.

1. Include ONLY the class structure and the method signature.
2. DO NOT include the problem description or constraints in comments.
3. DO NOT implement the logic. The body should be empty, 'pass', or return null.
Output only the raw code without markdown formatting.`, language, question)

	resp, err := g.client.Models.GenerateContent(ctx, g.fastModel, genai.Text(prompt), nil)
	if err != nil {
		return "", core.NewGradingError("solution template call", err)
	}
	code := stripCodeFences(resp.Text())
	if code == "" {
		return "", core.NewGradingError("solution template response was empty", nil)
	}
	return code, nil
}

// GenerateReport produces the detailed post-interview feedback report.
func (g *Grader) GenerateReport(ctx context.Context, transcript []interview.Turn, round, company, role, question, rubric string) (*interview.FeedbackReport, error) {
	var history strings.Builder
	for _, turn := range transcript {
		fmt.Fprintf(&history, "%s: %s\n", strings.ToUpper(turn.Role), turn.Text)
	}
	prompt := fmt.Sprintf(`You are a Senior Bar Raiser at %s. You just conducted a %s interview.

Question: %s

Transcript:
%s

REFERENCE MATERIAL:
%s

Generate a detailed feedback report.`, company, round, question, history.String(), rubric)

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallScore": {Type: genai.TypeNumber},
			"summary":      {Type: genai.TypeString},
			"strengths":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"weaknesses":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"stages": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"stage":    {Type: genai.TypeString},
						"feedback": {Type: genai.TypeString},
						"score":    {Type: genai.TypeNumber},
					},
				},
			},
			"detailedAssessment": {Type: genai.TypeString},
		},
		Required: []string{"overallScore", "summary", "strengths", "weaknesses", "stages", "detailedAssessment"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, core.NewGradingError("report call", err)
	}

	var report interview.FeedbackReport
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &report); err != nil {
		return nil, core.NewGradingError("report response is not the expected JSON", err)
	}
	return &report, nil
}

// RewriteQuestion restyles a question for a specific company, role and
// round. On failure the original question is returned unchanged.
func (g *Grader) RewriteQuestion(ctx context.Context, question, company, role, round string) string {
	prompt := fmt.Sprintf(`Rewrite the following interview question to match the specific style, tone, difficulty, and typical constraints of a %s %s interview for a %s round.

For Google: Focus on scalability, edge cases, and ambiguity.
For Meta: Focus on practical implementation, speed, and production-readiness.
For Amazon: Focus on Leadership Principles compatibility and customer obsession.

Original Question: %q

Output only the rewritten question text, fully formatted.`, company, role, round, question)

	resp, err := g.client.Models.GenerateContent(ctx, g.fastModel, genai.Text(prompt), nil)
	if err != nil {
		g.logger.Warn("question rewrite failed, keeping original", "err", err)
		return question
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		return text
	}
	return question
}

// SelectQuestion picks the most characteristic question from a list for the
// given company and role. On failure the first question is returned.
func (g *Grader) SelectQuestion(ctx context.Context, questions []string, company, role string) string {
	if len(questions) == 0 {
		return ""
	}
	var list strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&list, "%d. %s\n", i+1, q)
	}
	prompt := fmt.Sprintf(`You are a hiring manager at %s hiring for a %s.
From the following list of potential interview questions, select the ONE single question that is most relevant, challenging, and characteristic of your interview process.

Questions:
%s
Output ONLY the text of the selected question. Do not add markdown formatting or quotes.`, company, role, list.String())

	resp, err := g.client.Models.GenerateContent(ctx, g.fastModel, genai.Text(prompt), nil)
	if err != nil {
		g.logger.Warn("question selection failed, keeping first", "err", err)
		return questions[0]
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		return text
	}
	return questions[0]
}
