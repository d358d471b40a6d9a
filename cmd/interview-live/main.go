// Command interview-live runs a voice mock interview from the terminal: it
// connects to the remote interviewer agent, streams microphone audio, plays
// the agent's speech, and runs the phase tracker and assessment loop.
//
// Environment variables:
//
//	INTERVIEW_WS_URL  - websocket endpoint of the interviewer agent (required)
//	GEMINI_API_KEY    - enables the assessment loop and final report
//	INTERVIEW_DB_DSN  - optional Postgres DSN for persisting interviews
//
// Controls:
//
//	<text>          send a typed message
//	/phase <id>     jump to a phase
//	/next           advance to the next phase
//	/assess         force an assessment pass now
//	/scores         print current scores and feedback
//	q               end the interview
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Abhi001vj/InterviewBuddy.AI/internal/dotenv"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/coach"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/interview"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/interview/gemini"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live"
	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("interview-live failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	_ = dotenv.Load()

	var (
		urlFlag    = flag.String("url", os.Getenv("INTERVIEW_WS_URL"), "websocket endpoint of the interviewer agent")
		roundFlag  = flag.String("round", "system_design", "interview round: system_design or dsa")
		roleFlag   = flag.String("role", "backend", "target role: backend, frontend, ml, full_stack")
		topicFlag  = flag.String("topic", "", "interview topic or question")
		phasesFlag = flag.String("phases", "", "optional YAML file overriding the phase plan")
		rubricFlag = flag.String("rubric", "", "optional rubric text file for the grader")
		textOnly   = flag.Bool("text-only", false, "skip microphone and speaker devices")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *urlFlag == "" {
		return fmt.Errorf("agent URL required (-url or INTERVIEW_WS_URL)")
	}

	round := interview.Round(*roundFlag)
	role := interview.Role(*roleFlag)

	var phases []interview.Phase
	if *phasesFlag != "" {
		loaded, err := interview.LoadPhaseFile(*phasesFlag)
		if err != nil {
			return err
		}
		phases = loaded
	}

	rubric := ""
	if *rubricFlag != "" {
		data, err := os.ReadFile(*rubricFlag)
		if err != nil {
			return fmt.Errorf("read rubric: %w", err)
		}
		rubric = string(data)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nending interview...")
		cancel()
	}()

	sessionCfg := live.DefaultSessionConfig()
	sessionCfg.URL = *urlFlag
	sessionCfg.System = systemPrompt(round, role, *topicFlag)

	deps := coach.Deps{}

	var grader *gemini.Grader
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		g, err := gemini.New(ctx, gemini.Config{APIKey: key, Logger: logger})
		if err != nil {
			return err
		}
		grader = g
		deps.Grader = g
	} else {
		logger.Warn("GEMINI_API_KEY not set, assessment and final report disabled")
	}

	var speaker *speakerSink
	if !*textOnly {
		spk, err := openSpeaker(sessionCfg.OutputSampleRate)
		if err != nil {
			logger.Warn("speaker unavailable, agent audio discarded", "err", err)
		} else {
			speaker = spk
			deps.Sink = spk
			defer speaker.Close()
		}
		deps.SourceFactory = func() (live.FrameSource, error) {
			return openMic(sessionCfg.InputSampleRate)
		}
	}

	var archive *store.Store
	if dsn := os.Getenv("INTERVIEW_DB_DSN"); dsn != "" {
		st, err := store.Open(ctx, dsn, logger)
		if err != nil {
			return err
		}
		archive = st
		defer archive.Close()
	}

	engine := coach.New(coach.Config{
		Session: sessionCfg,
		Round:   round,
		Role:    role,
		Phases:  phases,
		Rubric:  rubric,
		Logger:  logger,
	}, deps)

	if err := engine.Connect(ctx); err != nil {
		return err
	}
	defer engine.Disconnect()

	interviewID := ulid.Make().String()
	startedAt := time.Now().UTC()
	if archive != nil {
		if err := archive.CreateInterview(ctx, store.InterviewRecord{
			ID:        interviewID,
			Round:     round,
			Role:      role,
			Topic:     *topicFlag,
			StartedAt: startedAt,
		}); err != nil {
			logger.Warn("interview not persisted", "err", err)
			archive = nil
		}
	}

	go printEvents(ctx, engine)

	fmt.Println("interview started: speak, or type a message (q to quit)")
	readInput(ctx, cancel, engine)

	engine.Disconnect()
	finish(engine, grader, archive, interviewID, round, *topicFlag, rubric, logger)
	return nil
}

func systemPrompt(round interview.Round, role interview.Role, topic string) string {
	var b strings.Builder
	b.WriteString("You are a rigorous but supportive technical interviewer conducting a ")
	b.WriteString(string(round))
	b.WriteString(" interview for a ")
	b.WriteString(string(role))
	b.WriteString(" position.")
	if topic != "" {
		b.WriteString(" The question is: ")
		b.WriteString(topic)
	}
	b.WriteString(" Use the set_phase and advance_phase tools to move the interview along its phases.")
	return b.String()
}

func printEvents(ctx context.Context, engine *coach.Engine) {
	events := engine.Events()
	if events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case live.TranscriptEvent:
				fmt.Printf("[%s] %s\n", ev.Entry.Speaker, ev.Entry.Text)
			case live.ErrorEvent:
				fmt.Printf("[error] %v\n", ev.Err)
			case live.ClosedEvent:
				fmt.Printf("[session closed: %s]\n", ev.Reason)
				return
			}
		}
	}
}

func readInput(ctx context.Context, cancel context.CancelFunc, engine *coach.Engine) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "q":
				cancel()
				return
			case line == "/next":
				engine.AdvancePhase()
				phase, _ := engine.CurrentPhase()
				fmt.Printf("now in phase %s\n", phase.ID)
			case strings.HasPrefix(line, "/phase "):
				id := strings.TrimSpace(strings.TrimPrefix(line, "/phase "))
				if engine.SetPhase(id) {
					fmt.Printf("now in phase %s\n", id)
				} else {
					fmt.Printf("unknown phase %s\n", id)
				}
			case line == "/assess":
				if err := engine.RunAssessmentNow(ctx); err != nil {
					fmt.Printf("assessment failed: %v\n", err)
				}
			case line == "/scores":
				fmt.Printf("scores: %v\n", engine.Scores())
				for _, fb := range engine.Feedback() {
					fmt.Printf("  [%s] %s\n", fb.Severity, fb.Message)
				}
			default:
				if err := engine.SendText(line); err != nil {
					fmt.Printf("send failed: %v\n", err)
				}
			}
		}
	}
}

// finish generates the final report and persists the interview outcome.
// Everything here is best-effort; the interview already happened.
func finish(engine *coach.Engine, grader *gemini.Grader, archive *store.Store, id string, round interview.Round, topic, rubric string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	entries := engine.Transcript()
	turns := make([]interview.Turn, 0, len(entries))
	for _, e := range entries {
		role := "candidate"
		if e.Speaker == "agent" {
			role = "interviewer"
		}
		turns = append(turns, interview.Turn{Role: role, Text: e.Text})
	}

	var report *interview.FeedbackReport
	if grader != nil && len(turns) > 0 {
		r, err := grader.GenerateReport(ctx, turns, string(round), "", "", topic, rubric)
		if err != nil {
			logger.Warn("final report failed", "err", err)
		} else {
			report = r
			fmt.Printf("\n=== Feedback Report ===\nScore: %d/100\n%s\n", report.OverallScore, report.Summary)
			for _, stage := range report.Stages {
				fmt.Printf("  %s: %d/5 - %s\n", stage.Stage, stage.Score, stage.Feedback)
			}
		}
	}

	if archive == nil {
		return
	}
	if err := archive.FinishInterview(ctx, store.InterviewRecord{
		ID:         id,
		Transcript: turns,
		Scores:     engine.Scores(),
		Feedback:   engine.Feedback(),
		TimeSpent:  engine.TimeSpent(),
	}); err != nil {
		logger.Warn("finish interview not persisted", "err", err)
		return
	}
	if report != nil {
		if err := archive.SaveReport(ctx, id, report); err != nil {
			logger.Warn("report not persisted", "err", err)
		}
	}
}
