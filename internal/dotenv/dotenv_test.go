package dotenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file: %v", err)
	}
}

func TestLoadFile_AppliesPairsButNeverOverrides(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "INTERVIEW_WS_URL=ws://localhost:9000/live\nEXISTING=from_file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EXISTING", "already_set")
	t.Setenv("INTERVIEW_WS_URL", "")
	os.Unsetenv("INTERVIEW_WS_URL")

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := os.Getenv("INTERVIEW_WS_URL"); got != "ws://localhost:9000/live" {
		t.Fatalf("INTERVIEW_WS_URL = %q", got)
	}
	if got := os.Getenv("EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING = %q, file value overrode the environment", got)
	}
}

func TestParse(t *testing.T) {
	input := `
# interview engine settings
GEMINI_API_KEY=abc123
export ROUND=system_design
QUOTED="hello world"
SINGLE='one two'
EMPTY=
NOEQUALS
=NOKEY
`
	pairs, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := map[string]string{
		"GEMINI_API_KEY": "abc123",
		"ROUND":          "system_design",
		"QUOTED":         "hello world",
		"SINGLE":         "one two",
		"EMPTY":          "",
	}
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %v", pairs)
	}
	for k, v := range want {
		if pairs[k] != v {
			t.Errorf("%s = %q, want %q", k, pairs[k], v)
		}
	}
}
