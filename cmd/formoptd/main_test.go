package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := `log_level: warn
search:
  steps: [100, 10, 1]
  broad_sweep: false
  optimize_choices: false
  settle_delay: 0s
  inter_pass_delay: 0s
  stagnation_timeout: 1h
  max_passes: 1
restart:
  settle_delay: 0s
observer:
  enabled: false
storage:
  state_path: ` + filepath.Join(dir, "state") + `
  history_path: ` + filepath.Join(dir, "history.db") + `
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("formoptd %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRunThenInspect(t *testing.T) {
	path := writeConfig(t)

	out := execute(t, "--config", path, "run")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var first, last improvement.ProgressEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first event %q: %v", lines[0], err)
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("decode last event: %v", err)
	}
	if first.Type != improvement.EventInitialScore {
		t.Fatalf("first event = %s, want initial_score", first.Type)
	}
	if last.Type != improvement.EventStopped || last.Error != "" {
		t.Fatalf("last event = %+v, want a clean stop", last)
	}
	if last.Score < first.Score {
		t.Fatalf("final score %v below initial %v", last.Score, first.Score)
	}

	out = execute(t, "--config", path, "best")
	var best improvement.BestResult
	if err := json.Unmarshal([]byte(out), &best); err != nil {
		t.Fatalf("decode best %q: %v", out, err)
	}
	if !best.Set || best.Running || best.Score != last.Score {
		t.Fatalf("best = %+v, want set, not running, score %v", best, last.Score)
	}

	out = execute(t, "--config", path, "history", "--limit", "1")
	if !strings.Contains(out, "TYPE") || strings.Count(strings.TrimSpace(out), "\n") != 1 {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}
