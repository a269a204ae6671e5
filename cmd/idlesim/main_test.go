package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/persistence"
	"github.com/talgya/idle-sim/internal/report"
)

// isolateEnv points HOME at a temp dir, clears overrides and installs a
// doubling one-item catalog.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for _, k := range []string{"IDLESIM_DURATION", "IDLESIM_STRICT", "IDLESIM_DB", "IDLESIM_LOG_LEVEL", "IDLESIM_PORT"} {
		t.Setenv(k, "")
	}

	catPath := filepath.Join(dir, "catalog.yaml")
	data := "growth: 2\nitems:\n  - {name: Cursor, cost: 10, rate: 1}\n"
	if err := os.WriteFile(catPath, []byte(data), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	t.Setenv("IDLESIM_CATALOG", catPath)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--log-level", "warn"))
	err := root.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("expected version %q, got %q", version, got["version"])
	}
}

func TestRunCommand(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "run", "fixed:Cursor", "--duration", "50")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := "fixed:Cursor: resource 2, rate 4, time 34, total produced 72, purchases 3 (horizon)\n"
	if out != want {
		t.Errorf("unexpected output:\n got %q\nwant %q", out, want)
	}
}

func TestRunCommandJSONLedger(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "run", "fixed:Cursor", "--duration", "50", "--ledger", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var got runOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Summary.TotalProduced != 72 || len(got.History) != 4 {
		t.Errorf("unexpected output: %+v", got)
	}
	if got.ID != "" {
		t.Errorf("expected no ID without archive, got %q", got.ID)
	}
}

func TestRunCommandErrors(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown strategy", []string{"run", "greedy"}},
		{"unknown item", []string{"run", "fixed:Nope"}},
		{"negative duration", []string{"run", "best", "--duration", "-1"}},
		{"infinite duration", []string{"run", "cheap", "--duration", "inf"}},
		{"strict violation", []string{"run", "fixed:Cursor", "--duration", "50", "--strict"}},
		{"bad log level", []string{"run", "best", "--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetErr(io.Discard)
			root.SetArgs(tt.args)
			if err := root.Execute(); err == nil {
				t.Errorf("expected error, got output %q", out.String())
			}
		})
	}
}

func TestRunUnknownItemWrapsCatalogError(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "run", "fixed:Nope")
	if !errors.Is(err, catalog.ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestCompareCommand(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "compare", "none", "fixed:Cursor", "--duration", "50", "--json")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	var got struct {
		Ranking []report.Summary `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(got.Ranking) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Ranking))
	}
	if got.Ranking[0].Strategy != "fixed:Cursor" || got.Ranking[1].Strategy != "none" {
		t.Errorf("unexpected ranking: %+v", got.Ranking)
	}
}

func TestCompareReportsFailedStrategy(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "compare", "fixed:Cursor", "fixed:Nope", "--duration", "50")
	if err == nil {
		t.Fatal("expected error for the failing strategy")
	}
	if !strings.Contains(err.Error(), "fixed:Nope") {
		t.Errorf("error should name the strategy: %v", err)
	}
	if !strings.Contains(out, "fixed:Cursor") {
		t.Errorf("expected successful strategy in table, got %q", out)
	}
}

func TestCatalogCommand(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "catalog")
	if err != nil {
		t.Fatalf("catalog failed: %v", err)
	}
	if !strings.HasPrefix(out, "growth 2 per purchase") || !strings.Contains(out, "Cursor") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunsCommand(t *testing.T) {
	dir := isolateEnv(t)

	if _, err := execute(t, "runs"); err == nil {
		t.Error("expected error with archive disabled")
	}

	dbPath := filepath.Join(dir, "data", "runs.db")
	t.Setenv("IDLESIM_DB", dbPath)

	out, err := execute(t, "run", "fixed:Cursor", "--duration", "50", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var run runOutput
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected archived run ID")
	}

	out, err = execute(t, "runs", "--json")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	var list struct {
		Runs []persistence.Run `json:"runs"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].ID != run.ID {
		t.Errorf("expected the archived run, got %+v", list.Runs)
	}

	out, err = execute(t, "runs", run.ID)
	if err != nil {
		t.Fatalf("runs %s failed: %v", run.ID, err)
	}
	if !strings.Contains(out, run.ID) || !strings.Contains(out, "total produced 72") {
		t.Errorf("unexpected detail output:\n%s", out)
	}

	if _, err := execute(t, "runs", "missing"); !errors.Is(err, persistence.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
