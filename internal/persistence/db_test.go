package persistence

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/engine"
	"github.com/talgya/idle-sim/internal/strategy"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func runCheap(t *testing.T) engine.Result {
	t.Helper()
	eng := engine.New(engine.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	res, err := eng.Run(catalog.Default(), 1e4, strategy.Cheap)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestNewRun(t *testing.T) {
	res := runCheap(t)
	run := NewRun("cheap", 1e4, res)

	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("expected UUID run ID, got %q: %v", run.ID, err)
	}
	if run.Strategy != "cheap" || run.Duration != 1e4 {
		t.Errorf("unexpected run header: %+v", run)
	}
	if run.Purchases != res.State.Purchases() || run.Rate != res.State.Rate() {
		t.Errorf("run summary does not match state: %+v vs %s", run, res.State)
	}
	if run.StopReason != string(res.Reason) {
		t.Errorf("expected stop reason %q, got %q", res.Reason, run.StopReason)
	}
	if NewRun("cheap", 1e4, res).ID == run.ID {
		t.Error("expected distinct IDs for distinct runs")
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	res := runCheap(t)
	run := NewRun("cheap", 1e4, res)
	run.CreatedAt = time.UnixMilli(run.CreatedAt.UnixMilli()).UTC()

	if err := db.SaveRun(run, res.State.History()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := db.LoadRun(run.ID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if !reflect.DeepEqual(got, run) {
		t.Errorf("loaded run differs:\n got %+v\nwant %+v", got, run)
	}

	history, err := db.LoadPurchases(run.ID)
	if err != nil {
		t.Fatalf("LoadPurchases failed: %v", err)
	}
	if !reflect.DeepEqual(history, res.State.History()) {
		t.Errorf("loaded history differs: got %d entries, want %d", len(history), len(res.State.History()))
	}
	if history[0] != (engine.HistoryEntry{}) {
		t.Errorf("expected initial entry first, got %+v", history[0])
	}
}

func TestLoadRunNotFound(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.LoadRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LoadRun: expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.LoadPurchases("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LoadPurchases: expected ErrRunNotFound, got %v", err)
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	db := openTestDB(t)
	res := runCheap(t)
	run := NewRun("cheap", 1e4, res)

	if err := db.SaveRun(run, res.State.History()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := db.SaveRun(run, res.State.History()); err == nil {
		t.Error("expected error saving the same run ID twice")
	}
}

func TestRecentRuns(t *testing.T) {
	db := openTestDB(t)
	res := runCheap(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"a", "b", "c"} {
		run := NewRun(name, 1e4, res)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.SaveRun(run, nil); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", name, err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("expected newest first, got %s, %s", runs[0].Strategy, runs[1].Strategy)
	}
	if !runs[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("unexpected CreatedAt %v", runs[0].CreatedAt)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	res := runCheap(t)
	run := NewRun("cheap", 1e4, res)
	if err := db.SaveRun(run, res.State.History()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	if _, err := db.LoadRun(run.ID); err != nil {
		t.Errorf("expected run after reopen, got %v", err)
	}
}
