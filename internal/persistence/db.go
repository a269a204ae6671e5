// Package persistence provides SQLite-based storage of finished runs so
// their summaries and purchase ledgers can be listed and reported later.
// Runs are archived once complete; nothing here resumes a simulation.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/idle-sim/internal/engine"
)

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// Run is the archived summary of one simulation.
type Run struct {
	ID            string    `json:"id"`
	Strategy      string    `json:"strategy"`
	Duration      float64   `json:"duration"`
	Resource      float64   `json:"resource"`
	TotalProduced float64   `json:"total_produced"`
	Rate          float64   `json:"rate"`
	Time          float64   `json:"time"`
	Purchases     int       `json:"purchases"`
	StopReason    string    `json:"stop_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// runRow is the table layout of Run; timestamps are stored as unix millis.
type runRow struct {
	ID            string  `db:"id"`
	Strategy      string  `db:"strategy"`
	Duration      float64 `db:"duration"`
	Resource      float64 `db:"resource"`
	TotalProduced float64 `db:"total_produced"`
	Rate          float64 `db:"rate"`
	Time          float64 `db:"time"`
	Purchases     int     `db:"purchases"`
	StopReason    string  `db:"stop_reason"`
	CreatedAt     int64   `db:"created_at"`
}

func (r runRow) toRun() Run {
	return Run{
		ID:            r.ID,
		Strategy:      r.Strategy,
		Duration:      r.Duration,
		Resource:      r.Resource,
		TotalProduced: r.TotalProduced,
		Rate:          r.Rate,
		Time:          r.Time,
		Purchases:     r.Purchases,
		StopReason:    r.StopReason,
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// NewRun builds the archive record of a finished run with a fresh ID.
func NewRun(strategyName string, duration float64, res engine.Result) Run {
	st := res.State
	return Run{
		ID:            uuid.NewString(),
		Strategy:      strategyName,
		Duration:      duration,
		Resource:      st.Resource(),
		TotalProduced: st.TotalProduced(),
		Rate:          st.Rate(),
		Time:          st.Time(),
		Purchases:     st.Purchases(),
		StopReason:    string(res.Reason),
		CreatedAt:     time.Now().UTC(),
	}
}

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		duration REAL NOT NULL,
		resource REAL NOT NULL,
		total_produced REAL NOT NULL,
		rate REAL NOT NULL,
		time REAL NOT NULL,
		purchases INTEGER NOT NULL,
		stop_reason TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchases (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		time REAL NOT NULL,
		item TEXT NOT NULL,
		cost REAL NOT NULL,
		total_produced REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes a run summary and its full purchase ledger.
func (db *DB) SaveRun(run Run, history []engine.HistoryEntry) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, strategy, duration, resource, total_produced, rate, time,
		 purchases, stop_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Duration, run.Resource, run.TotalProduced,
		run.Rate, run.Time, run.Purchases, run.StopReason, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO purchases
		(run_id, seq, time, item, cost, total_produced)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, h := range history {
		if _, err := stmt.Exec(run.ID, i, h.Time, h.Item, h.Cost, h.TotalProduced); err != nil {
			return fmt.Errorf("insert purchase %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("run archived", "id", run.ID, "strategy", run.Strategy, "entries", len(history))
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	var rows []runRow
	err := db.conn.Select(&rows,
		"SELECT * FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = r.toRun()
	}
	return runs, nil
}

// LoadRun retrieves one run summary.
func (db *DB) LoadRun(id string) (Run, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	return row.toRun(), nil
}

// LoadPurchases returns the purchase ledger of a run in order, starting
// with the initial entry.
func (db *DB) LoadPurchases(id string) ([]engine.HistoryEntry, error) {
	if _, err := db.LoadRun(id); err != nil {
		return nil, err
	}
	var history []engine.HistoryEntry
	err := db.conn.Select(&history,
		"SELECT time, item, cost, total_produced FROM purchases WHERE run_id = ? ORDER BY seq",
		id,
	)
	return history, err
}
