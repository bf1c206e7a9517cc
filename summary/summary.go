// Package summary stores training summaries (scalars and texts per step) in a SQLite
// database inside the training directory
package summary

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database name inside a training directory
const FileName = "events.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started INTEGER NOT NULL,
	config TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS scalars (
	run TEXT NOT NULL REFERENCES runs(id),
	step INTEGER NOT NULL,
	wall INTEGER NOT NULL,
	tag TEXT NOT NULL,
	value REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS scalars_tag ON scalars(tag, run, step);
CREATE TABLE IF NOT EXISTS texts (
	run TEXT NOT NULL REFERENCES runs(id),
	step INTEGER NOT NULL,
	wall INTEGER NOT NULL,
	tag TEXT NOT NULL,
	text TEXT NOT NULL
);
`

// Path returns the database path of a training directory
func Path(trainDir string) string {
	return filepath.Join(trainDir, FileName)
}

func open(path, params string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000"+params)
	if err != nil {
		return nil, fmt.Errorf("open summaries: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping summaries: %w", err)
	}
	return conn, nil
}

// Writer appends the summaries of one run
type Writer struct {
	RunID string

	db *sql.DB
}

// NewWriter opens or creates the database in trainDir and registers a new run
func NewWriter(trainDir, config string) (*Writer, error) {
	db, err := open(Path(trainDir), "&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize summaries: %w", err)
	}
	w := &Writer{RunID: uuid.NewString(), db: db}
	if _, err := db.Exec("INSERT INTO runs (id, started, config) VALUES (?, ?, ?)", w.RunID, time.Now().UnixNano(), config); err != nil {
		db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return w, nil
}

// AddScalar records value under tag at step
func (w *Writer) AddScalar(tag string, value float64, step int64) error {
	_, err := w.db.Exec("INSERT INTO scalars (run, step, wall, tag, value) VALUES (?, ?, ?, ?, ?)",
		w.RunID, step, time.Now().UnixNano(), tag, value)
	return err
}

// AddText records a text under tag at step
func (w *Writer) AddText(tag, text string, step int64) error {
	_, err := w.db.Exec("INSERT INTO texts (run, step, wall, tag, text) VALUES (?, ?, ?, ?, ?)",
		w.RunID, step, time.Now().UnixNano(), tag, text)
	return err
}

// Close checkpoints the write-ahead log and closes the database
func (w *Writer) Close() error {
	_, _ = w.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return w.db.Close()
}

// Run is one training process that wrote to the database
type Run struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Config  string    `json:"config"`
}

// Scalar is one recorded value
type Scalar struct {
	Run   string    `json:"run"`
	Step  int64     `json:"step"`
	Wall  time.Time `json:"wall"`
	Value float64   `json:"value"`
}

// Text is one recorded text
type Text struct {
	Run  string    `json:"run"`
	Step int64     `json:"step"`
	Wall time.Time `json:"wall"`
	Text string    `json:"text"`
}

// Reader queries a summary database
type Reader struct {
	db *sql.DB
}

// OpenReader opens the database at path read-only
func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open summaries: %w", err)
	}
	db, err := open(path, "&_query_only=true")
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Close closes the database
func (r *Reader) Close() error {
	return r.db.Close()
}

// Runs lists the runs, oldest first
func (r *Reader) Runs(ctx context.Context) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, started, config FROM runs ORDER BY started")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var run Run
		var started int64
		if err := rows.Scan(&run.ID, &started, &run.Config); err != nil {
			return nil, err
		}
		run.Started = time.Unix(0, started)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Tags lists the scalar tags in name order
func (r *Reader) Tags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT tag FROM scalars ORDER BY tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Scalars returns the values of tag over all runs, ordered by run start and step
func (r *Reader) Scalars(ctx context.Context, tag string) ([]Scalar, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT s.run, s.step, s.wall, s.value FROM scalars s
		JOIN runs ON runs.id = s.run WHERE s.tag = ? ORDER BY runs.started, s.step, s.wall`, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Scalar
	for rows.Next() {
		var s Scalar
		var wall int64
		if err := rows.Scan(&s.Run, &s.Step, &wall, &s.Value); err != nil {
			return nil, err
		}
		s.Wall = time.Unix(0, wall)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Texts returns the texts of tag over all runs
func (r *Reader) Texts(ctx context.Context, tag string) ([]Text, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT t.run, t.step, t.wall, t.text FROM texts t
		JOIN runs ON runs.id = t.run WHERE t.tag = ? ORDER BY runs.started, t.step`, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Text
	for rows.Next() {
		var t Text
		var wall int64
		if err := rows.Scan(&t.Run, &t.Step, &wall, &t.Text); err != nil {
			return nil, err
		}
		t.Wall = time.Unix(0, wall)
		out = append(out, t)
	}
	return out, rows.Err()
}
