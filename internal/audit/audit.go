// Package audit keeps a sqlite log of scored requests.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/features"
	"github.com/IlyassOtmani/car-price-ml/internal/predict"
)

const schema = `CREATE TABLE IF NOT EXISTS predictions (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	inputs      TEXT NOT NULL,
	value       REAL NOT NULL,
	price       TEXT NOT NULL
)`

// Entry is one logged prediction
type Entry struct {
	ID          string           `json:"id"`
	CreatedAt   time.Time        `json:"createdAt"`
	Fingerprint string           `json:"fingerprint"`
	Request     features.Request `json:"request"`
	Value       float64          `json:"value"`
	Price       string           `json:"price"`
}

// Store writes predictions to a sqlite database
type Store struct {
	db          *sql.DB
	fingerprint string
	now         func() time.Time
}

// Open creates or opens the database at path. fingerprint identifies the
// model whose predictions are logged.
func Open(path, fingerprint string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	log.Info().Str("path", path).Msg("prediction audit log enabled")
	return &Store{db: db, fingerprint: fingerprint, now: time.Now}, nil
}

// Record stores a scored request
func (s *Store) Record(ctx context.Context, res predict.Result) error {
	inputs, err := json.Marshal(res.Request)
	if err != nil {
		return fmt.Errorf("failed to encode inputs: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO predictions (id, created_at, fingerprint, inputs, value, price) VALUES (?, ?, ?, ?, ?, ?)",
		res.ID, s.now().UTC().Format(time.RFC3339Nano), s.fingerprint, string(inputs), res.Value, res.Price,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction %s: %w", res.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, fingerprint, inputs, value, price FROM predictions ORDER BY rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			created string
			inputs  string
		)
		if err := rows.Scan(&e.ID, &created, &e.Fingerprint, &inputs, &e.Value, &e.Price); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("bad timestamp on %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(inputs), &e.Request); err != nil {
			return nil, fmt.Errorf("bad inputs on %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
