// Package store persists tracked markets and their rules in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/rules"
)

// Record is one tracked market: which market, which rules settle it, and
// how often it gets checked.
type Record struct {
	ID          int64
	MarketID    string
	Question    string
	OutcomeType string
	URL         string
	DoResolve   []rules.Spec
	ResolveTo   []rules.Spec
	Notes       string
	CheckRate   time.Duration
	LastChecked *time.Time
}

// Store wraps the SQLite database holding tracked markets.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path with WAL mode
// enabled, and applies the schema.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs the schema creation SQL. Safe to call multiple times due to
// IF NOT EXISTS.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if _, err := db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// Add inserts a tracked market and returns its row id.
func (s *Store) Add(rec *Record) (int64, error) {
	doResolve, err := json.Marshal(rec.DoResolve)
	if err != nil {
		return 0, fmt.Errorf("encoding trigger rules: %w", err)
	}
	resolveTo, err := json.Marshal(rec.ResolveTo)
	if err != nil {
		return 0, fmt.Errorf("encoding value rules: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO tracked_markets
			(market_id, question, outcome_type, url, do_resolve, resolve_to, notes, check_rate_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MarketID, rec.Question, rec.OutcomeType, rec.URL,
		string(doResolve), string(resolveTo), rec.Notes, rec.CheckRate.Hours(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting tracked market: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// Remove deletes a tracked market by row id.
func (s *Store) Remove(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tracked_markets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("removing tracked market %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no tracked market with id %d", id)
	}
	return nil
}

// Get fetches one tracked market by row id.
func (s *Store) Get(id int64) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, market_id, question, outcome_type, url, do_resolve, resolve_to,
		       notes, check_rate_hours, last_checked
		FROM tracked_markets WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no tracked market with id %d", id)
	}
	return rec, err
}

// List returns every tracked market in insertion order.
func (s *Store) List() ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT id, market_id, question, outcome_type, url, do_resolve, resolve_to,
		       notes, check_rate_hours, last_checked
		FROM tracked_markets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tracked markets: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Touch records when a market was last checked.
func (s *Store) Touch(id int64, when time.Time) error {
	_, err := s.db.Exec(`UPDATE tracked_markets SET last_checked = ? WHERE id = ?`,
		when.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating last checked for %d: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec         Record
		doResolve   string
		resolveTo   string
		rateHours   float64
		lastChecked sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.MarketID, &rec.Question, &rec.OutcomeType, &rec.URL,
		&doResolve, &resolveTo, &rec.Notes, &rateHours, &lastChecked)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doResolve), &rec.DoResolve); err != nil {
		return nil, fmt.Errorf("decoding trigger rules for %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(resolveTo), &rec.ResolveTo); err != nil {
		return nil, fmt.Errorf("decoding value rules for %d: %w", rec.ID, err)
	}
	rec.CheckRate = time.Duration(rateHours * float64(time.Hour))
	if lastChecked.Valid {
		t, err := time.Parse(time.RFC3339, lastChecked.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last checked for %d: %w", rec.ID, err)
		}
		rec.LastChecked = &t
	}
	return &rec, nil
}

// RecordSnapshot stores the market state observed during a check, keeping a
// history of how tracked markets moved before resolution.
func (s *Store) RecordSnapshot(m *manifold.MarketData) error {
	var answerProbs sql.NullString
	if len(m.Answers) > 0 {
		probs := make(map[int]float64, len(m.Answers))
		for _, a := range m.Answers {
			probs[a.ID] = a.Probability
		}
		encoded, err := json.Marshal(probs)
		if err != nil {
			return fmt.Errorf("encoding answer probabilities: %w", err)
		}
		answerProbs = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO market_snapshots
			(market_id, probability, answer_probs, volume, total_liquidity, is_resolved)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Probability, answerProbs, m.Volume, m.TotalLiquidity, m.IsResolved,
	)
	if err != nil {
		return fmt.Errorf("recording snapshot for %s: %w", m.ID, err)
	}
	return nil
}
