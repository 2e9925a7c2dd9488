// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists search responses in a content-addressed SQLite
// store. Functionally identical queries hash to the same key, so repeated
// or batched research runs skip the live providers entirely until the
// entry's TTL lapses. Expired entries are logically absent on lookup and
// physically removed only by an explicit sweep, keeping lookups read-only.
//
// Multiple research sessions may share one store: SQLite's WAL journal
// serializes writers per database, and stores are last-write-wins per key.
//
// See docs/ARCHITECTURE § Query Cache.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/meshintel/scout/pkg/types"
)

const dbFile = "scout.db"

// Store manages the query cache SQLite database.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore opens or creates the cache database at cfg.Dir/scout.db and
// creates the schema if it does not exist. TTL is fixed per store and
// applied at store time.
func NewStore(cfg types.CacheConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, ttl: cfg.TTL(), now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock overrides the store's clock. Tests use this to step past TTL
// boundaries without sleeping.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			cost_units REAL NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			results TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Key derives the content-addressed cache key from the query text and the
// requested result count. Identical inputs always map to the same key.
func Key(queryText string, maxResults int) string {
	normalized := NormalizeQueryText(queryText)
	sum := sha256.Sum256([]byte(normalized + "|" + fmt.Sprintf("%d", maxResults)))
	return hex.EncodeToString(sum[:])
}

// NormalizeQueryText lowercases the query and collapses runs of whitespace
// so that trivially different spellings share a cache slot.
func NormalizeQueryText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Lookup returns the entry for key, or nil when no entry exists or the
// stored entry has expired. Expired entries are left in place for the
// next sweep; lookup never writes.
func (s *Store) Lookup(key string) (*types.CacheEntry, error) {
	row := s.db.QueryRow(
		`SELECT provider, cost_units, created_at, expires_at, results FROM entries WHERE key = ?`, key)

	var provider, createdAt, expiresAt, resultsJSON string
	var costUnits float64
	err := row.Scan(&provider, &costUnits, &createdAt, &expiresAt, &resultsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	entry := types.CacheEntry{
		Key:       key,
		Provider:  provider,
		CostUnits: costUnits,
	}
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("cache lookup: bad created_at %q: %w", createdAt, err)
	}
	if entry.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("cache lookup: bad expires_at %q: %w", expiresAt, err)
	}
	if entry.Expired(s.now()) {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(resultsJSON), &entry.Results); err != nil {
		return nil, fmt.Errorf("cache lookup: decoding results: %w", err)
	}
	return &entry, nil
}

// Store persists a search response under key. Last write wins: a
// concurrent store to the same key simply replaces the row, which is
// acceptable since providers converge on similar results for one query.
func (s *Store) Store(key string, results []types.ScoredResult, provider string, costUnits float64) (types.CacheEntry, error) {
	now := s.now()
	entry := types.CacheEntry{
		Key:       key,
		Results:   results,
		Provider:  provider,
		CostUnits: costUnits,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return entry, fmt.Errorf("cache store: encoding results: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO entries (key, provider, cost_units, created_at, expires_at, results)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, provider, costUnits,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.ExpiresAt.UTC().Format(time.RFC3339Nano),
		string(resultsJSON),
	)
	if err != nil {
		return entry, fmt.Errorf("cache store: %w", err)
	}
	return entry, nil
}

// SweepExpired removes every entry whose TTL has lapsed and returns the
// number of rows deleted. Best-effort maintenance; lookups do not depend
// on it for correctness.
func (s *Store) SweepExpired() (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM entries WHERE expires_at < ?`,
		s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("cache sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache sweep: %w", err)
	}
	return int(n), nil
}

// Export writes every live entry to w as YAML, one record per entry, for
// human inspection of what the cache holds.
func (s *Store) Export(w io.Writer) error {
	rows, err := s.db.Query(
		`SELECT key, provider, cost_units, created_at, expires_at, results FROM entries ORDER BY created_at`)
	if err != nil {
		return fmt.Errorf("cache export: %w", err)
	}
	defer rows.Close()

	var entries []types.CacheEntry
	now := s.now()
	for rows.Next() {
		var entry types.CacheEntry
		var createdAt, expiresAt, resultsJSON string
		if err := rows.Scan(&entry.Key, &entry.Provider, &entry.CostUnits, &createdAt, &expiresAt, &resultsJSON); err != nil {
			return fmt.Errorf("cache export: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			continue
		}
		if entry.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
			continue
		}
		if entry.Expired(now) {
			continue
		}
		if err := json.Unmarshal([]byte(resultsJSON), &entry.Results); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cache export: %w", err)
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache export: marshaling: %w", err)
	}
	_, err = w.Write(data)
	return err
}
