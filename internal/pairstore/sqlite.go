package pairstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sparklost/spacebar-bridge/internal/logging"
)

// SQLiteStore is a Store backed by a single SQLite file, one per endpoint.
// One per-pair table is created on demand.
type SQLiteStore struct {
	db        *sql.DB
	retention Retention
	name      string

	mu      sync.Mutex
	created map[string]bool
}

// OpenSQLite opens (creating if needed) the SQLite file at path.
func OpenSQLite(path string, retention Retention, name string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("pairstore: open sqlite %s: %w", path, err)
	}
	// A table-per-pair schema under concurrent relay goroutines is simplest
	// to reason about with a single writer connection; SQLite serializes
	// writes internally regardless, so this avoids "database is locked"
	// noise under the pack's typical low channel-pair counts.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{
		db:        db,
		retention: retention,
		name:      name,
		created:   make(map[string]bool),
	}, nil
}

func (s *SQLiteStore) CreateTable(ctx context.Context, pairID string) error {
	if err := checkPairID(pairID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created[pairID] {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		source_id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		inserted_at TIMESTAMP NOT NULL
	)`, pairID)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("pairstore(%s): create table %s: %w", s.name, pairID, err)
	}
	s.created[pairID] = true
	return nil
}

func (s *SQLiteStore) AddPair(ctx context.Context, pairID, sourceID, targetID string) error {
	if err := checkPairID(pairID); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %q (source_id, target_id, inserted_at) VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET target_id=excluded.target_id, inserted_at=excluded.inserted_at`, pairID)
	_, err := s.db.ExecContext(ctx, stmt, sourceID, targetID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pairstore(%s): add pair %s/%s: %w", s.name, pairID, sourceID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTarget(ctx context.Context, pairID, sourceID string) (string, error) {
	if err := checkPairID(pairID); err != nil {
		return "", err
	}
	stmt := fmt.Sprintf(`SELECT target_id FROM %q WHERE source_id = ?`, pairID)
	var target string
	err := s.db.QueryRowContext(ctx, stmt, sourceID).Scan(&target)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pairstore(%s): get target %s/%s: %w", s.name, pairID, sourceID, err)
	}
	return target, nil
}

func (s *SQLiteStore) GetSource(ctx context.Context, pairID, targetID string) (string, error) {
	if err := checkPairID(pairID); err != nil {
		return "", err
	}
	stmt := fmt.Sprintf(`SELECT source_id FROM %q WHERE target_id = ?`, pairID)
	var source string
	err := s.db.QueryRowContext(ctx, stmt, targetID).Scan(&source)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pairstore(%s): get source %s/%s: %w", s.name, pairID, targetID, err)
	}
	return source, nil
}

func (s *SQLiteStore) DeletePair(ctx context.Context, pairID, sourceID string) error {
	if err := checkPairID(pairID); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DELETE FROM %q WHERE source_id = ?`, pairID)
	_, err := s.db.ExecContext(ctx, stmt, sourceID)
	if err != nil {
		return fmt.Errorf("pairstore(%s): delete pair %s/%s: %w", s.name, pairID, sourceID, err)
	}
	return nil
}

// Cleanup removes rows older than the retention cutoff from every table
// this store has created so far.
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	cutoff := s.retention.cutoff(time.Now().UTC())

	s.mu.Lock()
	pairs := make([]string, 0, len(s.created))
	for pairID := range s.created {
		pairs = append(pairs, pairID)
	}
	s.mu.Unlock()

	var firstErr error
	for _, pairID := range pairs {
		stmt := fmt.Sprintf(`DELETE FROM %q WHERE inserted_at < ?`, pairID)
		res, err := s.db.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			logging.Errorf("pairstore(%s): cleanup %s: %v", s.name, pairID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logging.Debugf("pairstore(%s): cleanup %s removed %d rows", s.name, pairID, n)
		}
	}
	return firstErr
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
