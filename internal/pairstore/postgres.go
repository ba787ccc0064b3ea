package pairstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparklost/spacebar-bridge/internal/logging"
)

// PostgresStore is a Store backed by one Postgres database per endpoint,
// using a pooled connection (github.com/jackc/pgx/v5).
type PostgresStore struct {
	pool      *pgxpool.Pool
	retention Retention
	name      string

	mu      sync.Mutex
	created map[string]bool
}

// OpenPostgres connects to a Postgres database using host/user/password and
// the given database name (e.g. "bridge_discord_msgs").
func OpenPostgres(ctx context.Context, host, user, password, dbname string, retention Retention, name string) (*PostgresStore, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=prefer", user, password, host, dbname)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pairstore: connect postgres %s/%s: %w", host, dbname, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pairstore: ping postgres %s/%s: %w", host, dbname, err)
	}
	return &PostgresStore{
		pool:      pool,
		retention: retention,
		name:      name,
		created:   make(map[string]bool),
	}, nil
}

func (s *PostgresStore) CreateTable(ctx context.Context, pairID string) error {
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
		inserted_at TIMESTAMPTZ NOT NULL
	)`, pairID)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("pairstore(%s): create table %s: %w", s.name, pairID, err)
	}
	s.created[pairID] = true
	return nil
}

func (s *PostgresStore) AddPair(ctx context.Context, pairID, sourceID, targetID string) error {
	if err := checkPairID(pairID); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %q (source_id, target_id, inserted_at) VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET target_id = EXCLUDED.target_id, inserted_at = EXCLUDED.inserted_at`, pairID)
	_, err := s.pool.Exec(ctx, stmt, sourceID, targetID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pairstore(%s): add pair %s/%s: %w", s.name, pairID, sourceID, err)
	}
	return nil
}

func (s *PostgresStore) GetTarget(ctx context.Context, pairID, sourceID string) (string, error) {
	if err := checkPairID(pairID); err != nil {
		return "", err
	}
	stmt := fmt.Sprintf(`SELECT target_id FROM %q WHERE source_id = $1`, pairID)
	var target string
	err := s.pool.QueryRow(ctx, stmt, sourceID).Scan(&target)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pairstore(%s): get target %s/%s: %w", s.name, pairID, sourceID, err)
	}
	return target, nil
}

func (s *PostgresStore) GetSource(ctx context.Context, pairID, targetID string) (string, error) {
	if err := checkPairID(pairID); err != nil {
		return "", err
	}
	stmt := fmt.Sprintf(`SELECT source_id FROM %q WHERE target_id = $1`, pairID)
	var source string
	err := s.pool.QueryRow(ctx, stmt, targetID).Scan(&source)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pairstore(%s): get source %s/%s: %w", s.name, pairID, targetID, err)
	}
	return source, nil
}

func (s *PostgresStore) DeletePair(ctx context.Context, pairID, sourceID string) error {
	if err := checkPairID(pairID); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DELETE FROM %q WHERE source_id = $1`, pairID)
	_, err := s.pool.Exec(ctx, stmt, sourceID)
	if err != nil {
		return fmt.Errorf("pairstore(%s): delete pair %s/%s: %w", s.name, pairID, sourceID, err)
	}
	return nil
}

func (s *PostgresStore) Cleanup(ctx context.Context) error {
	cutoff := s.retention.cutoff(time.Now().UTC())

	s.mu.Lock()
	pairs := make([]string, 0, len(s.created))
	for pairID := range s.created {
		pairs = append(pairs, pairID)
	}
	s.mu.Unlock()

	var firstErr error
	for _, pairID := range pairs {
		stmt := fmt.Sprintf(`DELETE FROM %q WHERE inserted_at < $1`, pairID)
		tag, err := s.pool.Exec(ctx, stmt, cutoff)
		if err != nil {
			logging.Errorf("pairstore(%s): cleanup %s: %v", s.name, pairID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if tag.RowsAffected() > 0 {
			logging.Debugf("pairstore(%s): cleanup %s removed %d rows", s.name, pairID, tag.RowsAffected())
		}
	}
	return firstErr
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
