// Package pairstore persists the per-channel-pair source→target message id
// mapping that lets the bridge edit, delete, and reply-resolve mirrored
// messages. One Store instance is owned per endpoint's outgoing direction.
package pairstore

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Store is the durable bidirectional lookup contract for one endpoint.
// Implementations must be safe for concurrent use; every method is a
// self-contained operation (no caller-visible transactions).
type Store interface {
	// CreateTable idempotently prepares storage for pairID.
	CreateTable(ctx context.Context, pairID string) error
	// AddPair records source->target, replacing any existing row for source.
	AddPair(ctx context.Context, pairID, sourceID, targetID string) error
	// GetTarget returns the target id mapped from sourceID, or "" if none.
	GetTarget(ctx context.Context, pairID, sourceID string) (string, error)
	// GetSource returns the source id that maps to targetID, or "" if none.
	GetSource(ctx context.Context, pairID, targetID string) (string, error)
	// DeletePair removes the row for sourceID, if any.
	DeletePair(ctx context.Context, pairID, sourceID string) error
	// Cleanup evicts rows older than the configured retention windows.
	Cleanup(ctx context.Context) error
	// Close releases the underlying connection/pool.
	Close() error
}

// validPairID matches the "pair_<snowflake>_<snowflake>" table-name
// identifiers; used to guard dynamic per-pair table names against injection
// since pairID ends up interpolated into SQL identifiers.
var validPairID = regexp.MustCompile(`^pair_[0-9]+_[0-9]+$`)

func checkPairID(pairID string) error {
	if !validPairID.MatchString(pairID) {
		return fmt.Errorf("pairstore: invalid pair id %q", pairID)
	}
	return nil
}

// Retention bundles the two eviction windows from config.Database.
// Validation guarantees cleanup_days < pair_lifetime_days always holds,
// which means a single sweep at the cleanup_days cutoff already removes
// every row that pair_lifetime_days would also condemn (a row older than
// pair_lifetime_days is necessarily older than the smaller cleanup_days
// threshold too), so Cleanup only needs the one, more aggressive cutoff.
type Retention struct {
	CleanupDays      int
	PairLifetimeDays int
}

func (r Retention) cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -r.CleanupDays)
}
