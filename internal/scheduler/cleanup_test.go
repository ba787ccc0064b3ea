package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	calls atomic.Int64
}

func (s *countingStore) CreateTable(ctx context.Context, pairID string) error { return nil }
func (s *countingStore) AddPair(ctx context.Context, pairID, sourceID, targetID string) error {
	return nil
}
func (s *countingStore) GetTarget(ctx context.Context, pairID, sourceID string) (string, error) {
	return "", nil
}
func (s *countingStore) GetSource(ctx context.Context, pairID, targetID string) (string, error) {
	return "", nil
}
func (s *countingStore) DeletePair(ctx context.Context, pairID, sourceID string) error { return nil }
func (s *countingStore) Cleanup(ctx context.Context) error {
	s.calls.Add(1)
	return nil
}
func (s *countingStore) Close() error { return nil }

func TestNewRejectsInvalidCronSpec(t *testing.T) {
	_, err := New("not a cron spec", &countingStore{})
	assert.Error(t, err)
}

func TestCleanerRunsOnEverySecondForAllStores(t *testing.T) {
	a, b := &countingStore{}, &countingStore{}
	c, err := New("@every 1s", a, b)
	require.NoError(t, err)

	c.Start()
	time.Sleep(1200 * time.Millisecond)
	c.Stop()

	assert.GreaterOrEqual(t, a.calls.Load(), int64(1))
	assert.GreaterOrEqual(t, b.calls.Load(), int64(1))
}
