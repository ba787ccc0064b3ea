// Package scheduler periodically sweeps both pair stores of mappings past
// their retention window, keeping the bridge's on-disk footprint bounded.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sparklost/spacebar-bridge/internal/logging"
	"github.com/sparklost/spacebar-bridge/internal/pairstore"
)

// Cleaner runs both endpoints' pairstore.Store.Cleanup on a cron schedule.
type Cleaner struct {
	cron    *cron.Cron
	stores  []pairstore.Store
}

// New builds a Cleaner for the given stores, scheduled by the standard
// five-field cron spec (e.g. "0 3 * * *" for daily at 3am).
func New(spec string, stores ...pairstore.Store) (*Cleaner, error) {
	c := cron.New()
	cl := &Cleaner{cron: c, stores: stores}

	_, err := c.AddFunc(spec, cl.runOnce)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

// Start begins the cron schedule in the background.
func (c *Cleaner) Start() { c.cron.Start() }

// Stop halts the schedule, waiting for any in-flight run to finish.
func (c *Cleaner) Stop() { <-c.cron.Stop().Done() }

func (c *Cleaner) runOnce() {
	ctx := context.Background()
	for _, store := range c.stores {
		if err := store.Cleanup(ctx); err != nil {
			logging.Errorf("scheduler: cleanup failed: %v", err)
		}
	}
}
