// Package scheduler wires up the cron job that periodically sweeps all
// active searches, and guards sweeps and manual scans with Redis
// cooldown locks so the cron tick and a manual trigger cannot
// double-process the same work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"dealscout/internal/scanner"
)

const (
	sweepLockKey    = "dealscout:sweep:lock"
	sweepLockTTL    = 30 * time.Minute
	searchCooldown  = 5 * time.Minute
	searchKeyPrefix = "dealscout:scan:cooldown:"
)

// ErrCooldown signals that a scan for the same target ran too recently.
var ErrCooldown = errors.New("scheduler: scan is on cooldown")

// Scheduler wraps robfig/cron and manages the sweep loop.
type Scheduler struct {
	cron    *cron.Cron
	rdb     *redis.Client
	scanner *scanner.Scanner
	spec    string // cron spec, e.g. "@every 1h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(rdb *redis.Client, sc *scanner.Scanner, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		rdb:     rdb,
		scanner: sc,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the sweep job and starts the scheduler. Also runs one
// sweep immediately so results exist without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.TriggerSweep(ctx); err != nil && !errors.Is(err, ErrCooldown) {
			log.Printf("[scheduler] Sweep error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	go func() {
		if _, err := s.TriggerSweep(ctx); err != nil && !errors.Is(err, ErrCooldown) {
			log.Printf("[scheduler] Initial sweep error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// TriggerSweep runs a batch sweep of all active searches, guarded by a
// Redis lock so overlapping sweeps (slow previous run, manual trigger
// racing the cron tick) are skipped rather than stacked.
func (s *Scheduler) TriggerSweep(ctx context.Context) (scanner.Summary, error) {
	ok, err := s.rdb.SetNX(ctx, sweepLockKey, time.Now().UTC().Format(time.RFC3339), sweepLockTTL).Result()
	if err != nil {
		// Redis being down should not stop scanning; proceed unguarded.
		log.Printf("[scheduler] Sweep lock unavailable (%v) — proceeding without it", err)
	} else if !ok {
		log.Println("[scheduler] Sweep already in progress — skipping")
		return scanner.Summary{}, ErrCooldown
	} else {
		defer s.rdb.Del(context.WithoutCancel(ctx), sweepLockKey)
	}

	log.Println("[scheduler] Sweep started")
	return s.scanner.ScanAll(ctx)
}

// TriggerSearch runs one scan for one search, with a short per-search
// cooldown so repeated manual triggers don't hammer the marketplace.
func (s *Scheduler) TriggerSearch(ctx context.Context, searchID string) (scanner.Result, error) {
	key := searchKeyPrefix + searchID
	ok, err := s.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), searchCooldown).Result()
	if err != nil {
		log.Printf("[scheduler] Cooldown check unavailable (%v) — proceeding without it", err)
	} else if !ok {
		return scanner.Result{SearchID: searchID}, ErrCooldown
	}

	return s.scanner.ScanSearch(ctx, searchID)
}
