package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"agrimarket/internal/auth"
	"agrimarket/internal/commodity"
	"agrimarket/internal/models"
	"agrimarket/internal/store"
)

// SyncCoordinator owns the at-most-one-in-flight and cooldown guards for
// sync passes. State is per process; two processes sharing a database can
// still sync concurrently, the store's upsert keeps that safe.
type SyncCoordinator struct {
	mu       sync.Mutex
	running  bool
	lastDone time.Time
	cooldown time.Duration
	now      func() time.Time
}

func NewSyncCoordinator(cooldown time.Duration) *SyncCoordinator {
	return &SyncCoordinator{cooldown: cooldown, now: time.Now}
}

// TryBegin reports whether a new pass may start. False while a pass is in
// flight or within the cooldown window of the last completed pass.
func (c *SyncCoordinator) TryBegin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	if !c.lastDone.IsZero() && c.now().Sub(c.lastDone) < c.cooldown {
		return false
	}
	c.running = true
	return true
}

// Finish returns to Idle and re-anchors the cooldown, regardless of how
// the pass went.
func (c *SyncCoordinator) Finish() {
	c.mu.Lock()
	c.running = false
	c.lastDone = c.now()
	c.mu.Unlock()
}

func (c *SyncCoordinator) Status() (running bool, lastDone time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running, c.lastDone
}

type SyncSummary struct {
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Syncer runs full passes over the commodity x market grid.
type Syncer struct {
	reconciler *Reconciler
	cache      PriceCache
	coord      *SyncCoordinator
	now        func() time.Time
}

func NewSyncer(reconciler *Reconciler, cache PriceCache, coord *SyncCoordinator) *Syncer {
	return &Syncer{reconciler: reconciler, cache: cache, coord: coord, now: time.Now}
}

func (s *Syncer) Coordinator() *SyncCoordinator { return s.coord }

// SyncAll reconciles every supported (commodity, market) pair once.
// Re-entrant calls and calls within the cooldown window return a zero
// summary without touching the network. A pair failure is counted and the
// pass continues; a missing principal aborts the whole pass.
func (s *Syncer) SyncAll(ctx context.Context, p *auth.Principal) SyncSummary {
	var sum SyncSummary
	if !s.coord.TryBegin() {
		log.Println("[sync] pass already running or within cooldown, nothing started")
		return sum
	}
	started := s.now()
	defer func() {
		s.coord.Finish()
		s.recordRun(p, started, sum)
	}()

	log.Printf("[sync] pass started (%d commodities x %d markets)",
		len(commodity.Supported), len(commodity.Markets))

	for _, c := range commodity.Supported {
		for _, m := range commodity.Markets {
			res, err := s.reconcileSafe(ctx, p, c, m, started)
			if err != nil {
				if errors.Is(err, store.ErrAuthenticationRequired) {
					log.Println("[sync] caller not authenticated, aborting pass")
					return sum
				}
				log.Printf("[sync] %s/%s: %v", c, m, err)
				sum.Errors++
				continue
			}
			if res.Outcome == OutcomeWritten {
				log.Printf("[sync] %s/%s: retail %.2f wholesale %.2f", c, m, res.Retail, res.Wholesale)
				sum.Success++
			} else {
				sum.Skipped++
			}
		}
	}

	log.Printf("[sync] pass finished: %d written, %d skipped, %d errors",
		sum.Success, sum.Skipped, sum.Errors)
	return sum
}

// reconcileSafe keeps a panicking pair from taking down the rest of the
// pass.
func (s *Syncer) reconcileSafe(ctx context.Context, p *auth.Principal, c, m string, asOf time.Time) (res PairResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pair panicked: %v", r)
		}
	}()
	return s.reconciler.ReconcileOne(ctx, p, c, m, asOf)
}

func (s *Syncer) recordRun(p *auth.Principal, started time.Time, sum SyncSummary) {
	entry := &models.SyncLog{
		Success:    sum.Success,
		Skipped:    sum.Skipped,
		Errors:     sum.Errors,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if p != nil {
		entry.TriggeredBy = p.Subject
	}
	if err := s.cache.InsertSyncLog(p, entry); err != nil {
		log.Printf("[sync] failed to record run: %v", err)
	}
}
