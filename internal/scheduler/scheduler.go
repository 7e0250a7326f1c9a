// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scheduler periodically triggers a SyncRun for every seller whose
// last completed run is older than the configured minimum interval
// (spec.md §4.9). Built on time.Ticker plus a plain time.Sleep stagger gate
// between starts inside one tick — no ecosystem rate-limiter is wired here
// (see DESIGN.md). Per-seller failures are logged and isolated; one
// seller's trigger error never stops the tick from considering the rest.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/luxfi/reimburse/internal/syncjob"
	"github.com/luxfi/reimburse/pkg/log"
)

// stagger is the minimum delay between two Start calls within one tick
// (spec.md §4.9: "per-seller delay between starts >= 2s to avoid burst").
const stagger = 2 * time.Second

// dueLookback bounds how far back through a seller's SyncRun history due()
// scans to find the most recent completed run. Sellers that sync roughly
// on MinIntervalBetweenSyncs cadence will have their last completed run
// within the first handful of entries; this is generous headroom for a
// seller with several failed/cancelled attempts in between.
const dueLookback = 20

// SellerLister enumerates the sellers the scheduler should consider on
// each tick. A thin interface so the scheduler never depends on how
// sellers are actually stored.
type SellerLister interface {
	ActiveSellerIDs(ctx context.Context) ([]string, error)
}

// Scheduler drives Manager.Start on a fixed tick.
type Scheduler struct {
	manager *syncjob.Manager
	sellers SellerLister
	repo    repository.Repository
	cfg     domain.Config
	logger  log.Logger
}

// New builds a Scheduler. A nil logger defaults to a no-op. repo is
// queried in due() for each seller's last completed SyncRun.
func New(manager *syncjob.Manager, sellers SellerLister, repo repository.Repository, cfg domain.Config, logger log.Logger) *Scheduler {
	if logger == nil {
		logger = log.NoOp()
	}
	return &Scheduler{
		manager: manager,
		sellers: sellers,
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, ticking every cfg.SyncInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SyncInterval())
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick considers every active seller once, staggering Start calls by at
// least `stagger` to avoid a thundering herd against the Marketplace
// Client and Repository.
func (s *Scheduler) tick(ctx context.Context) {
	sellerIDs, err := s.sellers.ActiveSellerIDs(ctx)
	if err != nil {
		s.logger.Error("scheduler: failed to list sellers", log.Error(err))
		return
	}

	for _, sellerID := range sellerIDs {
		if ctx.Err() != nil {
			return
		}
		if !s.due(ctx, sellerID) {
			s.logger.Debug("scheduler: skip, not due", log.String("sellerId", sellerID))
			continue
		}

		syncID, err := s.manager.Start(ctx, sellerID)
		switch {
		case err == nil:
			s.logger.Info("scheduler: triggered sync",
				log.String("sellerId", sellerID), log.String("syncId", syncID))
		case errors.Is(err, syncjob.ErrAlreadyRunning):
			s.logger.Debug("scheduler: skip, already running", log.String("sellerId", sellerID))
		default:
			s.logger.Error("scheduler: failed to trigger sync",
				log.String("sellerId", sellerID), log.Error(err))
		}

		time.Sleep(stagger)
	}
}

// due reports whether sellerId's last *completed* SyncRun is older than
// MinIntervalBetweenSyncs (spec.md §4.9: "whose last completed SyncRun is
// older than MIN_INTERVAL"). A seller with no completed run yet — whether
// never synced, or every attempt so far failed or was cancelled — is
// always due; a failed sync must not cost the seller a full interval of
// silence before it's retried.
func (s *Scheduler) due(ctx context.Context, sellerID string) bool {
	runs, err := s.repo.ListSyncRuns(ctx, sellerID, dueLookback, 0)
	if err != nil {
		s.logger.Error("scheduler: failed to list sync runs", log.String("sellerId", sellerID), log.Error(err))
		return false
	}
	for _, run := range runs {
		if run.Status != domain.SyncCompleted {
			continue
		}
		if run.CompletedAt == nil {
			return true
		}
		return time.Since(*run.CompletedAt) >= s.cfg.MinIntervalBetweenSyncs()
	}
	return true
}
