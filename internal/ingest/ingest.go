// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ingest orchestrates the Marketplace Client and Repository:
// normalize, de-duplicate, chunk-upsert (spec.md §4.4). Concurrency:
// per-seller ingestion streams run one goroutine per record kind, fanned
// out and joined before Detection begins per spec.md §5; writes for a
// given (sellerId, entityKind) remain serialized into batched upserts by
// repository.Upsert itself.
//
// The "keep going on isolated page failure" shape is grounded on the
// ingestion-service pattern seen in the retrieved reference material
// (hash-based idempotency check, typed result struct, warn-and-continue
// when a downstream stage fails) — adapted here from file-hash idempotency
// to (sellerId, entityId) upsert idempotency, and from "reconciliation
// failed" to "one record kind failed".
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/luxfi/reimburse/pkg/log"
)

// ProgressFunc is called once per kind as its ingestion completes, so the
// Sync Job Manager can emit a progress event per spec.md §4.4 step 4.
type ProgressFunc func(kind domain.RecordKind, count int, err error)

// Stage wires a Marketplace Client and Repository together.
type Stage struct {
	Client     marketplace.Client
	Repository repository.Repository
	Config     domain.Config
	Logger     log.Logger
}

// New builds an ingestion Stage.
func New(client marketplace.Client, repo repository.Repository, cfg domain.Config, logger log.Logger) *Stage {
	if logger == nil {
		logger = log.NoOp()
	}
	return &Stage{Client: client, Repository: repo, Config: cfg, Logger: logger}
}

// kindFailure records one record kind's permanent failure so Ingest can
// decide, once every kind has finished, whether the whole SyncRun failed.
type kindFailure struct {
	kind domain.RecordKind
	err  error
}

// Ingest pulls every record kind for sellerId within window, normalizes
// and upserts it in batches. It does not write the SyncRun itself; it
// returns the accumulated Counts for the caller to record and, if every kind failed, an
// error (spec.md §4.4, §7: ingestion is fatal to the SyncRun only when all
// kinds fail; a partial failure yields partial counts and a warning).
func (s *Stage) Ingest(ctx context.Context, sellerID string, window repository.Window, syncID string, progress ProgressFunc) (domain.Counts, error) {
	var (
		mu       sync.Mutex
		counts   domain.Counts
		failures []kindFailure
		wg       sync.WaitGroup
	)

	for _, kind := range domain.AllKinds {
		kind := kind
		wg.Add(1)
		go func() {
			defer wg.Done()

			n, err := s.ingestKind(ctx, sellerID, kind, window)

			mu.Lock()
			if err != nil {
				failures = append(failures, kindFailure{kind: kind, err: err})
			} else {
				counts.Add(kind, n)
			}
			mu.Unlock()

			if progress != nil {
				progress(kind, n, err)
			}
		}()
	}
	wg.Wait()

	if len(failures) == len(domain.AllKinds) {
		return counts, fmt.Errorf("ingest: all record kinds failed, first error: %w", failures[0].err)
	}
	for _, f := range failures {
		s.Logger.Warn("ingest: kind failed, continuing with partial counts",
			log.String("kind", string(f.kind)), log.Error(f.err))
	}
	return counts, nil
}

// ingestKind pulls and upserts every page of one record kind.
func (s *Stage) ingestKind(ctx context.Context, sellerID string, kind domain.RecordKind, window repository.Window) (int, error) {
	total := 0
	batch := make([]repository.Entity, 0, s.Config.UpsertBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.Repository.Upsert(ctx, sellerID, kind, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	retry := marketplace.DefaultRetryConfig()
	retry.MaxAttempts = s.Config.MarketPageRetries
	retry.PerCallTimeout = s.Config.MarketPageTimeout()

	err := marketplace.FetchAllPages(ctx, s.Client, kind, sellerID, window, retry, func(page marketplace.Page) error {
		for _, rec := range page.Records {
			batch = append(batch, normalize(kind, rec))
			if len(batch) >= s.Config.UpsertBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// normalize derives computed fields from raw upstream values. Shipment's
// missingQty is never trusted from upstream (spec.md §3, §4.4 step 2).
func normalize(kind domain.RecordKind, rec repository.Entity) repository.Entity {
	if kind != domain.KindShipment {
		return rec
	}
	sh, ok := rec.(domain.Shipment)
	if !ok {
		return rec
	}
	sh.MissingQty = sh.ExpectedQty - sh.ReceivedQty
	if sh.MissingQty < 0 {
		sh.MissingQty = 0
	}
	return sh
}
