// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memstore is the reference Repository implementation the core is
// tested against; a production adapter over a real database is out of
// scope (spec.md §1) and left to the host application.
//
// Grounded on the teacher's pkg/settlement.BudgetManager (a
// sync.RWMutex-guarded map keyed by ID, every mutation funneled through
// manager methods) and pkg/storage.Storage's pluggable in-memory backend.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/repository"
)

type entityKey struct {
	sellerID string
	kind     domain.RecordKind
	entityID string
}

// Store is an in-process Repository. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	entities map[entityKey]repository.Entity
	runs     map[string]domain.SyncRun // by syncId
	results  map[string]domain.DetectionResult
	scores   map[string]domain.CertaintyScore // by detectionId
	briefs   map[string]domain.Brief          // by detectionId
}

var _ repository.Repository = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		entities: make(map[entityKey]repository.Entity),
		runs:     make(map[string]domain.SyncRun),
		results:  make(map[string]domain.DetectionResult),
		scores:   make(map[string]domain.CertaintyScore),
		briefs:   make(map[string]domain.Brief),
	}
}

func (s *Store) Upsert(ctx context.Context, sellerID string, kind domain.RecordKind, records []repository.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		key := entityKey{sellerID: sellerID, kind: kind, entityID: rec.EntityID()}
		s.entities[key] = rec
	}
	return nil
}

func (s *Store) ReadRange(ctx context.Context, sellerID string, kind domain.RecordKind, window repository.Window) ([]repository.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []repository.Entity
	for key, rec := range s.entities {
		if key.sellerID != sellerID || key.kind != kind {
			continue
		}
		if !inWindow(rec, window) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func inWindow(rec repository.Entity, window repository.Window) bool {
	if window.Start.IsZero() && window.End.IsZero() {
		return true
	}
	var t time.Time
	switch r := rec.(type) {
	case domain.Order:
		t = r.OrderDate
	case domain.Shipment:
		t = r.ShippedDate
	case domain.Return:
		t = r.ReturnedDate
	case domain.Settlement:
		t = r.SettlementDate
	case domain.InventoryLedgerEntry:
		t = r.EventDate
	case domain.FinancialEvent:
		t = r.PostedDate
	default:
		return true
	}
	if !window.Start.IsZero() && t.Before(window.Start) {
		return false
	}
	if !window.End.IsZero() && t.After(window.End) {
		return false
	}
	return true
}

func (s *Store) CreateSyncRun(ctx context.Context, run domain.SyncRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.runs {
		if existing.SellerID == run.SellerID && existing.Active() {
			return repository.ErrConflict
		}
	}
	s.runs[run.SyncID] = run
	return nil
}

func (s *Store) UpdateSyncRun(ctx context.Context, run domain.SyncRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.SyncID]; !ok {
		return repository.ErrNotFound
	}
	s.runs[run.SyncID] = run
	return nil
}

func (s *Store) ReadActiveSyncRun(ctx context.Context, sellerID string) (*domain.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.SellerID == sellerID && run.Active() {
			r := run
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListSyncRuns(ctx context.Context, sellerID string, limit, offset int) ([]domain.SyncRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SyncRun
	for _, run := range s.runs {
		if run.SellerID == sellerID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return page(out, limit, offset), nil
}

func (s *Store) InsertDetectionResults(ctx context.Context, syncID string, results []domain.DetectionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.results[r.DetectionID] = r
	}
	return nil
}

func (s *Store) ListDetectionResults(ctx context.Context, sellerID string, kind *domain.AnomalyType, limit, offset int) ([]domain.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DetectionResult
	for _, r := range s.results {
		if r.SellerID != sellerID {
			continue
		}
		if kind != nil && r.AnomalyType != *kind {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscoveryDate.After(out[j].DiscoveryDate) })
	return page(out, limit, offset), nil
}

func (s *Store) GetDetectionResult(ctx context.Context, detectionID string) (*domain.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[detectionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) UpsertCertaintyScore(ctx context.Context, score domain.CertaintyScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.DetectionID] = score
	return nil
}

func (s *Store) UpsertBrief(ctx context.Context, brief domain.Brief) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.briefs[brief.DetectionID] = brief
	return nil
}

func (s *Store) GetBrief(ctx context.Context, detectionID string) (*domain.Brief, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.briefs[detectionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

// SellerIDs returns every distinct sellerId the store has ever seen a
// record for. Not part of repository.Repository; it exists so an
// in-process scheduler (internal/scheduler.SellerLister) has something to
// enumerate without the host application wiring its own seller directory.
func (s *Store) SellerIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range s.entities {
		seen[key.sellerID] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
