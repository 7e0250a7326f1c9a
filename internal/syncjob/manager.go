// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package syncjob implements the Sync Job Manager (spec.md §4.8): the
// top-level state machine that takes a seller from "start requested"
// through ingestion, detection, and scoring/brief generation, publishing
// progress events at every stage boundary.
//
// The in-process active-run registry and the per-seller subscriber set are
// the only shared mutable state in the whole module (spec.md §5/§9); both
// live behind the one sync.Mutex on Manager, grounded directly on the
// teacher's pkg/settlement.BudgetManager (a mutex-guarded map-of-ID with
// every mutation funneled through manager methods, never an ad hoc lock
// elsewhere).
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/reimburse/internal/brief"
	"github.com/luxfi/reimburse/internal/detect"
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/ingest"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/metrics"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/luxfi/reimburse/internal/score"
	"github.com/luxfi/reimburse/pkg/ids"
	"github.com/luxfi/reimburse/pkg/log"
)

// activeRun is the registry entry for one in-flight SyncRun.
type activeRun struct {
	syncID          string
	sellerID        string
	cancelRequested bool
	startedAt       time.Time
}

// Manager runs SyncRuns to completion, one at a time per seller, up to a
// global concurrency cap (spec.md §5 GLOBAL_SYNC_CONCURRENCY).
type Manager struct {
	mu     sync.Mutex
	active map[string]*activeRun // sellerID -> run
	bus    *bus

	repo    repository.Repository
	ingestS *ingest.Stage
	engine  *detect.Engine
	cfg     domain.Config
	logger  log.Logger
	metrics *metrics.Metrics

	sem chan struct{} // global concurrency semaphore
}

// New builds a Manager wired to repo, client (via an ingest.Stage), the
// detection Engine, cfg, and optional logger/metrics (nil is fine for
// either, defaulting to no-ops).
func New(client marketplace.Client, repo repository.Repository, cfg domain.Config, logger log.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = log.NoOp()
	}
	if m == nil {
		m = metrics.New()
	}
	concurrency := cfg.GlobalSyncConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Manager{
		active:  make(map[string]*activeRun),
		bus:     newBus(),
		repo:    repo,
		ingestS: ingest.New(client, repo, cfg, logger),
		engine:  detect.NewEngine(logger),
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sem:     make(chan struct{}, concurrency),
	}
}

// Start implements spec.md §4.8's start(sellerId): requires no existing
// run in {pending, running} for sellerId, inserts a pending SyncRun,
// enqueues its execution on a new goroutine, and returns the syncId
// immediately without waiting for it to run.
func (m *Manager) Start(ctx context.Context, sellerID string) (string, error) {
	m.mu.Lock()
	if existing, ok := m.active[sellerID]; ok {
		m.mu.Unlock()
		m.logger.Warn("syncjob: start rejected, run already active",
			log.String("sellerId", sellerID), log.String("syncId", existing.syncID))
		return "", ErrAlreadyRunning
	}

	syncID := ids.NewWithPrefix("sync")
	run := &activeRun{syncID: syncID, sellerID: sellerID, startedAt: time.Now()}
	m.active[sellerID] = run
	m.mu.Unlock()

	syncRun := domain.SyncRun{
		SyncID:    syncID,
		SellerID:  sellerID,
		Status:    domain.SyncPending,
		StartedAt: run.startedAt,
	}
	if err := m.repo.CreateSyncRun(ctx, syncRun); err != nil {
		m.mu.Lock()
		delete(m.active, sellerID)
		m.mu.Unlock()
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrAlreadyRunning
		}
		return "", fmt.Errorf("syncjob: create sync run: %w", err)
	}

	m.metrics.SyncsStarted.WithLabelValues(sellerID).Inc()
	m.publish(Event{Type: eventTypeSync, Status: statusStarted, SyncID: syncID, SellerID: sellerID})

	go m.execute(context.Background(), run)

	return syncID, nil
}

// Cancel implements spec.md §4.8's cancel(syncId): marks cancelRequested
// on the active run, if any, observed by m.execute at its next stage
// boundary. Cancellation never forces termination mid-upsert.
func (m *Manager) Cancel(syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.active {
		if run.syncID == syncID {
			run.cancelRequested = true
			return nil
		}
	}
	return ErrNotFound
}

// Subscribe registers the caller for sellerId's progress events. The
// returned unsubscribe func must be called when the caller is done
// listening (spec.md §6: late subscribers see only events after this
// call).
func (m *Manager) Subscribe(sellerID string) (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, unsub := m.bus.subscribe(sellerID)
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		unsub()
	}
}

func (m *Manager) publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus.publish(ev)
}

func (m *Manager) cancelRequested(sellerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.active[sellerID]
	return ok && run.cancelRequested
}

func (m *Manager) finish(sellerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, sellerID)
}

// execute is the SyncRun executor (spec.md §4.8): acquires the global
// concurrency slot, transitions pending -> running, runs Ingestion then
// Detection then Scoring/Brief per detection, and terminates in
// completed/failed/cancelled. It runs detached from the caller's request
// context; its own lifetime is bounded by cfg.SyncHardCap.
func (m *Manager) execute(parent context.Context, run *activeRun) {
	defer func() {
		<-m.sem
		m.finish(run.sellerID)
	}()
	m.sem <- struct{}{}

	ctx, cancel := context.WithTimeout(parent, m.cfg.SyncHardCap())
	defer cancel()

	syncRun := domain.SyncRun{
		SyncID:    run.syncID,
		SellerID:  run.sellerID,
		Status:    domain.SyncRunning,
		StartedAt: run.startedAt,
	}
	if err := m.repo.UpdateSyncRun(ctx, syncRun); err != nil {
		m.fail(ctx, syncRun, err)
		return
	}

	window := ingestWindow(m.cfg, run.startedAt)

	ingestStart := time.Now()
	counts, err := m.ingestS.Ingest(ctx, run.sellerID, window, run.syncID, func(kind domain.RecordKind, n int, kindErr error) {
		m.publish(Event{
			Type: eventTypeSync, Status: statusProgress, SyncID: run.syncID, SellerID: run.sellerID,
			Data: map[string]any{"kind": string(kind), "count": n, "error": errString(kindErr)},
		})
	})
	m.metrics.StageDuration.WithLabelValues("ingest").Observe(time.Since(ingestStart).Seconds())
	if err != nil {
		m.fail(ctx, syncRun, err)
		return
	}
	syncRun.Counts = counts

	if m.stopRequested(ctx, run, &syncRun) {
		return
	}

	detectStart := time.Now()
	snapshot, err := m.readSnapshot(ctx, run.sellerID, run.syncID, window)
	if err != nil {
		m.fail(ctx, syncRun, err)
		return
	}

	detections := m.engine.Detect(snapshot, m.cfg)
	m.metrics.StageDuration.WithLabelValues("detect").Observe(time.Since(detectStart).Seconds())
	m.metrics.DetectionsFound.Add(float64(len(detections)))
	m.publish(Event{
		Type: eventTypeDetection, Status: statusProgress, SyncID: run.syncID, SellerID: run.sellerID,
		Data: map[string]any{"count": len(detections)},
	})

	if err := m.repo.InsertDetectionResults(ctx, run.syncID, detections); err != nil {
		m.fail(ctx, syncRun, err)
		return
	}

	if m.stopRequested(ctx, run, &syncRun) {
		return
	}

	briefStart := time.Now()
	for _, d := range detections {
		if err := m.scoreAndBrief(ctx, run.sellerID, d); err != nil {
			m.logger.Warn("syncjob: score/brief failed for detection, continuing",
				log.String("detectionId", d.DetectionID), log.Error(err))
		}
	}
	m.metrics.StageDuration.WithLabelValues("score_brief").Observe(time.Since(briefStart).Seconds())

	now := time.Now()
	syncRun.Status = domain.SyncCompleted
	syncRun.CompletedAt = &now
	if err := m.repo.UpdateSyncRun(ctx, syncRun); err != nil {
		m.logger.Error("syncjob: failed to persist completed status", log.Error(err))
	}
	m.metrics.SyncsCompleted.WithLabelValues("completed").Inc()
	m.publish(Event{
		Type: eventTypeSync, Status: statusCompleted, SyncID: run.syncID, SellerID: run.sellerID,
		Data: map[string]any{"counts": syncRun.Counts},
	})
}

// stopRequested checks cancellation and the hard-cap deadline at a stage
// boundary (spec.md §5: "checked at stage boundaries, between batches,
// and on every I/O call"), transitioning and publishing as needed.
func (m *Manager) stopRequested(ctx context.Context, run *activeRun, syncRun *domain.SyncRun) bool {
	if m.cancelRequested(run.sellerID) {
		now := time.Now()
		syncRun.Status = domain.SyncCancelled
		syncRun.CompletedAt = &now
		_ = m.repo.UpdateSyncRun(ctx, *syncRun)
		m.metrics.SyncsCompleted.WithLabelValues("cancelled").Inc()
		m.publish(Event{Type: eventTypeSync, Status: statusCancelled, SyncID: run.syncID, SellerID: run.sellerID})
		return true
	}
	if ctx.Err() != nil {
		m.fail(ctx, *syncRun, ErrDeadlineExceeded)
		return true
	}
	return false
}

func (m *Manager) fail(ctx context.Context, syncRun domain.SyncRun, cause error) {
	var reason error
	switch {
	case ctx.Err() != nil:
		reason = ErrDeadlineExceeded
	case cause != nil:
		reason = cause
	default:
		reason = ErrInternal
	}
	msg := reason.Error()
	now := time.Now()
	syncRun.Status = domain.SyncFailed
	syncRun.CompletedAt = &now
	syncRun.Error = &msg
	// UpdateSyncRun is best-effort here; ctx may already be past its
	// deadline, so the write uses a context detached from that
	// cancellation and its error is ignored.
	_ = m.repo.UpdateSyncRun(context.WithoutCancel(ctx), syncRun)
	m.metrics.SyncsCompleted.WithLabelValues("failed").Inc()
	m.publish(Event{
		Type: eventTypeSync, Status: statusFailed, SyncID: syncRun.SyncID, SellerID: syncRun.SellerID,
		Data: map[string]any{"error": msg},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ingestWindow reaches back the longest of FeeDriftMinHistoryDays (fee
// drift), CorrelationLookbackDays (cross-entity correlation) and the
// deadline window, ending at now.
func ingestWindow(cfg domain.Config, now time.Time) repository.Window {
	lookback := cfg.FeeDriftMinHistoryDays
	if cfg.CorrelationLookbackDays > lookback {
		lookback = cfg.CorrelationLookbackDays
	}
	if domain.DeadlineDays > lookback {
		lookback = domain.DeadlineDays
	}
	return repository.Window{
		Start: now.AddDate(0, 0, -lookback),
		End:   now,
	}
}

// readSnapshot assembles a detect.Snapshot from the repository's view of
// every record kind for sellerId within window.
func (m *Manager) readSnapshot(ctx context.Context, sellerID, syncID string, window repository.Window) (detect.Snapshot, error) {
	snapshot := detect.Snapshot{SellerID: sellerID, SyncID: syncID, Now: time.Now()}

	orders, err := readRangeAs[domain.Order](ctx, m.repo, sellerID, domain.KindOrder, window)
	if err != nil {
		return snapshot, err
	}
	snapshot.Orders = orders

	shipments, err := readRangeAs[domain.Shipment](ctx, m.repo, sellerID, domain.KindShipment, window)
	if err != nil {
		return snapshot, err
	}
	snapshot.Shipments = shipments

	returns, err := readRangeAs[domain.Return](ctx, m.repo, sellerID, domain.KindReturn, window)
	if err != nil {
		return snapshot, err
	}
	snapshot.Returns = returns

	settlements, err := readRangeAs[domain.Settlement](ctx, m.repo, sellerID, domain.KindSettlement, window)
	if err != nil {
		return snapshot, err
	}
	snapshot.Settlements = settlements

	ledger, err := readRangeAs[domain.InventoryLedgerEntry](ctx, m.repo, sellerID, domain.KindInventoryLedger, window)
	if err != nil {
		return snapshot, err
	}
	snapshot.InventoryLedger = ledger

	events, err := readRangeAs[domain.FinancialEvent](ctx, m.repo, sellerID, domain.KindFinancialEvent, window)
	if err != nil {
		return snapshot, err
	}
	snapshot.FinancialEvents = events

	return snapshot, nil
}

// readRangeAs reads one kind's records and type-asserts each into T,
// skipping anything the repository hands back in an unexpected shape
// rather than failing the whole snapshot. A free function, not a method:
// Go methods cannot carry their own type parameters.
func readRangeAs[T any](ctx context.Context, repo repository.Repository, sellerID string, kind domain.RecordKind, window repository.Window) ([]T, error) {
	entities, err := repo.ReadRange(ctx, sellerID, kind, window)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// scoreAndBrief runs the Certainty Scorer then the Brief Generator for one
// detection and persists both, per spec.md §4.8 ("executor ... calls ...
// Scorer and Brief Generator per detection").
func (m *Manager) scoreAndBrief(ctx context.Context, sellerID string, d domain.DetectionResult) error {
	claim := score.Claim{
		DetectionID:           d.DetectionID,
		AnomalyType:           d.AnomalyType,
		EstimatedValue:        d.EstimatedValue,
		AnomalyScore:          d.Confidence,
		EvidenceSummary:       fmt.Sprintf("%v", d.Evidence),
		HasProofBundle:        false,
		StructuredDataPresent: len(d.Evidence) > 0,
		Evidence:              d.Evidence,
	}
	cs, err := score.Score(claim, 1, nil)
	if err != nil {
		return fmt.Errorf("syncjob: score detection %s: %w", d.DetectionID, err)
	}
	if err := m.repo.UpsertCertaintyScore(ctx, cs); err != nil {
		return fmt.Errorf("syncjob: persist certainty score %s: %w", d.DetectionID, err)
	}

	briefClaim := brief.Claim{
		SellerID:    sellerID,
		DetectionID: d.DetectionID,
		AnomalyType: d.AnomalyType,
		OrderID:     stringField(d.Evidence, "orderId"),
		ShipmentID:  stringField(d.Evidence, "shipmentId"),
		SKU:         stringField(d.Evidence, "sku"),
		ASIN:        stringField(d.Evidence, "asin"),
		Quantity:    intField(d.Evidence, "missingQty"),
		Amount:      d.EstimatedValue.String(),
		Currency:    d.Currency,
		Date:        d.DiscoveryDate.Format("2006-01-02"),
	}
	b, err := brief.Generate(briefClaim, d.Evidence, nil, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("syncjob: generate brief %s: %w", d.DetectionID, err)
	}
	if err := m.repo.UpsertBrief(ctx, b); err != nil {
		return fmt.Errorf("syncjob: persist brief %s: %w", d.DetectionID, err)
	}
	return nil
}

func stringField(evidence map[string]any, key string) string {
	if v, ok := evidence[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intField(evidence map[string]any, key string) int {
	if v, ok := evidence[key]; ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}
