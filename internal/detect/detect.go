// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package detect runs the six anomaly-detector algorithm families over a
// seller's ingested snapshot (spec.md §4.5). Every family is a pure
// function of (Snapshot, Constants); isolation between families is
// enforced by the Engine, which recovers a panicking family and treats it
// as an empty result rather than letting one bad detector abort the
// others — grounded on the teacher's narrow per-concern package boundaries
// (pkg/auction, pkg/settlement, pkg/rtb each own one slice of business
// logic callable independently of the others).
package detect

import (
	"strconv"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/pkg/log"
)

// Snapshot is the ingested data one run of the detection engine sees. All
// slices are the repository's read of a single SyncRun's ingestion, so
// reads are consistent with the end of that ingestion (spec.md §4.2).
type Snapshot struct {
	SellerID              string
	SyncID                string
	Now                   time.Time
	Orders                []domain.Order
	Shipments             []domain.Shipment
	Returns               []domain.Return
	Settlements           []domain.Settlement
	InventoryLedger       []domain.InventoryLedgerEntry
	FinancialEvents       []domain.FinancialEvent
}

// Family is one detector algorithm family's entry point.
type Family func(s Snapshot, cfg domain.Config) []domain.DetectionResult

// Engine runs every family and merges their output.
type Engine struct {
	Logger   log.Logger
	families map[string]Family
	seq      *sequence
}

// NewEngine returns an Engine wired with the six spec.md §4.5 families.
func NewEngine(logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NoOp()
	}
	return &Engine{
		Logger: logger,
		seq:    newSequence(),
		families: map[string]Family{
			"inbound_shipment_gap": InboundShipmentGap,
			"partial_refund_gap":   PartialRefundGap,
			"fee_overcharge":       SettlementFeeOvercharge,
			"fee_drift_trend":      FeeDriftTrend,
			"cross_entity_gaps":    CrossEntityCorrelation,
			"micro_leak_pattern":   MicroLeakPattern,
		},
	}
}

// Detect runs every family, isolating one family's panic or empty-on-error
// behavior from the others (spec.md §7: "detection-algorithm failures are
// isolated"), and fills DetectionID/SellerID/SyncID on every result.
func (e *Engine) Detect(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	var out []domain.DetectionResult
	for name, family := range e.families {
		results := e.runFamily(name, family, s, cfg)
		for i := range results {
			results[i].SellerID = s.SellerID
			results[i].SyncID = s.SyncID
			if results[i].DetectionID == "" {
				results[i].DetectionID = e.detectionID(s.SyncID, results[i])
			}
		}
		out = append(out, results...)
	}
	return out
}

func (e *Engine) runFamily(name string, family Family, s Snapshot, cfg domain.Config) (results []domain.DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("detect: family panicked, isolating",
				log.String("family", name))
			results = nil
		}
	}()
	return family(s, cfg)
}

func (e *Engine) detectionID(syncID string, d domain.DetectionResult) string {
	return syncID + ":" + string(d.AnomalyType) + ":" + e.seq.next()
}

// sequence hands out a monotonically increasing suffix so two detections
// emitted in the same sync don't collide; it never participates in the
// determinism invariant (spec.md §8.3 is multiset equality over detection
// *content*, not over generated IDs).
type sequence struct {
	ch chan int
}

func newSequence() *sequence {
	s := &sequence{ch: make(chan int, 1)}
	s.ch <- 0
	return s
}

func (s *sequence) next() string {
	n := <-s.ch
	n++
	s.ch <- n
	return strconv.Itoa(n)
}
