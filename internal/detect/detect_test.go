// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"testing"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEngine_Detect_FillsIdentifiersAndDeduplicatesIDs(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	engine := NewEngine(nil)

	s := Snapshot{
		SellerID: "S1",
		SyncID:   "sync1",
		Now:      now,
		Shipments: []domain.Shipment{
			{ShipmentID: "SH1", ExpectedQty: 10, ReceivedQty: 0, MissingQty: 10, UnitCost: decimal.NewFromInt(2)},
			{ShipmentID: "SH2", ExpectedQty: 5, ReceivedQty: 0, MissingQty: 5, UnitCost: decimal.NewFromInt(2)},
		},
	}

	results := engine.Detect(s, domain.DefaultConfig())
	require.Len(results, 2)

	seen := make(map[string]bool)
	for _, r := range results {
		require.Equal("S1", r.SellerID)
		require.Equal("sync1", r.SyncID)
		require.NotEmpty(r.DetectionID)
		require.False(seen[r.DetectionID], "detection IDs must be unique within a run")
		seen[r.DetectionID] = true
	}
}

// panicky is a Family that always panics, used to prove one family's
// failure cannot take down the others (spec.md §7).
func panicky(Snapshot, domain.Config) []domain.DetectionResult {
	panic("boom")
}

func TestEngine_RunFamily_IsolatesPanicFromOtherFamilies(t *testing.T) {
	require := require.New(t)
	engine := NewEngine(nil)
	engine.families = map[string]Family{
		"panics": panicky,
		"ok":     InboundShipmentGap,
	}

	s := Snapshot{
		SellerID: "S1",
		SyncID:   "sync1",
		Now:      time.Now(),
		Shipments: []domain.Shipment{
			{ShipmentID: "SH1", ExpectedQty: 3, ReceivedQty: 0, MissingQty: 3, UnitCost: decimal.NewFromInt(1)},
		},
	}

	results := engine.Detect(s, domain.DefaultConfig())
	require.Len(results, 1)
	require.Equal(domain.AnomalyMissingInboundShipment, results[0].AnomalyType)
}
