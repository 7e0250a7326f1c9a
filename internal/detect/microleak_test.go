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

func TestMicroLeakPattern_FlagsRecurringSmallFeeOvercharges(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	var events []domain.FinancialEvent
	for i := 0; i < 60; i++ {
		events = append(events, domain.FinancialEvent{
			EventID:    "F" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
			SKU:        "SKU1",
			EventType:  domain.EventTypeFee,
			Amount:     decimal.NewFromFloat(0.50),
			Currency:   "USD",
			PostedDate: now,
		})
	}

	s := Snapshot{Now: now, FinancialEvents: events}
	results := MicroLeakPattern(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyMicroLeakPattern, results[0].AnomalyType)
	require.True(results[0].EstimatedValue.Equal(decimal.NewFromFloat(30)))
}

func TestMicroLeakPattern_BelowOccurrenceThresholdIsNotFlagged(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	var events []domain.FinancialEvent
	for i := 0; i < 10; i++ {
		events = append(events, domain.FinancialEvent{
			EventID:    "F" + string(rune('a'+i)),
			SKU:        "SKU1",
			EventType:  domain.EventTypeFee,
			Amount:     decimal.NewFromFloat(0.50),
			PostedDate: now,
		})
	}

	s := Snapshot{Now: now, FinancialEvents: events}
	require.Empty(MicroLeakPattern(s, cfg))
}

func TestMicroLeakPattern_DimensionalWeightVariance(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	var entries []domain.InventoryLedgerEntry
	for i := 0; i < 25; i++ {
		entries = append(entries, domain.InventoryLedgerEntry{
			EventID:      "E" + string(rune('a'+i)),
			SKU:          "SKU2",
			EventDate:    now,
			DimWeight:    decimal.NewFromFloat(4.0),
			ActualWeight: decimal.NewFromFloat(1.5),
			HasDimWeight: true,
		})
	}

	s := Snapshot{Now: now, InventoryLedger: entries}
	results := MicroLeakPattern(s, cfg)
	require.Len(results, 1)
	require.Equal(0.85, results[0].Confidence)
}
