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

// buildDriftSettlements builds one settlement per day over `days` days,
// ramping the per-unit fee linearly from startRate to endRate so the drift
// accrues gradually rather than as a single abrupt jump.
func buildDriftSettlements(start time.Time, days int, startRate, endRate float64, unitsPerDay int) []domain.Settlement {
	var out []domain.Settlement
	for day := 0; day < days; day++ {
		frac := float64(day) / float64(days-1)
		rate := startRate + (endRate-startRate)*frac
		fees := decimal.NewFromFloat(rate * float64(unitsPerDay))
		out = append(out, domain.Settlement{
			SettlementID:   "ST" + string(rune('a'+day%26)) + string(rune('0'+day/26)),
			SKU:            "SKU1",
			SettlementDate: start.AddDate(0, 0, day),
			Amount:         decimal.NewFromInt(1000),
			Fees:           fees,
			UnitsSold:      unitsPerDay,
			Currency:       "USD",
		})
	}
	return out
}

func TestFeeDriftTrend_DetectsSustainedIncrease(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	start := now.AddDate(0, 0, -91)
	cfg := domain.DefaultConfig()

	settlements := buildDriftSettlements(start, 91, 2.50, 2.80, 3)
	s := Snapshot{Now: now, Settlements: settlements}

	results := FeeDriftTrend(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyFeeDriftTrend, results[0].AnomalyType)
	require.True(results[0].EstimatedValue.IsPositive())
	require.GreaterOrEqual(results[0].Confidence, minConfidence)
	driftPct, ok := results[0].Evidence["driftPct"].(float64)
	require.True(ok)
	require.GreaterOrEqual(driftPct, 5.0)
}

func TestFeeDriftTrend_FlatHistoryProducesNoDrift(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	start := now.AddDate(0, 0, -91)
	cfg := domain.DefaultConfig()

	settlements := buildDriftSettlements(start, 91, 2.50, 2.50, 3)
	s := Snapshot{Now: now, Settlements: settlements}
	require.Empty(FeeDriftTrend(s, cfg))
}

func TestFeeDriftTrend_InsufficientHistoryIsSkipped(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	settlements := buildDriftSettlements(now.AddDate(0, 0, -10), 10, 2.50, 3.50, 3)
	s := Snapshot{Now: now, Settlements: settlements}
	require.Empty(FeeDriftTrend(s, cfg))
}
