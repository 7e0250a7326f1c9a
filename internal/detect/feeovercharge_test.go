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

func TestSettlementFeeOvercharge_FlagsAboveCeiling(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		Settlements: []domain.Settlement{
			{SettlementID: "ST1", Amount: decimal.NewFromInt(100), Fees: decimal.NewFromInt(25), Currency: "USD"},
			{SettlementID: "ST2", Amount: decimal.NewFromInt(100), Fees: decimal.NewFromInt(10), Currency: "USD"},
		},
	}

	results := SettlementFeeOvercharge(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyFeeOvercharge, results[0].AnomalyType)
	require.True(results[0].EstimatedValue.Equal(decimal.NewFromInt(7)))
	require.Equal(0.90, results[0].Confidence)
}

func TestSettlementFeeOvercharge_NoneBelowCeiling(t *testing.T) {
	require := require.New(t)
	cfg := domain.DefaultConfig()
	s := Snapshot{
		Now: time.Now(),
		Settlements: []domain.Settlement{
			{SettlementID: "ST1", Amount: decimal.NewFromInt(100), Fees: decimal.NewFromInt(18)},
		},
	}
	require.Empty(SettlementFeeOvercharge(s, cfg))
}
