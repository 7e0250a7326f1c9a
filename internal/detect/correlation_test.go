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

func TestCrossEntityCorrelation_ReturnWithoutInventoryAdjustment(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		Returns: []domain.Return{
			{ReturnID: "R1", OrderID: "O1", SKU: "SKU1", RefundAmount: decimal.NewFromInt(40), ReturnedDate: now.AddDate(0, 0, -5), Currency: "USD"},
		},
	}

	results := CrossEntityCorrelation(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyOrderReturnInventoryGap, results[0].AnomalyType)
}

func TestCrossEntityCorrelation_ReturnWithInventoryAdjustmentIsNotFlagged(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		Returns: []domain.Return{
			{ReturnID: "R1", OrderID: "O1", SKU: "SKU1", RefundAmount: decimal.NewFromInt(40), ReturnedDate: now.AddDate(0, 0, -5)},
		},
		InventoryLedger: []domain.InventoryLedgerEntry{
			{EventID: "E1", SKU: "SKU1", EventDate: now.AddDate(0, 0, -4), EventType: "return_restock", Quantity: 1},
		},
	}

	require.Empty(CrossEntityCorrelation(s, cfg))
}

func TestCrossEntityCorrelation_InboundReceiptWithoutInventoryIncrease(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		Shipments: []domain.Shipment{
			{ShipmentID: "S1", SKU: "SKU1", ExpectedQty: 10, ReceivedQty: 5, UnitCost: decimal.NewFromInt(10), ShippedDate: now.AddDate(0, 0, -3), Currency: "USD"},
		},
	}

	results := CrossEntityCorrelation(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyInboundInventoryGap, results[0].AnomalyType)
}

func TestCrossEntityCorrelation_FeeWithoutCancellationReversal(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		FinancialEvents: []domain.FinancialEvent{
			{EventID: "F1", OrderID: "O1", EventType: domain.EventTypeFee, Amount: decimal.NewFromInt(15), Currency: "USD", PostedDate: now.AddDate(0, 0, -10)},
			{EventID: "F2", OrderID: "O1", EventType: domain.EventTypeCancellation, Amount: decimal.Zero, PostedDate: now.AddDate(0, 0, -8)},
		},
	}

	results := CrossEntityCorrelation(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyFeeCancellationGap, results[0].AnomalyType)
}

func TestCrossEntityCorrelation_FeeReversedIsNotFlagged(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		FinancialEvents: []domain.FinancialEvent{
			{EventID: "F1", OrderID: "O1", EventType: domain.EventTypeFee, Amount: decimal.NewFromInt(15), PostedDate: now.AddDate(0, 0, -10)},
			{EventID: "F2", OrderID: "O1", EventType: domain.EventTypeCancellation, PostedDate: now.AddDate(0, 0, -8)},
			{EventID: "F3", OrderID: "O1", EventType: domain.EventTypeFeeReversal, Amount: decimal.NewFromInt(15), PostedDate: now.AddDate(0, 0, -7)},
		},
	}

	require.Empty(CrossEntityCorrelation(s, cfg))
}

func TestCrossEntityCorrelation_LossEventWithoutReimbursementCase(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	cfg := domain.DefaultConfig()

	s := Snapshot{
		Now: now,
		FinancialEvents: []domain.FinancialEvent{
			{EventID: "F1", SKU: "SKU1", EventType: domain.EventTypeLost, Amount: decimal.NewFromInt(50), Currency: "USD", PostedDate: now.AddDate(0, 0, -10)},
		},
	}

	results := CrossEntityCorrelation(s, cfg)
	require.Len(results, 1)
	require.Equal(domain.AnomalyReimbursementChainGap, results[0].AnomalyType)
}
