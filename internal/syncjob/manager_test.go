// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package syncjob

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/luxfi/reimburse/internal/repository/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeClient returns one page of a single shipment with a missing-qty gap
// for kind == KindShipment, and an empty page for every other kind.
type fakeClient struct{}

func (fakeClient) FetchPage(_ context.Context, kind domain.RecordKind, sellerID string, _ repository.Window, cursor string) (marketplace.Page, error) {
	if cursor != "" || kind != domain.KindShipment {
		return marketplace.Page{}, nil
	}
	sh := domain.Shipment{
		SellerID:    sellerID,
		ShipmentID:  "SH1",
		OrderID:     "O1",
		SKU:         "SKU1",
		ExpectedQty: 10,
		ReceivedQty: 4,
		UnitCost:    decimal.NewFromInt(5),
		Currency:    "USD",
		ShippedDate: time.Now().AddDate(0, 0, -10),
	}
	return marketplace.Page{Records: []repository.Entity{sh}}, nil
}

func waitForTerminal(t *testing.T, events <-chan Event, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			switch ev.Status {
			case statusCompleted, statusFailed, statusCancelled:
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal sync event")
		}
	}
}

func TestManager_StartRunsToCompletionAndProducesBriefs(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := memstore.New()
	cfg := domain.DefaultConfig()

	m := New(fakeClient{}, store, cfg, nil, nil)

	events, unsub := m.Subscribe("S1")
	defer unsub()

	syncID, err := m.Start(ctx, "S1")
	require.NoError(err)
	require.NotEmpty(syncID)

	final := waitForTerminal(t, events, 5*time.Second)
	require.Equal(statusCompleted, final.Status)

	// The shipment's shortfall has no matching ledger receipts either, so
	// the cross-entity inbound_inventory_gap fires alongside the direct gap.
	results, err := store.ListDetectionResults(ctx, "S1", nil, 10, 0)
	require.NoError(err)
	require.Len(results, 2)
	byType := make(map[domain.AnomalyType]string)
	for _, r := range results {
		byType[r.AnomalyType] = r.DetectionID
	}
	require.Contains(byType, domain.AnomalyMissingInboundShipment)
	require.Contains(byType, domain.AnomalyInboundInventoryGap)

	brief, err := store.GetBrief(ctx, byType[domain.AnomalyMissingInboundShipment])
	require.NoError(err)
	require.NotEmpty(brief.ReportID)
}

func TestManager_StartRejectsConcurrentRunForSameSeller(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := memstore.New()
	cfg := domain.DefaultConfig()

	m := New(fakeClient{}, store, cfg, nil, nil)

	_, err := m.Start(ctx, "S1")
	require.NoError(err)

	_, err = m.Start(ctx, "S1")
	require.ErrorIs(err, ErrAlreadyRunning)
}

func TestManager_CancelUnknownSyncReturnsNotFound(t *testing.T) {
	require := require.New(t)
	store := memstore.New()
	cfg := domain.DefaultConfig()

	m := New(fakeClient{}, store, cfg, nil, nil)
	require.ErrorIs(m.Cancel("does-not-exist"), ErrNotFound)
}
