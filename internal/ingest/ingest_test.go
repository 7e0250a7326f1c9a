// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/marketplace"
	"github.com/luxfi/reimburse/internal/marketplace/mockclient"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/luxfi/reimburse/internal/repository/memstore"
	"github.com/luxfi/reimburse/pkg/log"
	"github.com/stretchr/testify/require"
)

func TestIngest_DerivesMissingQty(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := mockclient.New()
	client.Pages[domain.KindShipment] = []marketplace.Page{
		{Records: []repository.Entity{
			domain.Shipment{SellerID: "s1", ShipmentID: "S1", ExpectedQty: 10, ReceivedQty: 7, ShippedDate: time.Now()},
		}},
	}

	repo := memstore.New()
	stage := New(client, repo, domain.DefaultConfig(), log.NoOp())

	counts, err := stage.Ingest(ctx, "s1", repository.Window{}, "sync1", nil)
	require.NoError(err)
	require.Equal(1, counts.Shipments)

	got, err := repo.ReadRange(ctx, "s1", domain.KindShipment, repository.Window{})
	require.NoError(err)
	require.Len(got, 1)
	require.Equal(3, got[0].(domain.Shipment).MissingQty)
}

func TestIngest_IdempotentAcrossRuns(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := mockclient.New()
	client.Pages[domain.KindOrder] = []marketplace.Page{
		{Records: []repository.Entity{domain.Order{SellerID: "s1", OrderID: "O1", OrderDate: time.Now()}}},
	}

	repo := memstore.New()
	stage := New(client, repo, domain.DefaultConfig(), log.NoOp())

	_, err := stage.Ingest(ctx, "s1", repository.Window{}, "sync1", nil)
	require.NoError(err)
	_, err = stage.Ingest(ctx, "s1", repository.Window{}, "sync2", nil)
	require.NoError(err)

	got, err := repo.ReadRange(ctx, "s1", domain.KindOrder, repository.Window{})
	require.NoError(err)
	require.Len(got, 1)
}

func TestIngest_RetriesTransientThenSucceeds(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := mockclient.New()
	client.FailFirstN[domain.KindSettlement] = 2
	client.Pages[domain.KindSettlement] = []marketplace.Page{
		{Records: []repository.Entity{domain.Settlement{SellerID: "s1", SettlementID: "ST1", SettlementDate: time.Now()}}},
	}

	repo := memstore.New()
	stage := New(client, repo, domain.DefaultConfig(), log.NoOp())

	counts, err := stage.Ingest(ctx, "s1", repository.Window{}, "sync1", nil)
	require.NoError(err)
	require.Equal(1, counts.Settlements)
}

func TestIngest_PartialKindFailureIsNotFatal(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := mockclient.New()
	// Orders always fail (beyond the retry budget); settlements has data and
	// the remaining kinds return empty pages, so the overall sync still
	// succeeds with partial counts.
	client.FailFirstN[domain.KindOrder] = 100
	client.Pages[domain.KindSettlement] = []marketplace.Page{
		{Records: []repository.Entity{domain.Settlement{SellerID: "s1", SettlementID: "ST1", SettlementDate: time.Now()}}},
	}

	repo := memstore.New()
	cfg := domain.DefaultConfig()
	cfg.MarketPageRetries = 1
	stage := New(client, repo, cfg, log.NoOp())

	counts, err := stage.Ingest(ctx, "s1", repository.Window{}, "sync1", nil)
	require.NoError(err)
	require.Equal(1, counts.Settlements)
	require.Equal(0, counts.Orders)
}

func TestIngest_AllKindsFailIsFatal(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := mockclient.New()
	for _, kind := range domain.AllKinds {
		client.FailFirstN[kind] = 100 // always fails, exceeds retry budget
	}

	repo := memstore.New()
	cfg := domain.DefaultConfig()
	cfg.MarketPageRetries = 1
	stage := New(client, repo, cfg, log.NoOp())

	_, err := stage.Ingest(ctx, "s1", repository.Window{}, "sync1", nil)
	require.Error(err)
}

func TestIngest_ProgressCalledPerKind(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	client := mockclient.New()
	repo := memstore.New()
	stage := New(client, repo, domain.DefaultConfig(), log.NoOp())

	// progress is called from one goroutine per kind, so guard the map.
	var mu sync.Mutex
	seen := map[domain.RecordKind]bool{}
	_, err := stage.Ingest(ctx, "s1", repository.Window{}, "sync1", func(kind domain.RecordKind, count int, err error) {
		mu.Lock()
		seen[kind] = true
		mu.Unlock()
	})
	require.NoError(err)
	require.Len(seen, len(domain.AllKinds))
}
