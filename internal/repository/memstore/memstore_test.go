// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/luxfi/reimburse/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestUpsert_Idempotent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := New()

	rec := domain.Order{SellerID: "s1", OrderID: "O1", OrderDate: time.Now()}
	require.NoError(s.Upsert(ctx, "s1", domain.KindOrder, []repository.Entity{rec}))
	require.NoError(s.Upsert(ctx, "s1", domain.KindOrder, []repository.Entity{rec}))

	got, err := s.ReadRange(ctx, "s1", domain.KindOrder, repository.Window{})
	require.NoError(err)
	require.Len(got, 1)
}

func TestCreateSyncRun_Exclusivity(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := New()

	run1 := domain.SyncRun{SyncID: "a", SellerID: "s1", Status: domain.SyncPending, StartedAt: time.Now()}
	require.NoError(s.CreateSyncRun(ctx, run1))

	run2 := domain.SyncRun{SyncID: "b", SellerID: "s1", Status: domain.SyncPending, StartedAt: time.Now()}
	err := s.CreateSyncRun(ctx, run2)
	require.ErrorIs(err, repository.ErrConflict)

	run1.Status = domain.SyncCompleted
	require.NoError(s.UpdateSyncRun(ctx, run1))
	require.NoError(s.CreateSyncRun(ctx, run2))
}

func TestReadActiveSyncRun_NotFound(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := New()

	_, err := s.ReadActiveSyncRun(ctx, "missing")
	require.ErrorIs(err, repository.ErrNotFound)
}

func TestListDetectionResults_FilterAndPage(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := New()

	typA := domain.AnomalyFeeOvercharge
	typB := domain.AnomalyRefundMismatch

	require.NoError(s.InsertDetectionResults(ctx, "sync1", []domain.DetectionResult{
		{DetectionID: "1", SellerID: "s1", AnomalyType: typA, DiscoveryDate: time.Now()},
		{DetectionID: "2", SellerID: "s1", AnomalyType: typB, DiscoveryDate: time.Now()},
		{DetectionID: "3", SellerID: "s2", AnomalyType: typA, DiscoveryDate: time.Now()},
	}))

	got, err := s.ListDetectionResults(ctx, "s1", &typA, 10, 0)
	require.NoError(err)
	require.Len(got, 1)
	require.Equal("1", got[0].DetectionID)

	all, err := s.ListDetectionResults(ctx, "s1", nil, 10, 0)
	require.NoError(err)
	require.Len(all, 2)
}

func TestBriefRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := New()

	b := domain.Brief{DetectionID: "d1", Subject: "hi"}
	require.NoError(s.UpsertBrief(ctx, b))

	got, err := s.GetBrief(ctx, "d1")
	require.NoError(err)
	require.Equal("hi", got.Subject)

	_, err = s.GetBrief(ctx, "missing")
	require.ErrorIs(err, repository.ErrNotFound)
}
