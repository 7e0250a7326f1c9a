// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package repository narrows the host application's data store down to the
// operations the recovery core needs (spec.md §4.2, §6). The core never
// talks to a database directly; every access goes through this interface so
// the database engine itself stays out of scope.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
)

// Error taxonomy returned by every Repository implementation.
var (
	ErrNotFound  = errors.New("repository: not found")
	ErrConflict  = errors.New("repository: conflict")
	ErrTransient = errors.New("repository: transient error, retry")
)

// Window bounds a time-ranged read.
type Window struct {
	Start time.Time
	End   time.Time
}

// Entity is any of the six marketplace record kinds, keyed by EntityID
// within a seller.
type Entity interface {
	EntityID() string
}

// Repository is the narrow interface the core depends on (spec.md §4.2).
//
// Implementations must guarantee:
//   - Upsert is atomic per batch and safe under retry.
//   - Reads used by detection observe a snapshot consistent with the end
//     of ingestion for the SyncRun that produced it.
//   - InsertDetectionResults is bulk and transactional per SyncRun.
type Repository interface {
	// Upsert writes records of kind for sellerId, keyed by EntityID,
	// overwriting any existing record with the same key.
	Upsert(ctx context.Context, sellerID string, kind domain.RecordKind, records []Entity) error

	// ReadRange returns every record of kind for sellerId whose
	// domain-specific date field falls in window.
	ReadRange(ctx context.Context, sellerID string, kind domain.RecordKind, window Window) ([]Entity, error)

	CreateSyncRun(ctx context.Context, run domain.SyncRun) error
	UpdateSyncRun(ctx context.Context, run domain.SyncRun) error
	ReadActiveSyncRun(ctx context.Context, sellerID string) (*domain.SyncRun, error)
	ListSyncRuns(ctx context.Context, sellerID string, limit, offset int) ([]domain.SyncRun, error)

	InsertDetectionResults(ctx context.Context, syncID string, results []domain.DetectionResult) error
	ListDetectionResults(ctx context.Context, sellerID string, kind *domain.AnomalyType, limit, offset int) ([]domain.DetectionResult, error)
	GetDetectionResult(ctx context.Context, detectionID string) (*domain.DetectionResult, error)

	UpsertCertaintyScore(ctx context.Context, score domain.CertaintyScore) error
	UpsertBrief(ctx context.Context, brief domain.Brief) error
	GetBrief(ctx context.Context, detectionID string) (*domain.Brief, error)
}
