// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package domain

import "time"

// SyncStatus is one state in the SyncRun lifecycle; transitions are
// monotonic: idle -> pending -> running -> (completed|failed|cancelled).
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
	SyncCancelled SyncStatus = "cancelled"
)

// Counts tracks per-kind record counts ingested during a SyncRun.
type Counts struct {
	Orders           int `json:"orders"`
	Shipments        int `json:"shipments"`
	Returns          int `json:"returns"`
	Settlements      int `json:"settlements"`
	Inventory        int `json:"inventory"`
	FinancialEvents  int `json:"financialEvents"`
}

// Add accumulates counts for one kind's page.
func (c *Counts) Add(kind RecordKind, n int) {
	switch kind {
	case KindOrder:
		c.Orders += n
	case KindShipment:
		c.Shipments += n
	case KindReturn:
		c.Returns += n
	case KindSettlement:
		c.Settlements += n
	case KindInventoryLedger:
		c.Inventory += n
	case KindFinancialEvent:
		c.FinancialEvents += n
	}
}

// SyncRun is one attempt at ingesting and processing a seller's data.
type SyncRun struct {
	SyncID          string     `json:"syncId"`
	SellerID        string     `json:"sellerId"`
	Status          SyncStatus `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Counts          Counts     `json:"counts"`
	Error           *string    `json:"error,omitempty"`
	CancelRequested bool       `json:"-"`
}

// Active reports whether the run still occupies the sync-exclusivity slot
// for its seller (spec.md §3 SyncRun uniqueness invariant).
func (s SyncRun) Active() bool {
	return s.Status == SyncPending || s.Status == SyncRunning
}
