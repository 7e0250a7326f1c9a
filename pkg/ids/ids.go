// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ids generates opaque random identifiers. The Sync Job Manager
// uses it for syncIds; detection IDs are built by the detection engine
// from the syncId instead.
package ids

import "github.com/google/uuid"

// New returns a fresh random identifier suitable for a SyncRun, a
// DetectionResult minted internally, or any other entity the core itself
// originates rather than receives from the marketplace.
func New() string {
	return uuid.NewString()
}

// NewWithPrefix returns a New id prefixed for readability in logs and
// dashboards, e.g. NewWithPrefix("sync") -> "sync_3fa85f64...".
func NewWithPrefix(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
