// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package domain

import "time"

// Config enumerates every tunable named in spec.md §6, defaults in
// parens in the field comments. A zero-value Config is invalid; use
// DefaultConfig.
type Config struct {
	SyncIntervalHours       int `json:"syncIntervalHours"`       // 1
	MinHoursBetweenSyncs    int `json:"minHoursBetweenSyncs"`    // 1
	MarketPageTimeoutS      int `json:"marketPageTimeoutS"`      // 30
	MarketPageRetries       int `json:"marketPageRetries"`       // 5
	UpsertBatchSize         int `json:"upsertBatchSize"`         // 1000
	FeeDriftBaselineDays    int `json:"feeDriftBaselineDays"`    // 30
	FeeDriftMinHistoryDays  int `json:"feeDriftMinHistoryDays"`  // 45
	FeeDriftMinSamples      int `json:"feeDriftMinSamples"`      // 10
	MicroLeakMinOccurrences int `json:"microLeakMinOccurrences"` // 50
	MicroLeakMinValue       float64 `json:"microLeakMinValue"`   // 25
	CorrelationLookbackDays int `json:"correlationLookbackDays"` // 90
	DeadlineDays            int `json:"deadlineDays"`            // 60
	SyncHardCapHours        int `json:"syncHardCapHours"`        // 2
	GlobalSyncConcurrency   int `json:"globalSyncConcurrency"`   // 8
}

// DefaultConfig returns the defaults enumerated in spec.md §6.
func DefaultConfig() Config {
	return Config{
		SyncIntervalHours:       1,
		MinHoursBetweenSyncs:    1,
		MarketPageTimeoutS:      30,
		MarketPageRetries:       5,
		UpsertBatchSize:         1000,
		FeeDriftBaselineDays:    30,
		FeeDriftMinHistoryDays:  45,
		FeeDriftMinSamples:      10,
		MicroLeakMinOccurrences: 50,
		MicroLeakMinValue:       25,
		CorrelationLookbackDays: 90,
		DeadlineDays:            60,
		SyncHardCapHours:        2,
		GlobalSyncConcurrency:   8,
	}
}

func (c Config) MarketPageTimeout() time.Duration {
	return time.Duration(c.MarketPageTimeoutS) * time.Second
}

func (c Config) SyncHardCap() time.Duration {
	return time.Duration(c.SyncHardCapHours) * time.Hour
}

func (c Config) MinIntervalBetweenSyncs() time.Duration {
	return time.Duration(c.MinHoursBetweenSyncs) * time.Hour
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalHours) * time.Hour
}
