// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity bands a DetectionResult by estimated recoverable value.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForValue derives severity from estimatedValue per spec.md §4.5
// bands, unless an algorithm overrides it (fee-drift does).
func SeverityForValue(v decimal.Decimal) Severity {
	switch {
	case v.GreaterThanOrEqual(decimal.NewFromInt(500)):
		return SeverityCritical
	case v.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return SeverityHigh
	case v.GreaterThanOrEqual(decimal.NewFromInt(25)):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AnomalyType names one of the anomaly kinds a detector family emits.
type AnomalyType string

const (
	AnomalyMissingInboundShipment  AnomalyType = "missing_inbound_shipment"
	AnomalyRefundMismatch          AnomalyType = "refund_mismatch"
	AnomalyFeeOvercharge           AnomalyType = "fee_overcharge"
	AnomalyFeeDriftTrend           AnomalyType = "fee_drift_trend"
	AnomalyOrderReturnInventoryGap AnomalyType = "order_return_inventory_gap"
	AnomalyInboundInventoryGap     AnomalyType = "inbound_inventory_gap"
	AnomalyFeeCancellationGap      AnomalyType = "fee_cancellation_gap"
	AnomalyReimbursementChainGap   AnomalyType = "reimbursement_chain_gap"
	AnomalyMicroLeakPattern        AnomalyType = "micro_leak_pattern"
)

// DeadlineDays is the fixed window (spec.md §3/§4.5) between discovery and
// the reimbursement submission deadline.
const DeadlineDays = 60

// DetectionResult is the common, immutable output shape of every detector
// family (spec.md §4.5).
type DetectionResult struct {
	DetectionID      string            `json:"detectionId"`
	SellerID         string            `json:"sellerId"`
	SyncID           string            `json:"syncId"`
	AnomalyType      AnomalyType       `json:"anomalyType"`
	AlgorithmVersion string            `json:"algorithmVersion"`
	Severity         Severity          `json:"severity"`
	EstimatedValue   decimal.Decimal   `json:"estimatedValue"`
	Currency         string            `json:"currency"`
	Confidence       float64           `json:"confidence"`
	Evidence         map[string]any    `json:"evidence"`
	RelatedEventIDs  []string          `json:"relatedEventIds"`
	DiscoveryDate    time.Time         `json:"discoveryDate"`
	DeadlineDate     time.Time         `json:"deadlineDate"`
}

// NewDetection fills in the deadline and discovery date for a detector
// result built at "now". Every detector funnels its output through this so
// the deadline invariant (deadlineDate == discoveryDate + 60 days) can
// never be violated by a one-off detector bug.
func NewDetection(now time.Time) DetectionResult {
	return DetectionResult{
		DiscoveryDate: now,
		DeadlineDate:  now.AddDate(0, 0, DeadlineDays),
		Evidence:      map[string]any{},
	}
}

// DaysRemaining is max(0, deadlineDate - now) in whole days.
func (d DetectionResult) DaysRemaining(now time.Time) int {
	remaining := d.DeadlineDate.Sub(now)
	days := int(remaining.Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Tier is the certainty scorer's risk bucket.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// CertaintyScore is produced once per detection and may be re-scored with a
// new version.
type CertaintyScore struct {
	DetectionID string   `json:"detectionId"`
	Version     int      `json:"version"`
	Probability float64  `json:"probability"`
	Tier        Tier     `json:"tier"`
	Confidence  float64  `json:"confidence"`
	Factors     []string `json:"factors"`
}

// Brief is the reimbursement request artifact produced for a detection.
type Brief struct {
	DetectionID         string   `json:"detectionId"`
	TemplateVersion     int      `json:"templateVersion"`
	ReportID            string   `json:"reportId"`
	Subject             string   `json:"subject"`
	Body                string   `json:"body"`
	PolicyCited         string   `json:"policyCited"`
	EvidenceFilenames   []string `json:"evidenceFilenames"`
	EvidenceFingerprint string   `json:"evidenceSha256"`
	Signature           string   `json:"signatureSha256"`
}
