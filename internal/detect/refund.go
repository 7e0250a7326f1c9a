// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// PartialRefundGapVersion bumps whenever the 0.9x threshold changes.
const PartialRefundGapVersion = "partial-refund-gap/v1"

var ninetyPercent = decimal.NewFromFloat(0.9)

// PartialRefundGap implements spec.md §4.5.b: join Return to Order by
// orderId; if refundAmount > 0 and refundAmount < 0.9 * orderTotal, emit
// refund_mismatch valued at orderTotal - refundAmount, confidence 0.85.
func PartialRefundGap(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	ordersByID := make(map[string]domain.Order, len(s.Orders))
	for _, o := range s.Orders {
		ordersByID[o.OrderID] = o
	}

	var out []domain.DetectionResult
	for _, r := range s.Returns {
		order, ok := ordersByID[r.OrderID]
		if !ok {
			continue
		}
		if !r.RefundAmount.IsPositive() {
			continue
		}
		threshold := ninetyPercent.Mul(order.TotalAmount)
		if !r.RefundAmount.LessThan(threshold) {
			continue
		}

		value := order.TotalAmount.Sub(r.RefundAmount)
		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyRefundMismatch
		d.AlgorithmVersion = PartialRefundGapVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(r.Currency)
		d.Confidence = 0.85
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{r.ReturnID, order.OrderID}
		d.Evidence = map[string]any{
			"returnId":     r.ReturnID,
			"orderId":      order.OrderID,
			"orderTotal":   order.TotalAmount,
			"refundAmount": r.RefundAmount,
		}
		out = append(out, d)
	}
	return out
}
