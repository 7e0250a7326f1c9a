// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// CrossEntityCorrelationVersion bumps whenever any of the four gap checks
// below change.
const CrossEntityCorrelationVersion = "cross-entity-correlation/v1"

var (
	minEstimatedValue  = decimal.NewFromInt(10)
	defaultGapValue    = decimal.NewFromInt(15)
	inboundGapMinUnits = 5
)

// CrossEntityCorrelation implements spec.md §4.5.e over a
// cfg.CorrelationLookbackDays window: return-without-inventory-movement,
// inbound-receipt-short-of-expected, fee-on-canceled-order-without-reversal,
// and loss-event-without-reimbursement-case. Every emitted gap must clear
// estimatedValue >= 10.
func CrossEntityCorrelation(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	cutoff := s.Now.AddDate(0, 0, -cfg.CorrelationLookbackDays)

	var out []domain.DetectionResult
	out = append(out, returnInventoryGaps(s, cutoff)...)
	out = append(out, inboundInventoryGaps(s, cutoff)...)
	out = append(out, feeCancellationGaps(s, cutoff)...)
	out = append(out, reimbursementChainGaps(s, cutoff)...)
	return filterByMinValue(out)
}

func filterByMinValue(results []domain.DetectionResult) []domain.DetectionResult {
	var out []domain.DetectionResult
	for _, d := range results {
		if d.EstimatedValue.GreaterThanOrEqual(minEstimatedValue) {
			out = append(out, d)
		}
	}
	return out
}

func matchesSKU(sku, asin, entrySKU, entryFNSKU string) bool {
	if sku != "" && sku == entrySKU {
		return true
	}
	if asin != "" && asin == entryFNSKU {
		return true
	}
	return false
}

// returnInventoryGaps: spec.md §4.5.e.1. For each Return, check for a
// positive InventoryLedgerEntry matching sku/asin with eventDate within 7
// days after the return. If none, emit order_return_inventory_gap valued
// at |refundAmount| (or 15 if unset), confidence 0.80.
func returnInventoryGaps(s Snapshot, cutoff time.Time) []domain.DetectionResult {
	var out []domain.DetectionResult
	for _, r := range s.Returns {
		if r.ReturnedDate.Before(cutoff) {
			continue
		}

		found := false
		windowEnd := r.ReturnedDate.AddDate(0, 0, 7)
		for _, e := range s.InventoryLedger {
			if e.Quantity <= 0 {
				continue
			}
			if !matchesSKU(r.SKU, r.ASIN, e.SKU, e.FNSKU) {
				continue
			}
			if !e.EventDate.Before(r.ReturnedDate) && !e.EventDate.After(windowEnd) {
				found = true
				break
			}
		}
		if found {
			continue
		}

		value := r.RefundAmount.Abs()
		if value.IsZero() {
			value = defaultGapValue
		}

		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyOrderReturnInventoryGap
		d.AlgorithmVersion = CrossEntityCorrelationVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(r.Currency)
		d.Confidence = 0.80
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{r.ReturnID, r.OrderID}
		d.Evidence = map[string]any{
			"gapKind":      "order_return_inventory_gap",
			"returnId":     r.ReturnID,
			"sku":          r.SKU,
			"returnedDate": r.ReturnedDate,
		}
		out = append(out, d)
	}
	return out
}

// inboundInventoryGaps: spec.md §4.5.e.2. For each inbound shipment with
// expectedQty Q, sum matching ledger receipts within 5 days of shipment. If
// Q - received >= 5, emit inbound_inventory_gap valued at
// (Q - received) * unitCost, confidence 0.85.
func inboundInventoryGaps(s Snapshot, cutoff time.Time) []domain.DetectionResult {
	var out []domain.DetectionResult
	for _, sh := range s.Shipments {
		if sh.ShippedDate.Before(cutoff) || sh.SKU == "" {
			continue
		}

		windowEnd := sh.ShippedDate.AddDate(0, 0, 5)
		received := 0
		for _, e := range s.InventoryLedger {
			if e.SKU != sh.SKU || e.EventType != domain.InboundEventType {
				continue
			}
			if e.EventDate.Before(sh.ShippedDate) || e.EventDate.After(windowEnd) {
				continue
			}
			if e.Quantity > 0 {
				received += e.Quantity
			}
		}

		short := sh.ExpectedQty - received
		if short < inboundGapMinUnits {
			continue
		}

		value := decimal.NewFromInt(int64(short)).Mul(sh.UnitCost)

		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyInboundInventoryGap
		d.AlgorithmVersion = CrossEntityCorrelationVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(sh.Currency)
		d.Confidence = 0.85
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{sh.ShipmentID}
		d.Evidence = map[string]any{
			"gapKind":     "inbound_inventory_gap",
			"shipmentId":  sh.ShipmentID,
			"sku":         sh.SKU,
			"expectedQty": sh.ExpectedQty,
			"ledgerQty":   received,
			"shortfall":   short,
		}
		out = append(out, d)
	}
	return out
}

// feeCancellationGaps: spec.md §4.5.e.3. Build the set of canceled
// orderIds; for each fee event on a canceled order with no matching
// fee-reversal, emit fee_cancellation_gap valued at |feeAmount|, confidence
// 0.90.
func feeCancellationGaps(s Snapshot, cutoff time.Time) []domain.DetectionResult {
	canceled := make(map[string]bool)
	for _, fe := range s.FinancialEvents {
		if fe.EventType == domain.EventTypeCancellation && fe.OrderID != "" {
			canceled[fe.OrderID] = true
		}
	}

	reversedOrders := make(map[string]bool)
	for _, fe := range s.FinancialEvents {
		if fe.EventType == domain.EventTypeFeeReversal && fe.OrderID != "" {
			reversedOrders[fe.OrderID] = true
		}
	}

	var out []domain.DetectionResult
	for _, fe := range s.FinancialEvents {
		if fe.EventType != domain.EventTypeFee || fe.PostedDate.Before(cutoff) {
			continue
		}
		if !canceled[fe.OrderID] || reversedOrders[fe.OrderID] {
			continue
		}

		value := fe.Amount.Abs()
		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyFeeCancellationGap
		d.AlgorithmVersion = CrossEntityCorrelationVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(fe.Currency)
		d.Confidence = 0.90
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{fe.EventID}
		d.Evidence = map[string]any{
			"gapKind": "fee_cancellation_gap",
			"orderId": fe.OrderID,
			"feeId":   fe.EventID,
		}
		out = append(out, d)
	}
	return out
}

// reimbursementChainGaps: spec.md §4.5.e.4. For each loss-class event
// (damaged/lost/disposed/destroyed), check for a reimbursement_case event
// referencing the same orderId/sku/asin created at or after the loss. If
// none, emit reimbursement_chain_gap valued at |amount| (or 15), confidence
// 0.75.
func reimbursementChainGaps(s Snapshot, cutoff time.Time) []domain.DetectionResult {
	var out []domain.DetectionResult
	for _, fe := range s.FinancialEvents {
		if fe.PostedDate.Before(cutoff) || !domain.LossEventTypes[fe.EventType] {
			continue
		}

		found := false
		for _, other := range s.FinancialEvents {
			if other.EventType != domain.EventTypeReimbursementCase {
				continue
			}
			if other.PostedDate.Before(fe.PostedDate) {
				continue
			}
			if (fe.OrderID != "" && other.OrderID == fe.OrderID) ||
				(fe.SKU != "" && other.SKU == fe.SKU) ||
				(fe.ASIN != "" && other.ASIN == fe.ASIN) {
				found = true
				break
			}
		}
		if found {
			continue
		}

		value := fe.Amount.Abs()
		if value.IsZero() {
			value = defaultGapValue
		}

		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyReimbursementChainGap
		d.AlgorithmVersion = CrossEntityCorrelationVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(fe.Currency)
		d.Confidence = 0.75
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{fe.EventID}
		d.Evidence = map[string]any{
			"gapKind":   "reimbursement_chain_gap",
			"eventId":   fe.EventID,
			"eventType": fe.EventType,
			"sku":       fe.SKU,
		}
		out = append(out, d)
	}
	return out
}
