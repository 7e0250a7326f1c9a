// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// InboundShipmentGapVersion bumps whenever the threshold below changes.
const InboundShipmentGapVersion = "inbound-shipment-gap/v1"

// InboundShipmentGap implements spec.md §4.5.a: for each Shipment with
// missingQty > 0, emit missing_inbound_shipment valued at
// missingQty * unitCost, confidence 0.95.
func InboundShipmentGap(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	var out []domain.DetectionResult
	for _, sh := range s.Shipments {
		if sh.MissingQty <= 0 {
			continue
		}

		value := decimal.NewFromInt(int64(sh.MissingQty)).Mul(sh.UnitCost)
		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyMissingInboundShipment
		d.AlgorithmVersion = InboundShipmentGapVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(sh.Currency)
		d.Confidence = 0.95
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{sh.ShipmentID}
		d.Evidence = map[string]any{
			"shipmentId":  sh.ShipmentID,
			"orderId":     sh.OrderID,
			"sku":         sh.SKU,
			"expectedQty": sh.ExpectedQty,
			"receivedQty": sh.ReceivedQty,
			"missingQty":  sh.MissingQty,
			"unitCost":    sh.UnitCost,
		}
		out = append(out, d)
	}
	return out
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
