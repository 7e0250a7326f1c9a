// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// SettlementFeeOverchargeVersion bumps whenever the 18% threshold changes.
const SettlementFeeOverchargeVersion = "fee-overcharge/v1"

var feeCeilingRate = decimal.NewFromFloat(0.18)

// SettlementFeeOvercharge implements spec.md §4.5.c: for each Settlement
// with fees > 0.18 * amount, emit fee_overcharge valued at
// fees - 0.18*amount, confidence 0.90.
func SettlementFeeOvercharge(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	var out []domain.DetectionResult
	for _, st := range s.Settlements {
		ceiling := feeCeilingRate.Mul(st.Amount)
		if !st.Fees.GreaterThan(ceiling) {
			continue
		}

		value := st.Fees.Sub(ceiling)
		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyFeeOvercharge
		d.AlgorithmVersion = SettlementFeeOverchargeVersion
		d.EstimatedValue = value
		d.Currency = currencyOrDefault(st.Currency)
		d.Confidence = 0.90
		d.Severity = domain.SeverityForValue(value)
		d.RelatedEventIDs = []string{st.SettlementID}
		d.Evidence = map[string]any{
			"settlementId": st.SettlementID,
			"amount":       st.Amount,
			"fees":         st.Fees,
			"ceiling":      ceiling,
		}
		out = append(out, d)
	}
	return out
}
