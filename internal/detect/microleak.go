// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"sort"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// MicroLeakPatternVersion bumps whenever either sub-check's thresholds
// change.
const MicroLeakPatternVersion = "micro-leak-pattern/v1"

var (
	microLeakBandLow  = decimal.NewFromFloat(0.05)
	microLeakBandHigh = decimal.NewFromFloat(2.00)
	dimWeightMinCount = 20
)

// MicroLeakPattern implements spec.md §4.5.f: small per-event fee
// overcharges (0.05-2.00 each) that are individually too small to flag but
// recur often enough per SKU to add up, plus a dimensional-weight billing
// variance sub-check over inventory ledger entries that carry both
// dimWeight and actualWeight.
func MicroLeakPattern(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	var out []domain.DetectionResult
	out = append(out, smallFeeLeaks(s, cfg)...)
	out = append(out, dimWeightLeaks(s, cfg)...)
	return out
}

type skuFeeAgg struct {
	count    int
	total    decimal.Decimal
	currency string
	ids      []string
}

// smallFeeLeaks aggregates per-SKU fee events whose individual amount falls
// in the micro-leak band; a SKU crosses the line once it accumulates
// MicroLeakMinOccurrences such events totalling at least MicroLeakMinValue.
func smallFeeLeaks(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	bySKU := make(map[string]*skuFeeAgg)
	for _, fe := range s.FinancialEvents {
		if fe.EventType != domain.EventTypeFee || fe.SKU == "" {
			continue
		}
		if fe.Amount.LessThan(microLeakBandLow) || fe.Amount.GreaterThan(microLeakBandHigh) {
			continue
		}
		agg, ok := bySKU[fe.SKU]
		if !ok {
			agg = &skuFeeAgg{total: decimal.Zero}
			bySKU[fe.SKU] = agg
		}
		agg.count++
		agg.total = agg.total.Add(fe.Amount)
		agg.currency = fe.Currency
		agg.ids = append(agg.ids, fe.EventID)
	}

	minValue := decimal.NewFromFloat(cfg.MicroLeakMinValue)

	var out []domain.DetectionResult
	skus := sortedKeys(bySKU)
	for _, sku := range skus {
		agg := bySKU[sku]
		if agg.count < cfg.MicroLeakMinOccurrences {
			continue
		}
		if agg.total.LessThan(minValue) {
			continue
		}

		// spec.md §4.5.f: confidence = min(0.95, 0.60 + count/1000 * 0.35).
		confidence := 0.60 + float64(agg.count)/1000*0.35
		if confidence > 0.95 {
			confidence = 0.95
		}

		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyMicroLeakPattern
		d.AlgorithmVersion = MicroLeakPatternVersion
		d.EstimatedValue = agg.total
		d.Currency = currencyOrDefault(agg.currency)
		d.Confidence = confidence
		d.Severity = domain.SeverityForValue(agg.total)
		d.RelatedEventIDs = agg.ids
		d.Evidence = map[string]any{
			"leakKind":    "small_fee_overcharge",
			"sku":         sku,
			"occurrences": agg.count,
			"totalValue":  agg.total,
		}
		out = append(out, d)
	}
	return out
}

type dimWeightAgg struct {
	count        int
	excessCharge decimal.Decimal
	ids          []string
}

// dimWeightLeaks flags SKUs billed repeatedly on dimensional weight above
// their actual weight: each such entry is assumed billed at $1/lb excess
// (the universal FBA dimensional-weight fee step), accumulated per SKU.
func dimWeightLeaks(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	perLbFee := decimal.NewFromInt(1)
	bySKU := make(map[string]*dimWeightAgg)

	for _, e := range s.InventoryLedger {
		if !e.HasDimWeight || e.SKU == "" {
			continue
		}
		excessLbs := e.DimWeight.Sub(e.ActualWeight)
		if excessLbs.LessThan(decimal.NewFromInt(2)) {
			continue
		}
		agg, ok := bySKU[e.SKU]
		if !ok {
			agg = &dimWeightAgg{excessCharge: decimal.Zero}
			bySKU[e.SKU] = agg
		}
		agg.count++
		agg.excessCharge = agg.excessCharge.Add(excessLbs.Mul(perLbFee))
		agg.ids = append(agg.ids, e.EventID)
	}

	var out []domain.DetectionResult
	skus := sortedDimWeightKeys(bySKU)
	for _, sku := range skus {
		agg := bySKU[sku]
		if agg.count < dimWeightMinCount {
			continue
		}

		d := domain.NewDetection(s.Now)
		d.AnomalyType = domain.AnomalyMicroLeakPattern
		d.AlgorithmVersion = MicroLeakPatternVersion
		d.EstimatedValue = agg.excessCharge
		d.Currency = currencyOrDefault("")
		d.Confidence = 0.85
		d.Severity = domain.SeverityForValue(agg.excessCharge)
		d.RelatedEventIDs = agg.ids
		d.Evidence = map[string]any{
			"leakKind":    "dimensional_weight_variance",
			"sku":         sku,
			"occurrences": agg.count,
		}
		out = append(out, d)
	}
	return out
}

func sortedKeys(m map[string]*skuFeeAgg) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedDimWeightKeys(m map[string]*dimWeightAgg) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
