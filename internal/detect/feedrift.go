// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package detect

import (
	"math"
	"sort"
	"time"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// FeeDriftTrendVersion bumps whenever the bucketing, classification or
// confidence rules below change.
const FeeDriftTrendVersion = "fee-drift-trend/v1"

// Drift classifications recorded in Evidence["driftType"].
const (
	driftStepIncrease      = "step_increase"
	driftAcceleratingDrift = "accelerating_drift"
	driftGradualIncrease   = "gradual_increase"
)

const bucketDays = 7

// minConfidence is the floor below which a drift is not worth reporting
// (spec.md §4.5.d).
const minConfidence = 0.55

// feeSample is one settlement's per-unit fee observation for a SKU.
type feeSample struct {
	date       time.Time
	perUnitFee float64
	unitsSold  int
	currency   string
}

// feeBucket is one weekly aggregate of a SKU's fee history.
type feeBucket struct {
	startIdx  int
	mean      float64
	unitsSold int
}

// FeeDriftTrend implements spec.md §4.5.d: per-SKU settlement per-unit-fee
// history, baseline (first FeeDriftBaselineDays) vs current (last
// FeeDriftBaselineDays), drift amount/pct, weekly-bucket classification and
// a capped, weighted confidence score. A SKU needs at least
// FeeDriftMinHistoryDays of span and FeeDriftMinSamples baseline
// settlements before it is eligible.
func FeeDriftTrend(s Snapshot, cfg domain.Config) []domain.DetectionResult {
	bySKU := make(map[string][]feeSample)
	for _, st := range s.Settlements {
		if st.SKU == "" || st.UnitsSold <= 0 {
			continue
		}
		perUnit, _ := st.Fees.Div(decimal.NewFromInt(int64(st.UnitsSold))).Float64()
		bySKU[st.SKU] = append(bySKU[st.SKU], feeSample{
			date:       st.SettlementDate,
			perUnitFee: perUnit,
			unitsSold:  st.UnitsSold,
			currency:   st.Currency,
		})
	}

	var out []domain.DetectionResult
	for _, sku := range sortedStrings(keysOf(bySKU)) {
		d, ok := evaluateSKUDrift(s, cfg, sku, bySKU[sku])
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func evaluateSKUDrift(s Snapshot, cfg domain.Config, sku string, samples []feeSample) (domain.DetectionResult, bool) {
	sort.Slice(samples, func(i, j int) bool { return samples[i].date.Before(samples[j].date) })

	span := samples[len(samples)-1].date.Sub(samples[0].date)
	if span < time.Duration(cfg.FeeDriftMinHistoryDays)*24*time.Hour {
		return domain.DetectionResult{}, false
	}

	baselineEnd := samples[0].date.AddDate(0, 0, cfg.FeeDriftBaselineDays)
	currentStart := samples[len(samples)-1].date.AddDate(0, 0, -cfg.FeeDriftBaselineDays)

	var baseline, current []feeSample
	for _, sm := range samples {
		if !sm.date.After(baselineEnd) {
			baseline = append(baseline, sm)
		}
		if !sm.date.Before(currentStart) {
			current = append(current, sm)
		}
	}
	if len(baseline) < cfg.FeeDriftMinSamples || len(current) < cfg.FeeDriftMinSamples {
		return domain.DetectionResult{}, false
	}

	baselineMean, baselineStdDev := meanStdDev(perUnitFees(baseline))
	currentMean, _ := meanStdDev(perUnitFees(current))

	driftAmount := currentMean - baselineMean
	if driftAmount <= 0 || baselineMean <= 0 {
		return domain.DetectionResult{}, false
	}
	driftPct := driftAmount / baselineMean * 100
	if driftPct < 5 {
		return domain.DetectionResult{}, false
	}

	monthlyUnits := 0
	for _, sm := range current {
		monthlyUnits += sm.unitsSold
	}
	monthlyOvercharge := driftAmount * float64(monthlyUnits)
	if monthlyOvercharge < 10 {
		return domain.DetectionResult{}, false
	}

	buckets := weeklyBuckets(samples)
	driftType := classifyDrift(buckets, baselineStdDev)
	driftStartIdx := driftStartBucket(buckets, baselineMean, baselineStdDev)

	unitsSinceDrift := 0
	for b := driftStartIdx; b < len(buckets); b++ {
		unitsSinceDrift += buckets[b].unitsSold
	}
	cumulativeOvercharge := decimal.NewFromFloat(driftAmount).Mul(decimal.NewFromInt(int64(unitsSinceDrift)))

	confidence := driftConfidence(cfg, span, baselineMean, baselineStdDev, monthlyOvercharge, buckets)
	if confidence < minConfidence {
		return domain.DetectionResult{}, false
	}

	projectedAnnual := monthlyOvercharge * 12
	severity := domain.SeverityForValue(decimal.NewFromFloat(projectedAnnual))
	if projectedAnnual >= 500 || (driftPct >= 20 && driftType == driftAcceleratingDrift) {
		severity = domain.SeverityCritical
	}

	d := domain.NewDetection(s.Now)
	d.AnomalyType = domain.AnomalyFeeDriftTrend
	d.AlgorithmVersion = FeeDriftTrendVersion
	d.EstimatedValue = cumulativeOvercharge
	d.Currency = currencyOrDefault(samples[len(samples)-1].currency)
	d.Confidence = confidence
	d.Severity = severity
	d.RelatedEventIDs = nil
	d.Evidence = map[string]any{
		"sku":               sku,
		"baselineMean":      baselineMean,
		"baselineStdDev":    baselineStdDev,
		"currentMean":       currentMean,
		"driftAmount":       driftAmount,
		"driftPct":          driftPct,
		"monthlyOvercharge": monthlyOvercharge,
		"projectedAnnual":   projectedAnnual,
		"driftType":         driftType,
		"driftStartDate":    samples[buckets[driftStartIdx].startIdx].date,
		"baselineSamples":   len(baseline),
		"currentSamples":    len(current),
	}
	return d, true
}

func perUnitFees(samples []feeSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.perUnitFee
	}
	return out
}

func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	stdDev = math.Sqrt(variance)
	return mean, stdDev
}

// weeklyBuckets aggregates consecutive bucketDays-wide windows of the full
// per-SKU history into per-week mean per-unit fee and total units sold.
func weeklyBuckets(samples []feeSample) []feeBucket {
	var buckets []feeBucket
	i := 0
	for i < len(samples) {
		j := i
		bucketStart := samples[i].date
		var sum float64
		var units, n int
		for j < len(samples) && samples[j].date.Sub(bucketStart) < bucketDays*24*time.Hour {
			sum += samples[j].perUnitFee
			units += samples[j].unitsSold
			n++
			j++
		}
		buckets = append(buckets, feeBucket{startIdx: i, mean: sum / float64(n), unitsSold: units})
		i = j
	}
	return buckets
}

// driftStartBucket is the earliest weekly bucket whose mean exceeds
// baseline.mean + 2*baseline.stdDev (spec.md §4.5.d).
func driftStartBucket(buckets []feeBucket, baselineMean, baselineStdDev float64) int {
	threshold := baselineMean + 2*baselineStdDev
	for i, b := range buckets {
		if b.mean > threshold {
			return i
		}
	}
	if len(buckets) == 0 {
		return 0
	}
	return len(buckets) - 1
}

// classifyDrift implements the three-way classification in spec.md §4.5.d:
// a single weekly step beyond 3*baseline.stdDev is a step_increase; an
// accelerating second half of weekly percent changes is accelerating_drift;
// anything else is gradual_increase.
func classifyDrift(buckets []feeBucket, baselineStdDev float64) string {
	if len(buckets) < 2 {
		return driftGradualIncrease
	}

	stepThreshold := 3 * baselineStdDev
	changes := make([]float64, 0, len(buckets)-1)
	for i := 1; i < len(buckets); i++ {
		delta := buckets[i].mean - buckets[i-1].mean
		if stepThreshold > 0 && delta > stepThreshold {
			return driftStepIncrease
		}
		if buckets[i-1].mean > 0 {
			changes = append(changes, delta/buckets[i-1].mean)
		} else {
			changes = append(changes, 0)
		}
	}

	half := len(changes) / 2
	if half == 0 {
		return driftGradualIncrease
	}
	firstMean, _ := meanStdDev(changes[:half])
	secondMean, _ := meanStdDev(changes[half:])
	if firstMean > 0 && secondMean > firstMean*1.5 {
		return driftAcceleratingDrift
	}
	return driftGradualIncrease
}

// driftConfidence sums the weighted booleans from spec.md §4.5.d, capped at
// 1.0: sufficientHistory (+0.30), upwardTrend>=70% of weeks (+0.25),
// noProductChange (+0.20), monthly>=25 (+0.15), stable-stddev (+0.10).
func driftConfidence(cfg domain.Config, span time.Duration, baselineMean, baselineStdDev, monthlyOvercharge float64, buckets []feeBucket) float64 {
	confidence := 0.0

	sufficientHistory := span >= time.Duration(cfg.FeeDriftMinHistoryDays*2)*24*time.Hour
	if sufficientHistory {
		confidence += 0.30
	}

	if len(buckets) > 1 {
		upWeeks := 0
		for i := 1; i < len(buckets); i++ {
			if buckets[i].mean > buckets[i-1].mean {
				upWeeks++
			}
		}
		if float64(upWeeks)/float64(len(buckets)-1) >= 0.70 {
			confidence += 0.25
		}
	}

	if noProductChange(buckets) {
		confidence += 0.20
	}

	if monthlyOvercharge >= 25 {
		confidence += 0.15
	}

	if baselineStdDev > 0 && baselineStdDev < baselineMean*0.25 {
		confidence += 0.10
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// noProductChange is a proxy for "no major volume/product change": the
// standard deviation of weekly unit-sold volume is below 20% of its mean.
func noProductChange(buckets []feeBucket) bool {
	if len(buckets) == 0 {
		return false
	}
	units := make([]float64, len(buckets))
	for i, b := range buckets {
		units[i] = float64(b.unitsSold)
	}
	mean, stdDev := meanStdDev(units)
	if mean == 0 {
		return false
	}
	return stdDev < mean*0.20
}

func keysOf(m map[string][]feeSample) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedStrings(ss []string) []string {
	sort.Strings(ss)
	return ss
}
