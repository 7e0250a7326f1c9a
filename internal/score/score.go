// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package score implements the Certainty Scorer (spec.md §4.6): a pure,
// deterministic mapping from a claim's canonical fingerprint to a refund
// probability, risk tier and human-readable factor list. Two claims with
// the same evidence, modulo key order, must score identically — grounded
// on the teacher's canonicalizer-before-hash discipline
// (pkg/crypto.CreateCommitment hashes canonical bytes, never the raw
// struct).
package score

import (
	"encoding/hex"
	"regexp"

	"github.com/luxfi/reimburse/internal/canonical"
	"github.com/luxfi/reimburse/internal/domain"
	"github.com/shopspring/decimal"
)

// Claim is the scorer's input: a detection plus the free-text evidence
// summary and proof-bundle metadata a seller (or an upstream system) has
// attached to it. Claim itself is not persisted; it is assembled from a
// DetectionResult right before scoring.
type Claim struct {
	DetectionID           string
	AnomalyType           domain.AnomalyType
	EstimatedValue        decimal.Decimal
	AnomalyScore          float64
	EvidenceSummary       string
	HasProofBundle        bool
	StructuredDataPresent bool
	Evidence              map[string]any
}

// HashAdjuster derives the deterministic jitter term from a claim's
// fingerprint. Isolated behind this type per spec.md §9 ("Deterministic
// scoring jitter ... isolate the hashing step behind an injectable
// function for test double-checking").
type HashAdjuster func(fingerprint string) float64

// DefaultHashAdjuster maps the first 8 hex characters of the fingerprint
// onto [-0.02, 0.02], uniformly and deterministically.
func DefaultHashAdjuster(fingerprint string) float64 {
	short := canonical.ShortID(fingerprint)
	raw, err := hex.DecodeString(short)
	if err != nil || len(raw) == 0 {
		return 0
	}
	var n uint32
	for _, b := range raw {
		n = n<<8 | uint32(b)
	}
	const maxUint32 = float64(1<<32 - 1)
	frac := float64(n) / maxUint32 // [0,1]
	return frac*0.04 - 0.02        // [-0.02, 0.02]
}

var (
	reOvercharge = regexp.MustCompile(`(?i)overcharg|excess.?fee|fee.?drift`)
	reDamage     = regexp.MustCompile(`(?i)damag`)
	reLost       = regexp.MustCompile(`(?i)\blost\b|missing`)
	reShipping   = regexp.MustCompile(`(?i)shipp|inbound|carrier`)
	reStorage    = regexp.MustCompile(`(?i)storage|warehous`)
	reQuality    = regexp.MustCompile(`(?i)quality|defect`)
)

// Feature increments (spec.md §4.6 step 3: "tabulated constants").
const (
	incOvercharge      = 0.05
	incDamage          = 0.05
	incLost            = 0.05
	incShipping        = 0.03
	incStorage         = 0.03
	incQuality         = 0.03
	incProofBundle     = 0.08
	incTextLength      = 0.04
	incStructuredData  = 0.05
	textLengthFeatureN = 100

	amountTierLow    = 100
	amountTierMedium = 1000

	riskHighValueAdjust        = -0.05
	riskTwoFeatureGroups       = 0.04
	riskThreeFeatureGroups     = 0.08
	riskAnomalyWithProofAdjust = 0.06
	anomalyScoreThreshold      = 0.8
)

// Score implements spec.md §4.6's algorithm end to end. version identifies
// the CertaintyScore record being produced; adjuster lets callers inject a
// deterministic double for testing the hash-jitter step in isolation. A
// nil adjuster defaults to DefaultHashAdjuster.
func Score(claim Claim, version int, adjuster HashAdjuster) (domain.CertaintyScore, error) {
	if adjuster == nil {
		adjuster = DefaultHashAdjuster
	}

	fingerprint, err := canonical.Digest(claim.Evidence)
	if err != nil {
		return domain.CertaintyScore{}, err
	}

	textualGroups := textualFeatureGroups(claim.EvidenceSummary)
	amountTier := tierFor(claim.EstimatedValue)
	textLong := len(claim.EvidenceSummary) >= textLengthFeatureN

	probability := 0.5
	var factors []string

	for _, g := range textualGroups {
		probability += g.inc
		factors = append(factors, g.label)
	}
	if claim.HasProofBundle {
		probability += incProofBundle
		factors = append(factors, "proof bundle attached")
	}
	if textLong {
		probability += incTextLength
		factors = append(factors, "detailed evidence summary")
	}
	if claim.StructuredDataPresent {
		probability += incStructuredData
		factors = append(factors, "structured data present")
	}

	probability += adjuster(fingerprint)

	positiveGroups := len(textualGroups)
	if claim.HasProofBundle {
		positiveGroups++
	}
	if claim.StructuredDataPresent {
		positiveGroups++
	}

	if amountTier == "high" {
		probability += riskHighValueAdjust
		factors = append(factors, "high-value claim risk adjustment")
	}
	switch {
	case positiveGroups >= 3:
		probability += riskThreeFeatureGroups
		factors = append(factors, "three or more supporting feature groups")
	case positiveGroups == 2:
		probability += riskTwoFeatureGroups
		factors = append(factors, "two supporting feature groups")
	}
	if claim.AnomalyScore > anomalyScoreThreshold && claim.HasProofBundle {
		probability += riskAnomalyWithProofAdjust
		factors = append(factors, "high anomaly score corroborated by proof")
	}

	probability = clamp01(probability)

	tier := domain.TierLow
	switch {
	case probability < 0.3:
		tier = domain.TierLow
	case probability <= 0.7:
		tier = domain.TierMedium
	default:
		tier = domain.TierHigh
	}

	confidence := evidenceQualityConfidence(len(textualGroups), claim.HasProofBundle, textLong, claim.StructuredDataPresent)

	return domain.CertaintyScore{
		DetectionID: claim.DetectionID,
		Version:     version,
		Probability: probability,
		Tier:        tier,
		Confidence:  confidence,
		Factors:     factors,
	}, nil
}

type featureGroup struct {
	inc   float64
	label string
}

func textualFeatureGroups(summary string) []featureGroup {
	var out []featureGroup
	if reOvercharge.MatchString(summary) {
		out = append(out, featureGroup{incOvercharge, "overcharge language detected"})
	}
	if reDamage.MatchString(summary) {
		out = append(out, featureGroup{incDamage, "damage language detected"})
	}
	if reLost.MatchString(summary) {
		out = append(out, featureGroup{incLost, "loss language detected"})
	}
	if reShipping.MatchString(summary) {
		out = append(out, featureGroup{incShipping, "shipping language detected"})
	}
	if reStorage.MatchString(summary) {
		out = append(out, featureGroup{incStorage, "storage language detected"})
	}
	if reQuality.MatchString(summary) {
		out = append(out, featureGroup{incQuality, "quality language detected"})
	}
	return out
}

func tierFor(v decimal.Decimal) string {
	switch {
	case v.LessThanOrEqual(decimal.NewFromInt(amountTierLow)):
		return "low"
	case v.LessThanOrEqual(decimal.NewFromInt(amountTierMedium)):
		return "medium"
	default:
		return "high"
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// evidenceQualityConfidence scores how much evidence backs the
// probability estimate, independent of which direction it points.
func evidenceQualityConfidence(textualGroupCount int, hasProof, textLong, structured bool) float64 {
	c := 0.3
	c += float64(textualGroupCount) * 0.08
	if hasProof {
		c += 0.25
	}
	if textLong {
		c += 0.10
	}
	if structured {
		c += 0.15
	}
	return clamp01(c)
}
