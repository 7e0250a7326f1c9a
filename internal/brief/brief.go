// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package brief implements the Brief Generator (spec.md §4.7): renders a
// reimbursement request packet from a detection and its evidence manifest,
// and computes the evidence fingerprint and signature that make the
// packet idempotent across retries. Grounded on the teacher's
// pkg/crypto.CreateCommitment idiom (digest-of-canonical-bytes as a stable
// commitment) retargeted to committing evidence for a claim instead of
// budget state.
package brief

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/luxfi/reimburse/internal/canonical"
	"github.com/luxfi/reimburse/internal/domain"
)

// templateName classifications (spec.md §4.7).
const (
	templateMissingInbound = "missing_inbound_shipment"
	templateRefundNoReturn = "refund_without_return"
	templateDamagedWarehouse = "damaged_warehouse"
	templateDefault          = "default"
)

var templates = map[string]*template.Template{
	templateMissingInbound:   template.Must(template.New(templateMissingInbound).Parse(missingInboundBody)),
	templateRefundNoReturn:   template.Must(template.New(templateRefundNoReturn).Parse(refundNoReturnBody)),
	templateDamagedWarehouse: template.Must(template.New(templateDamagedWarehouse).Parse(damagedWarehouseBody)),
	templateDefault:          template.Must(template.New(templateDefault).Parse(defaultBody)),
}

const missingInboundBody = `We are requesting reimbursement for inventory shipped to your fulfillment network that was never credited to our account.

Order: {{.OrderID}}
Shipment: {{.ShipmentID}}
SKU/ASIN: {{.SKU}}
Quantity affected: {{.Quantity}}
Amount: {{.Amount}} {{.Currency}}
Date: {{.Date}}

Evidence attached: {{.EvidenceList}}`

const refundNoReturnBody = `We are requesting reimbursement for a refund issued to a customer without a corresponding return being credited back to our inventory or account balance.

Order: {{.OrderID}}
SKU/ASIN: {{.SKU}}
Amount: {{.Amount}} {{.Currency}}
Date: {{.Date}}

Evidence attached: {{.EvidenceList}}`

const damagedWarehouseBody = `We are requesting reimbursement for inventory lost or damaged while in your custody, with no reimbursement case opened on our account.

Order: {{.OrderID}}
SKU/ASIN: {{.SKU}}
Quantity affected: {{.Quantity}}
Amount: {{.Amount}} {{.Currency}}
Date: {{.Date}}

Evidence attached: {{.EvidenceList}}`

const defaultBody = `We are requesting reimbursement for a discrepancy identified in our account records.

Order: {{.OrderID}}
SKU/ASIN: {{.SKU}}
Amount: {{.Amount}} {{.Currency}}
Date: {{.Date}}

Evidence attached: {{.EvidenceList}}`

const templateVersion = 1

// Claim is the subset of a DetectionResult the Brief Generator renders
// from, plus the identifiers needed to address the reimbursement request.
type Claim struct {
	SellerID    string
	DetectionID string
	AnomalyType domain.AnomalyType
	OrderID     string
	ShipmentID  string
	SKU         string
	ASIN        string
	Quantity    int
	Amount      string
	Currency    string
	Date        string
}

// Generate implements spec.md §4.7's operation end to end: selects a
// template by anomalyType (with heuristic remapping for unrecognized
// types), renders subject/body, fingerprints the evidence manifest and
// signs it, and assembles a stable reportId.
func Generate(claim Claim, evidence map[string]any, evidenceFilenames []string, preparedOnIso string) (domain.Brief, error) {
	tmplName := selectTemplate(string(claim.AnomalyType))
	tmpl := templates[tmplName]

	var body bytes.Buffer
	data := struct {
		OrderID      string
		ShipmentID   string
		SKU          string
		Quantity     int
		Amount       string
		Currency     string
		Date         string
		EvidenceList string
	}{
		OrderID:      claim.OrderID,
		ShipmentID:   claim.ShipmentID,
		SKU:          skuOrASIN(claim.SKU, claim.ASIN),
		Quantity:     claim.Quantity,
		Amount:       claim.Amount,
		Currency:     claim.Currency,
		Date:         claim.Date,
		EvidenceList: strings.Join(evidenceFilenames, ", "),
	}
	if err := tmpl.Execute(&body, data); err != nil {
		return domain.Brief{}, err
	}

	evidenceFingerprint, err := canonical.Digest(evidence)
	if err != nil {
		return domain.Brief{}, err
	}
	signature := canonical.Signature(evidenceFingerprint, templateVersion, preparedOnIso)

	reportID, err := buildReportID(claim.SellerID, claim.DetectionID, templateVersion)
	if err != nil {
		return domain.Brief{}, err
	}

	return domain.Brief{
		DetectionID:         claim.DetectionID,
		TemplateVersion:     templateVersion,
		ReportID:            reportID,
		Subject:             subjectFor(tmplName, claim),
		Body:                body.String(),
		PolicyCited:         policyFor(tmplName),
		EvidenceFilenames:   evidenceFilenames,
		EvidenceFingerprint: evidenceFingerprint,
		Signature:           signature,
	}, nil
}

// selectTemplate implements spec.md §4.7's heuristic remapping: types
// containing "missing"/"lost" map to the inbound-shipment template,
// "return"/"refund" to the refund template, "damage" to the damaged
// template; anything else falls back to default.
func selectTemplate(anomalyType string) string {
	if _, ok := templates[anomalyType]; ok {
		return anomalyType
	}
	lower := strings.ToLower(anomalyType)
	switch {
	case strings.Contains(lower, "missing"), strings.Contains(lower, "lost"):
		return templateMissingInbound
	case strings.Contains(lower, "return"), strings.Contains(lower, "refund"):
		return templateRefundNoReturn
	case strings.Contains(lower, "damage"):
		return templateDamagedWarehouse
	default:
		return templateDefault
	}
}

func subjectFor(tmplName string, claim Claim) string {
	switch tmplName {
	case templateMissingInbound:
		return fmt.Sprintf("Reimbursement request: missing inbound inventory (order %s)", claim.OrderID)
	case templateRefundNoReturn:
		return fmt.Sprintf("Reimbursement request: refund issued without return (order %s)", claim.OrderID)
	case templateDamagedWarehouse:
		return fmt.Sprintf("Reimbursement request: warehouse loss/damage (order %s)", claim.OrderID)
	default:
		return fmt.Sprintf("Reimbursement request: account discrepancy (order %s)", claim.OrderID)
	}
}

func policyFor(tmplName string) string {
	switch tmplName {
	case templateMissingInbound:
		return "lost-inbound-inventory"
	case templateRefundNoReturn:
		return "refund-without-return"
	case templateDamagedWarehouse:
		return "warehouse-damage-loss"
	default:
		return "general-discrepancy"
	}
}

func skuOrASIN(sku, asin string) string {
	if sku != "" {
		return sku
	}
	return asin
}

// buildReportID implements spec.md §4.7's format:
// "<sellerId>-<detectionId>-v<templateVersion>-<shortId(digest(sellerId+detectionId+templateVersion))>".
func buildReportID(sellerID, detectionID string, version int) (string, error) {
	seed := fmt.Sprintf("%s%s%d", sellerID, detectionID, version)
	digest, err := canonical.Digest(seed)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-v%d-%s", sellerID, detectionID, version, canonical.ShortID(digest)), nil
}
