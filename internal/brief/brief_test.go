// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package brief

import (
	"testing"

	"github.com/luxfi/reimburse/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestGenerate_IdenticalInputsProduceIdenticalSignatureAndReportID(t *testing.T) {
	require := require.New(t)
	claim := Claim{
		SellerID:    "S1",
		DetectionID: "D1",
		AnomalyType: domain.AnomalyMissingInboundShipment,
		OrderID:     "O1",
		ShipmentID:  "SH1",
		SKU:         "SKU1",
		Quantity:    3,
		Amount:      "45.00",
		Currency:    "USD",
		Date:        "2024-06-01",
	}
	evidence := map[string]any{"shipmentId": "SH1", "missingQty": 3}

	a, err := Generate(claim, evidence, []string{"manifest.pdf"}, "2024-06-02T00:00:00Z")
	require.NoError(err)
	b, err := Generate(claim, evidence, []string{"manifest.pdf"}, "2024-06-02T00:00:00Z")
	require.NoError(err)

	require.Equal(a.Signature, b.Signature)
	require.Equal(a.ReportID, b.ReportID)
	require.Equal(a.Body, b.Body)
}

func TestGenerate_SelectsInboundTemplateForMissingType(t *testing.T) {
	require := require.New(t)
	claim := Claim{SellerID: "S1", DetectionID: "D1", AnomalyType: domain.AnomalyMissingInboundShipment, OrderID: "O1"}
	b, err := Generate(claim, map[string]any{}, nil, "2024-06-02T00:00:00Z")
	require.NoError(err)
	require.Equal("lost-inbound-inventory", b.PolicyCited)
}

func TestGenerate_FallsBackToDefaultForUnknownType(t *testing.T) {
	require := require.New(t)
	claim := Claim{SellerID: "S1", DetectionID: "D1", AnomalyType: domain.AnomalyType("some_unclassified_type"), OrderID: "O1"}
	b, err := Generate(claim, map[string]any{}, nil, "2024-06-02T00:00:00Z")
	require.NoError(err)
	require.Equal("general-discrepancy", b.PolicyCited)
}

func TestGenerate_HeuristicRemapsRefundType(t *testing.T) {
	require := require.New(t)
	claim := Claim{SellerID: "S1", DetectionID: "D1", AnomalyType: domain.AnomalyRefundMismatch, OrderID: "O1"}
	b, err := Generate(claim, map[string]any{}, nil, "2024-06-02T00:00:00Z")
	require.NoError(err)
	require.Equal("refund-without-return", b.PolicyCited)
}

func TestGenerate_DifferentPreparedOnProducesDifferentSignature(t *testing.T) {
	require := require.New(t)
	claim := Claim{SellerID: "S1", DetectionID: "D1", AnomalyType: domain.AnomalyMissingInboundShipment, OrderID: "O1"}
	evidence := map[string]any{"a": 1}

	a, err := Generate(claim, evidence, nil, "2024-06-02T00:00:00Z")
	require.NoError(err)
	b, err := Generate(claim, evidence, nil, "2024-06-03T00:00:00Z")
	require.NoError(err)

	require.NotEqual(a.Signature, b.Signature)
	require.Equal(a.ReportID, b.ReportID)
}
