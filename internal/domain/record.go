// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package domain holds the typed entities ingested from the marketplace and
// produced by the recovery pipeline. Every entity that originates upstream
// carries a RawPayload so the canonicalizer can fingerprint it without the
// rest of the system ever inspecting unknown fields.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind names one of the six marketplace record kinds the ingestion
// stage pulls pages of.
type RecordKind string

const (
	KindOrder             RecordKind = "orders"
	KindShipment          RecordKind = "shipments"
	KindReturn            RecordKind = "returns"
	KindSettlement        RecordKind = "settlements"
	KindInventoryLedger   RecordKind = "inventory_ledger"
	KindFinancialEvent    RecordKind = "financial_events"
)

// AllKinds enumerates every record kind in a stable order, used by
// ingestion to fan out one stream per kind.
var AllKinds = []RecordKind{
	KindOrder,
	KindShipment,
	KindReturn,
	KindSettlement,
	KindInventoryLedger,
	KindFinancialEvent,
}

// Order is an immutable-once-set marketplace order.
type Order struct {
	SellerID    string          `json:"sellerId"`
	OrderID     string          `json:"orderId"`
	OrderDate   time.Time       `json:"orderDate"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Channel     string          `json:"channel"`
	RawPayload  json.RawMessage `json:"rawPayload,omitempty"`
}

func (o Order) EntityID() string { return o.OrderID }

// Shipment tracks expected vs received inbound quantity; MissingQty is
// derived by ingestion, never trusted from upstream.
type Shipment struct {
	SellerID    string          `json:"sellerId"`
	ShipmentID  string          `json:"shipmentId"`
	OrderID     string          `json:"orderId,omitempty"`
	SKU         string          `json:"sku"`
	ExpectedQty int             `json:"expectedQty"`
	ReceivedQty int             `json:"receivedQty"`
	MissingQty  int             `json:"missingQty"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	Currency    string          `json:"currency"`
	ShippedDate time.Time       `json:"shippedDate"`
	RawPayload  json.RawMessage `json:"rawPayload,omitempty"`
}

func (s Shipment) EntityID() string { return s.ShipmentID }

// Return references the order it was issued against.
type Return struct {
	SellerID     string          `json:"sellerId"`
	ReturnID     string          `json:"returnId"`
	OrderID      string          `json:"orderId"`
	SKU          string          `json:"sku,omitempty"`
	ASIN         string          `json:"asin,omitempty"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	Currency     string          `json:"currency"`
	ReturnedDate time.Time       `json:"returnedDate"`
	RawPayload   json.RawMessage `json:"rawPayload,omitempty"`
}

func (r Return) EntityID() string { return r.ReturnID }

// Settlement is a periodic marketplace payout with associated fees.
type Settlement struct {
	SellerID       string          `json:"sellerId"`
	SettlementID   string          `json:"settlementId"`
	SKU            string          `json:"sku,omitempty"`
	SettlementDate time.Time       `json:"settlementDate"`
	Amount         decimal.Decimal `json:"amount"`
	Fees           decimal.Decimal `json:"fees"`
	UnitsSold      int             `json:"unitsSold"`
	Currency       string          `json:"currency"`
	RawPayload     json.RawMessage `json:"rawPayload,omitempty"`
}

func (s Settlement) EntityID() string { return s.SettlementID }

// InventoryLedgerEntry quantity is signed: positive for receipts, negative
// for adjustments/losses. Net per (sku, window) is the source of truth.
type InventoryLedgerEntry struct {
	SellerID  string          `json:"sellerId"`
	EventID   string          `json:"eventId"`
	SKU       string          `json:"sku"`
	FNSKU     string          `json:"fnsku,omitempty"`
	EventDate time.Time       `json:"eventDate"`
	EventType string          `json:"eventType"`
	Quantity  int             `json:"quantity"`

	// DimWeight/ActualWeight are optional: not every marketplace reports
	// dimensional-weight billing data. Zero-value (both unset) means the
	// micro-leak dimensional-weight sub-check must skip this entry.
	DimWeight    decimal.Decimal `json:"dimWeight,omitempty"`
	ActualWeight decimal.Decimal `json:"actualWeight,omitempty"`
	HasDimWeight bool            `json:"-"`

	RawPayload json.RawMessage `json:"rawPayload,omitempty"`
}

func (e InventoryLedgerEntry) EntityID() string { return e.EventID }

// FinancialEvent is the catch-all ledger of fees, reversals, reimbursement
// cases and cancellations the marketplace reports.
type FinancialEvent struct {
	SellerID   string          `json:"sellerId"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OrderID    string          `json:"orderId,omitempty"`
	SKU        string          `json:"sku,omitempty"`
	ASIN       string          `json:"asin,omitempty"`
	PostedDate time.Time       `json:"postedDate"`
	RawPayload json.RawMessage `json:"rawPayload,omitempty"`
}

func (e FinancialEvent) EntityID() string { return e.EventID }

// Financial event types recognized by the detection engine. Upstream may
// send others; detectors ignore what they don't recognize.
const (
	EventTypeFee               = "fee"
	EventTypeFeeReversal       = "fee_reversal"
	EventTypeCancellation      = "order_cancellation"
	EventTypeDamaged           = "damaged"
	EventTypeLost              = "lost"
	EventTypeDisposed          = "disposed"
	EventTypeDestroyed         = "destroyed"
	EventTypeReimbursementCase = "reimbursement_case"
)

// LossEventTypes are the loss-class event types checked by the
// loss-to-reimbursement correlation detector.
var LossEventTypes = map[string]bool{
	EventTypeDamaged:   true,
	EventTypeLost:      true,
	EventTypeDisposed:  true,
	EventTypeDestroyed: true,
}

// InboundEventType marks an inventory ledger entry as an inbound receipt,
// used by the inbound-to-inventory correlation detector.
const InboundEventType = "inbound_receipt"
