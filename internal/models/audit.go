package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventPaymentCreated  = "payment_created"
	EventPaymentSettled  = "payment_settled"
	EventPaymentDisputed = "payment_disputed"
	EventPaymentRefunded = "payment_refunded"
	EventFeeRateUpdated  = "fee_rate_updated"
	EventEnginePaused    = "engine_paused"
	EventEngineUnpaused  = "engine_unpaused"
	EventAllowanceSet    = "allowance_set"
	EventFundsDeposited  = "funds_deposited"
)

// Event is one immutable audit record, written in the same atomic scope as
// the mutation it describes. Payment events carry enough of the record to
// rebuild it by replay.
type Event struct {
	Seq          int64      `json:"seq"`
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"`
	PaymentID    *PaymentID `json:"payment_id,omitempty"`
	Actor        Address    `json:"actor"`
	BeforeStatus string     `json:"before_status,omitempty"`
	AfterStatus  string     `json:"after_status,omitempty"`
	Payer        Address    `json:"payer,omitempty"`
	Payee        Address    `json:"payee,omitempty"`
	PropertyRef  string     `json:"property_ref,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	Gross        Amount     `json:"gross"`
	Net          Amount     `json:"net"`
	Fee          Amount     `json:"fee"`
	FeeBps       int        `json:"fee_bps"`
	Returned     Amount     `json:"returned"`
	Method       string     `json:"method,omitempty"`
	ExternalRef  string     `json:"external_ref,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Reconcile    bool       `json:"reconcile,omitempty"`
	At           time.Time  `json:"at"`
}

// NewPaymentEvent builds a transition record from the before/after views of
// a payment.
func NewPaymentEvent(eventType string, actor Address, before string, after *Payment, at time.Time) *Event {
	id := after.ID
	due := after.DueAt
	return &Event{
		ID:           uuid.New(),
		Type:         eventType,
		PaymentID:    &id,
		Actor:        actor,
		BeforeStatus: before,
		AfterStatus:  after.Status,
		Payer:        after.Payer,
		Payee:        after.Payee,
		PropertyRef:  after.PropertyRef,
		DueAt:        &due,
		Gross:        after.GrossAmount,
		Net:          after.NetAmount,
		Fee:          after.FeeAmount,
		FeeBps:       after.FeeBps,
		Returned:     after.RefundedAmount,
		Method:       after.SettlementMethod,
		ExternalRef:  after.ExternalRef,
		Reason:       after.DisputeReason,
		At:           at,
	}
}

// IsPaymentEvent reports whether the event describes a payment transition.
func (e *Event) IsPaymentEvent() bool {
	return e.PaymentID != nil
}

type EventFilter struct {
	PaymentID *PaymentID
	Type      string
	AfterSeq  int64
	Limit     int
}
