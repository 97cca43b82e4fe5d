package models

import "time"

type PaymentID int64

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusSettled  = "settled"
	PaymentStatusDisputed = "disputed"
	PaymentStatusRefunded = "refunded"
)

// Settlement methods
const (
	MethodBalanceTransfer     = "balance_transfer"
	MethodExternalAttestation = "external_attestation"
)

// Valid state transitions: from -> []to
var ValidPaymentTransitions = map[string][]string{
	PaymentStatusPending:  {PaymentStatusSettled},
	PaymentStatusSettled:  {PaymentStatusDisputed, PaymentStatusRefunded},
	PaymentStatusDisputed: {PaymentStatusRefunded},
	PaymentStatusRefunded: {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidPaymentTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidMethod(method string) bool {
	return method == MethodBalanceTransfer || method == MethodExternalAttestation
}

// Payment is a single rent obligation. Gross, payer and payee are fixed at
// creation; net/fee are recorded at settlement time.
type Payment struct {
	ID               PaymentID  `json:"id"`
	Payer            Address    `json:"payer"`
	Payee            Address    `json:"payee"`
	PropertyRef      string     `json:"property_ref"`
	GrossAmount      Amount     `json:"gross_amount"`
	DueAt            time.Time  `json:"due_at"`
	CreatedAt        time.Time  `json:"created_at"`
	Status           string     `json:"status"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
	SettlementMethod string     `json:"settlement_method,omitempty"`
	ExternalRef      string     `json:"external_ref,omitempty"`
	FeeBps           int        `json:"fee_bps"`
	NetAmount        Amount     `json:"net_amount"`
	FeeAmount        Amount     `json:"fee_amount"`
	DisputeReason    string     `json:"dispute_reason,omitempty"`
	DisputedBy       Address    `json:"disputed_by,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
	RefundedAmount   Amount     `json:"refunded_amount"`
}

// Clone returns a deep copy so callers can mutate it without touching the
// stored instance.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.SettledAt != nil {
		t := *p.SettledAt
		clone.SettledAt = &t
	}
	if p.RefundedAt != nil {
		t := *p.RefundedAt
		clone.RefundedAt = &t
	}
	return &clone
}

// IsParty reports whether addr is the payer or the payee.
func (p *Payment) IsParty(addr Address) bool {
	return addr == p.Payer || addr == p.Payee
}

// IsOverdue is derived on read; nothing transitions on the passage of time.
func (p *Payment) IsOverdue(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.DueAt)
}

// SettledOnTime reports whether the payment reached settlement no later than
// its due date.
func (p *Payment) SettledOnTime() bool {
	return p.SettledAt != nil && !p.SettledAt.After(p.DueAt)
}
