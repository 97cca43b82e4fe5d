package dto

import (
	"time"

	"github.com/rentchain/escrow/internal/fees"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/services"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// Money renders micro units as a decimal string ("995.000000").
func Money(a models.Amount) decimal.Decimal {
	return decimal.New(int64(a), -models.AmountDecimals)
}

// ToAmount converts a request amount into micro units.
func ToAmount(d decimal.Decimal) (models.Amount, error) {
	return models.ParseAmount(d.String())
}

type PaymentResponse struct {
	ID               models.PaymentID `json:"id"`
	Payer            models.Address   `json:"payer"`
	Payee            models.Address   `json:"payee"`
	PropertyRef      string           `json:"property_ref,omitempty"`
	Gross            decimal.Decimal  `json:"gross_amount"`
	DueAt            time.Time        `json:"due_at"`
	CreatedAt        time.Time        `json:"created_at"`
	Status           string           `json:"status"`
	Overdue          bool             `json:"overdue"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
	SettlementMethod string           `json:"settlement_method,omitempty"`
	ExternalRef      string           `json:"external_ref,omitempty"`
	FeeBps           int              `json:"fee_bps"`
	Net              decimal.Decimal  `json:"net_amount"`
	Fee              decimal.Decimal  `json:"fee_amount"`
	DisputeReason    string           `json:"dispute_reason,omitempty"`
	DisputedBy       models.Address   `json:"disputed_by,omitempty"`
	RefundedAt       *time.Time       `json:"refunded_at,omitempty"`
	Refunded         decimal.Decimal  `json:"refunded_amount"`
}

func NewPaymentResponse(p *models.Payment, now time.Time) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		Payer:            p.Payer,
		Payee:            p.Payee,
		PropertyRef:      p.PropertyRef,
		Gross:            Money(p.GrossAmount),
		DueAt:            p.DueAt,
		CreatedAt:        p.CreatedAt,
		Status:           p.Status,
		Overdue:          p.IsOverdue(now),
		SettledAt:        p.SettledAt,
		SettlementMethod: p.SettlementMethod,
		ExternalRef:      p.ExternalRef,
		FeeBps:           p.FeeBps,
		Net:              Money(p.NetAmount),
		Fee:              Money(p.FeeAmount),
		DisputeReason:    p.DisputeReason,
		DisputedBy:       p.DisputedBy,
		RefundedAt:       p.RefundedAt,
		Refunded:         Money(p.RefundedAmount),
	}
}

func NewPaymentList(ps []*models.Payment, now time.Time) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewPaymentResponse(p, now))
	}
	return out
}

type EventResponse struct {
	Seq          int64             `json:"seq"`
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	PaymentID    *models.PaymentID `json:"payment_id,omitempty"`
	Actor        models.Address    `json:"actor"`
	BeforeStatus string            `json:"before_status,omitempty"`
	AfterStatus  string            `json:"after_status,omitempty"`
	Gross        decimal.Decimal   `json:"gross"`
	Net          decimal.Decimal   `json:"net"`
	Fee          decimal.Decimal   `json:"fee"`
	FeeBps       int               `json:"fee_bps"`
	Returned     decimal.Decimal   `json:"returned"`
	Method       string            `json:"method,omitempty"`
	ExternalRef  string            `json:"external_ref,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Reconcile    bool              `json:"reconcile,omitempty"`
	At           time.Time         `json:"at"`
}

func NewEventList(evts []models.Event) []EventResponse {
	out := make([]EventResponse, 0, len(evts))
	for _, e := range evts {
		out = append(out, EventResponse{
			Seq:          e.Seq,
			ID:           e.ID.String(),
			Type:         e.Type,
			PaymentID:    e.PaymentID,
			Actor:        e.Actor,
			BeforeStatus: e.BeforeStatus,
			AfterStatus:  e.AfterStatus,
			Gross:        Money(e.Gross),
			Net:          Money(e.Net),
			Fee:          Money(e.Fee),
			FeeBps:       e.FeeBps,
			Returned:     Money(e.Returned),
			Method:       e.Method,
			ExternalRef:  e.ExternalRef,
			Reason:       e.Reason,
			Reconcile:    e.Reconcile,
			At:           e.At,
		})
	}
	return out
}

type AccountResponse struct {
	Address   models.Address  `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	Allowance decimal.Decimal `json:"allowance"`
}

func NewAccountResponse(a models.Account) AccountResponse {
	return AccountResponse{Address: a.Address, Balance: Money(a.Balance), Allowance: Money(a.Allowance)}
}

type QuoteResponse struct {
	Gross  decimal.Decimal `json:"gross"`
	Net    decimal.Decimal `json:"net"`
	Fee    decimal.Decimal `json:"fee"`
	FeeBps int             `json:"fee_bps"`
}

func NewQuoteResponse(q fees.Quote) QuoteResponse {
	return QuoteResponse{Gross: Money(q.Gross), Net: Money(q.Net), Fee: Money(q.Fee), FeeBps: q.FeeBps}
}

type PlatformStatsResponse struct {
	TotalPayments         int64           `json:"total_payments"`
	BalanceTransferVolume decimal.Decimal `json:"balance_transfer_volume"`
	AttestationVolume     decimal.Decimal `json:"attestation_volume"`
	FeesCollected         decimal.Decimal `json:"fees_collected"`
	RefundedVolume        decimal.Decimal `json:"refunded_volume"`
	FeeBps                int             `json:"fee_bps"`
	Paused                bool            `json:"paused"`
}

func NewPlatformStatsResponse(s services.PlatformStats) PlatformStatsResponse {
	return PlatformStatsResponse{
		TotalPayments:         s.TotalPayments,
		BalanceTransferVolume: Money(s.BalanceTransferVolume),
		AttestationVolume:     Money(s.AttestationVolume),
		FeesCollected:         Money(s.FeesCollected),
		RefundedVolume:        Money(s.RefundedVolume),
		FeeBps:                s.FeeBps,
		Paused:                s.Paused,
	}
}
