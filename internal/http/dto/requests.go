package dto

import (
	"time"

	"github.com/rentchain/escrow/internal/auth"
	"github.com/shopspring/decimal"
)

type ChallengeRequest struct{}

type VerifyRequest struct {
	auth.WalletProof
}

type CreatePaymentRequest struct {
	Payee       string          `json:"payee"`
	PropertyRef string          `json:"property_ref,omitempty"`
	Amount      decimal.Decimal `json:"amount"` // "1000.00", в валюте расчётов, не micro units
	DueAt       time.Time       `json:"due_at"`
}

type SettlePaymentRequest struct {
	Method      string `json:"method"` // balance_transfer / external_attestation
	ExternalRef string `json:"external_ref,omitempty"`
}

type DisputePaymentRequest struct {
	Reason string `json:"reason"`
}

type SetAllowanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type DepositRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

type SetFeeRateRequest struct {
	FeeBps *int `json:"fee_bps"`
}
