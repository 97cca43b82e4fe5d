package models

// Account holds a party's settlement-currency balance and the amount the owner
// has authorized the engine to pull on their behalf.
type Account struct {
	Address   Address `json:"address"`
	Balance   Amount  `json:"balance"`
	Allowance Amount  `json:"allowance"`
}

// Settings is the engine-wide mutable state: the fee policy rate and the
// operator pause flag. Treasury and operator identities come from config.
type Settings struct {
	FeeBps int  `json:"fee_bps"`
	Paused bool `json:"paused"`
}

// PlatformTotals aggregates the ledger for operational dashboards.
type PlatformTotals struct {
	TotalPayments         int64  `json:"total_payments"`
	BalanceTransferVolume Amount `json:"balance_transfer_volume"`
	AttestationVolume     Amount `json:"attestation_volume"`
	FeesCollected         Amount `json:"fees_collected"`
	RefundedVolume        Amount `json:"refunded_volume"`
}
