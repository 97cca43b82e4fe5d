package services

import (
	"context"

	"github.com/rentchain/escrow/internal/fees"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/repositories"
	"go.uber.org/zap"
)

// PartyStats is the read surface for reputation scoring.
type PartyStats struct {
	Address       models.Address `json:"address"`
	AsPayer       int            `json:"as_payer"`
	AsPayee       int            `json:"as_payee"`
	Pending       int            `json:"pending"`
	Settled       int            `json:"settled"`
	Disputed      int            `json:"disputed"`
	Refunded      int            `json:"refunded"`
	Overdue       int            `json:"overdue"`
	SettledOnTime int            `json:"settled_on_time"`
	// TimelinessBps is SettledOnTime over payments settled as payer, in basis
	// points. Zero when nothing was settled.
	TimelinessBps int `json:"timeliness_bps"`
}

type PlatformStats struct {
	models.PlatformTotals
	FeeBps int  `json:"fee_bps"`
	Paused bool `json:"paused"`
}

type StatsService struct {
	*engine
}

func NewStatsService(ledger repositories.Ledger, opts Options, log *zap.Logger) *StatsService {
	return &StatsService{engine: newEngine(ledger, nil, opts, log)}
}

func (s *StatsService) PartyStats(ctx context.Context, addr models.Address) (PartyStats, error) {
	st := PartyStats{Address: addr}
	ids, err := s.ledger.ListByParty(ctx, addr)
	if err != nil {
		return st, err
	}

	now := s.now()
	settledAsPayer := 0
	for _, id := range ids {
		p, err := s.ledger.Get(ctx, id)
		if err != nil {
			return st, translate(err)
		}
		if p.Payer == addr {
			st.AsPayer++
		}
		if p.Payee == addr {
			st.AsPayee++
		}
		switch p.Status {
		case models.PaymentStatusPending:
			st.Pending++
		case models.PaymentStatusSettled:
			st.Settled++
		case models.PaymentStatusDisputed:
			st.Disputed++
		case models.PaymentStatusRefunded:
			st.Refunded++
		}
		if p.IsOverdue(now) {
			st.Overdue++
		}
		if p.Payer == addr && p.SettledAt != nil {
			settledAsPayer++
			if p.SettledOnTime() {
				st.SettledOnTime++
			}
		}
	}
	if settledAsPayer > 0 {
		st.TimelinessBps = st.SettledOnTime * fees.BasisPoints / settledAsPayer
	}
	return st, nil
}

func (s *StatsService) PlatformStats(ctx context.Context) (PlatformStats, error) {
	totals, err := s.ledger.PlatformTotals(ctx)
	if err != nil {
		return PlatformStats{}, err
	}
	settings, err := s.ledger.Settings(ctx)
	if err != nil {
		return PlatformStats{}, err
	}
	return PlatformStats{PlatformTotals: totals, FeeBps: settings.FeeBps, Paused: settings.Paused}, nil
}
