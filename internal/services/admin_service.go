package services

import (
	"context"
	"strconv"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/fees"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"go.uber.org/zap"
)

// AdminService holds the operator controls: fee rate and pause.
type AdminService struct {
	*engine
}

func NewAdminService(ledger repositories.Ledger, publisher events.Publisher, opts Options, log *zap.Logger) *AdminService {
	return &AdminService{engine: newEngine(ledger, publisher, opts, log)}
}

// SetFeeRate applies to settlements from now on. Settled payments keep the
// fee they were charged.
func (s *AdminService) SetFeeRate(ctx context.Context, caller models.Address, rateBps int) (models.Settings, error) {
	const op = "set_fee_rate"

	if err := s.requireOperator(caller, rbac.PermSetFeeRate); err != nil {
		return models.Settings{}, s.fail(op, err)
	}
	if err := fees.ValidateRate(rateBps); err != nil {
		return models.Settings{}, s.fail(op, reject(ErrFeeAboveCeiling, "%v", err))
	}

	var (
		out models.Settings
		evt *models.Event
	)
	now := s.now()
	err := s.ledger.Apply(ctx, func(ctx context.Context, tx repositories.Tx) error {
		settings, err := tx.SettingsForUpdate(ctx)
		if err != nil {
			return err
		}
		previous := settings.FeeBps
		settings.FeeBps = rateBps
		if err := tx.PutSettings(ctx, settings); err != nil {
			return err
		}
		out = settings
		evt = &models.Event{
			Type:   models.EventFeeRateUpdated,
			Actor:  caller,
			FeeBps: rateBps,
			Reason: "previous_fee_bps=" + strconv.Itoa(previous),
			At:     now,
		}
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return models.Settings{}, s.fail(op, err)
	}

	s.log.Info("fee rate updated", zap.Int("fee_bps", rateBps))
	s.publish(ctx, evt)
	return out, nil
}

func (s *AdminService) Pause(ctx context.Context, caller models.Address) (models.Settings, error) {
	return s.setPaused(ctx, caller, true)
}

func (s *AdminService) Unpause(ctx context.Context, caller models.Address) (models.Settings, error) {
	return s.setPaused(ctx, caller, false)
}

func (s *AdminService) setPaused(ctx context.Context, caller models.Address, paused bool) (models.Settings, error) {
	op, eventType := "unpause", models.EventEngineUnpaused
	if paused {
		op, eventType = "pause", models.EventEnginePaused
	}

	if err := s.requireOperator(caller, rbac.PermPause); err != nil {
		return models.Settings{}, s.fail(op, err)
	}

	var (
		out models.Settings
		evt *models.Event
	)
	now := s.now()
	err := s.ledger.Apply(ctx, func(ctx context.Context, tx repositories.Tx) error {
		settings, err := tx.SettingsForUpdate(ctx)
		if err != nil {
			return err
		}
		if settings.Paused == paused {
			return reject(ErrInvalidState, "engine paused=%v already", paused)
		}
		settings.Paused = paused
		if err := tx.PutSettings(ctx, settings); err != nil {
			return err
		}
		out = settings
		evt = &models.Event{Type: eventType, Actor: caller, At: now}
		return tx.Append(ctx, evt)
	})
	if err != nil {
		return models.Settings{}, s.fail(op, err)
	}

	s.metrics.SetPaused(paused)
	s.log.Warn("engine pause state changed", zap.Bool("paused", paused), zap.String("by", caller.String()))
	s.publish(ctx, evt)
	return out, nil
}

func (s *AdminService) Settings(ctx context.Context) (models.Settings, error) {
	return s.ledger.Settings(ctx)
}

// Quote splits gross at the current fee rate without touching the ledger.
func (s *AdminService) Quote(ctx context.Context, gross models.Amount) (fees.Quote, error) {
	if gross <= 0 {
		return fees.Quote{}, reject(ErrInvalidAmount, "amount must be positive")
	}
	settings, err := s.ledger.Settings(ctx)
	if err != nil {
		return fees.Quote{}, err
	}
	return fees.NewQuote(gross, settings.FeeBps), nil
}
