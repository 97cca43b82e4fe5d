package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/metrics"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"go.uber.org/zap"
)

// RefundPolicy decides how much value a balance-transfer refund returns.
type RefundPolicy string

const (
	// RefundGross returns the full gross: net from the payee and the fee from
	// the treasury.
	RefundGross RefundPolicy = "gross"
	// RefundNet returns only what the payee received; the fee is retained.
	RefundNet RefundPolicy = "net"
)

func ParseRefundPolicy(s string) (RefundPolicy, error) {
	switch RefundPolicy(s) {
	case RefundGross, RefundNet:
		return RefundPolicy(s), nil
	case "":
		return RefundGross, nil
	}
	return "", fmt.Errorf("unknown refund policy %q (want gross or net)", s)
}

// Options carries the identities and policies every service needs.
type Options struct {
	Operator     models.Address
	Treasury     models.Address
	RefundPolicy RefundPolicy
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// engine holds what the engine services share: the ledger, the event bus
// and the clock. Events are published only after the ledger commits.
type engine struct {
	ledger    repositories.Ledger
	publisher events.Publisher
	metrics   *metrics.EscrowMetrics
	opts      Options
	log       *zap.Logger
}

func newEngine(ledger repositories.Ledger, publisher events.Publisher, opts Options, log *zap.Logger) *engine {
	if opts.RefundPolicy == "" {
		opts.RefundPolicy = RefundGross
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &engine{
		ledger:    ledger,
		publisher: publisher,
		metrics:   metrics.Escrow(),
		opts:      opts,
		log:       log,
	}
}

func (e *engine) now() time.Time {
	if e.opts.Now != nil {
		return e.opts.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *engine) publish(ctx context.Context, evts ...*models.Event) {
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		if evt.AfterStatus != "" && evt.AfterStatus != evt.BeforeStatus {
			e.metrics.ObserveTransition(evt.AfterStatus)
		}
		if e.publisher == nil {
			continue
		}
		err := e.publisher.Publish(ctx, events.StreamPayments, events.Event{Type: events.EventLedger, Ledger: evt})
		if err != nil {
			e.log.Warn("failed to publish ledger event",
				zap.String("type", evt.Type), zap.Int64("seq", evt.Seq), zap.Error(err))
		}
	}
}

// fail records a rejected operation and returns err translated into the
// engine taxonomy.
func (e *engine) fail(op string, err error) error {
	err = translate(err)
	kind := KindOf(err)
	e.metrics.ObserveRejection(op, string(kind))
	if kind == "" {
		e.log.Error("engine operation failed", zap.String("op", op), zap.Error(err))
	} else {
		e.log.Debug("engine operation rejected", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (e *engine) requireOperator(caller models.Address, perm string) error {
	if !rbac.Can(rbac.RolesFor(caller, e.opts.Operator, nil), perm) {
		return reject(ErrUnauthorized, "%s is operator only", perm)
	}
	return nil
}

func (e *engine) requireRunning(ctx context.Context, tx repositories.Tx) (models.Settings, error) {
	s, err := tx.Settings(ctx)
	if err != nil {
		return s, err
	}
	if s.Paused {
		return s, reject(ErrPaused, "engine is paused")
	}
	return s, nil
}
