package services

import (
	"context"
	"strconv"
	"time"

	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/metrics"
	"github.com/rentchain/escrow/internal/models"
	"go.uber.org/zap"
)

// Marker records one-off side effects so they are not repeated.
type Marker interface {
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// OverdueNotifier announces payments that passed their due date while still
// pending. Being overdue changes nothing in the ledger; this is a notice only.
type OverdueNotifier struct {
	payments  *PaymentService
	marker    Marker
	publisher events.Publisher
	ttl       time.Duration
	log       *zap.Logger
}

func NewOverdueNotifier(payments *PaymentService, marker Marker, publisher events.Publisher, ttl time.Duration, log *zap.Logger) *OverdueNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &OverdueNotifier{payments: payments, marker: marker, publisher: publisher, ttl: ttl, log: log}
}

// Scan publishes one notice per overdue payment per ttl window and returns
// how many it sent.
func (n *OverdueNotifier) Scan(ctx context.Context) (int, error) {
	overdue, err := n.payments.Overdue(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, p := range overdue {
		first, err := n.marker.Mark(ctx, strconv.FormatInt(int64(p.ID), 10), n.ttl)
		if err != nil {
			n.log.Error("failed to mark overdue notice", zap.Int64("payment_id", int64(p.ID)), zap.Error(err))
			continue
		}
		if !first {
			continue
		}

		err = n.publisher.Publish(ctx, events.StreamNotify, events.Event{
			Type: events.EventPaymentOverdue,
			Payload: map[string]any{
				"payment_id": int64(p.ID),
				"payer":      p.Payer.String(),
				"payee":      p.Payee.String(),
				"gross":      p.GrossAmount.String(),
				"due_at":     p.DueAt,
			},
		})
		if err != nil {
			n.log.Warn("failed to publish overdue notice", zap.Int64("payment_id", int64(p.ID)), zap.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 {
		n.log.Info("overdue notices sent", zap.Int("count", sent), zap.Int("overdue", len(overdue)))
	}
	return sent, nil
}

// Notifier delivers a notification outside the platform.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifyForwarder turns bus events into webhook notifications. Attestation
// refunds are flagged for reconciliation and always copied to the operator.
type NotifyForwarder struct {
	notifier Notifier
	operator models.Address
	now      func() time.Time
	metrics  *metrics.EscrowMetrics
	log      *zap.Logger
}

func NewNotifyForwarder(notifier Notifier, operator models.Address, log *zap.Logger) *NotifyForwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifyForwarder{
		notifier: notifier,
		operator: operator,
		now:      time.Now,
		metrics:  metrics.Escrow(),
		log:      log,
	}
}

// Build returns the notification for event, or false when the event is not
// something parties are told about (allowance changes, deposits).
func (f *NotifyForwarder) Build(event events.Event) (Notification, bool) {
	n := Notification{Kind: event.Type, Type: event.Type, SentAt: f.now().UTC()}

	switch event.Type {
	case events.EventLedger:
		e := event.Ledger
		if e == nil || !e.IsPaymentEvent() {
			return Notification{}, false
		}
		id := int64(*e.PaymentID)
		n.Type = e.Type
		n.PaymentID = &id
		n.Reconcile = e.Reconcile
		n.Event = e
	case events.EventPaymentOverdue:
		if v, ok := event.Payload["payment_id"]; ok {
			if id, ok := toInt64(v); ok {
				n.PaymentID = &id
			}
		}
		n.Event = event.Payload
	default:
		return Notification{}, false
	}

	parties := event.Parties()
	if n.Reconcile {
		parties = appendUnique(parties, f.operator)
	}
	n.Recipients = make([]string, 0, len(parties))
	for _, a := range parties {
		n.Recipients = append(n.Recipients, a.String())
	}
	return n, true
}

func (f *NotifyForwarder) Handle(ctx context.Context, event events.Event) error {
	n, ok := f.Build(event)
	if !ok {
		return nil
	}
	err := f.notifier.Notify(ctx, n)
	f.metrics.ObserveNotification(n.Kind, err == nil)
	if err != nil {
		f.log.Warn("failed to forward notification", zap.String("type", n.Type), zap.Error(err))
		return err
	}
	f.log.Debug("notification forwarded", zap.String("type", n.Type), zap.Strings("recipients", n.Recipients))
	return nil
}

func appendUnique(list []models.Address, a models.Address) []models.Address {
	if a.IsZero() {
		return list
	}
	for _, x := range list {
		if x == a {
			return list
		}
	}
	return append(list, a)
}

// toInt64 accepts the numeric shapes a payload value takes before and after
// a JSON round trip.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
