package events

import (
	"context"

	"github.com/rentchain/escrow/internal/models"
)

// Streams
const (
	StreamPayments = "events:payment"
	StreamNotify   = "events:notify"
)

// Event types
const (
	EventLedger         = "ledger_event"
	EventPaymentOverdue = "payment_overdue"
)

// Event is what observers outside the engine receive. Ledger carries the
// committed audit record; Payload is used by notices that have no audit
// record behind them.
type Event struct {
	Type    string         `json:"type"`
	Ledger  *models.Event  `json:"ledger,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Parties returns the addresses the event concerns.
func (e Event) Parties() []models.Address {
	var out []models.Address
	add := func(a models.Address) {
		if a.IsZero() {
			return
		}
		for _, x := range out {
			if x == a {
				return
			}
		}
		out = append(out, a)
	}
	if e.Ledger != nil {
		add(e.Ledger.Payer)
		add(e.Ledger.Payee)
		add(e.Ledger.Actor)
	}
	for _, k := range []string{"payer", "payee"} {
		if s, ok := e.Payload[k].(string); ok {
			add(models.Address(s))
		}
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
