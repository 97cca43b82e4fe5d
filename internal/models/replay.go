package models

import "fmt"

// ReplayPayments rebuilds payment records from an ordered event stream.
// Non-payment events are skipped.
func ReplayPayments(events []Event) (map[PaymentID]*Payment, error) {
	out := make(map[PaymentID]*Payment)
	for i := range events {
		e := &events[i]
		if !e.IsPaymentEvent() {
			continue
		}
		id := *e.PaymentID
		p, exists := out[id]
		if e.Type == EventPaymentCreated {
			if exists {
				return nil, fmt.Errorf("replay: payment %d created twice", id)
			}
			p = &Payment{
				ID:          id,
				Payer:       e.Payer,
				Payee:       e.Payee,
				PropertyRef: e.PropertyRef,
				GrossAmount: e.Gross,
				CreatedAt:   e.At,
				Status:      PaymentStatusPending,
			}
			if e.DueAt != nil {
				p.DueAt = *e.DueAt
			}
			out[id] = p
			continue
		}
		if !exists {
			return nil, fmt.Errorf("replay: event %s for unknown payment %d", e.Type, id)
		}
		if p.Status != e.BeforeStatus || !IsValidTransition(e.BeforeStatus, e.AfterStatus) {
			return nil, fmt.Errorf("replay: payment %d cannot move %s -> %s", id, p.Status, e.AfterStatus)
		}
		at := e.At
		switch e.Type {
		case EventPaymentSettled:
			p.SettledAt = &at
			p.SettlementMethod = e.Method
			p.ExternalRef = e.ExternalRef
			p.FeeBps = e.FeeBps
			p.NetAmount = e.Net
			p.FeeAmount = e.Fee
		case EventPaymentDisputed:
			p.DisputeReason = e.Reason
			p.DisputedBy = e.Actor
		case EventPaymentRefunded:
			p.RefundedAt = &at
			p.RefundedAmount = e.Returned
		default:
			return nil, fmt.Errorf("replay: unknown payment event %s", e.Type)
		}
		p.Status = e.AfterStatus
	}
	return out, nil
}
