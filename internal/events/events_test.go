package events

import (
	"context"
	"testing"

	"github.com/rentchain/escrow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestEventParties(t *testing.T) {
	payer := models.Address("0x00000000000000000000000000000000000000a1")
	payee := models.Address("0x00000000000000000000000000000000000000b0")

	e := Event{Type: EventLedger, Ledger: &models.Event{Payer: payer, Payee: payee, Actor: payer}}
	require.Equal(t, []models.Address{payer, payee}, e.Parties())

	notice := Event{Type: EventPaymentOverdue, Payload: map[string]any{"payer": string(payer)}}
	require.Equal(t, []models.Address{payer}, notice.Parties())

	require.Empty(t, Event{Type: EventLedger, Ledger: &models.Event{Actor: models.ZeroAddress}}.Parties())
}

func TestMemoryBus(t *testing.T) {
	bus := NewMemoryBus()
	var got []string
	require.NoError(t, bus.Subscribe(context.Background(), StreamPayments, func(e Event) {
		got = append(got, e.Type)
	}))

	require.NoError(t, bus.Publish(context.Background(), StreamPayments, Event{Type: EventLedger}))
	require.NoError(t, bus.Publish(context.Background(), StreamNotify, Event{Type: EventPaymentOverdue}))
	require.Equal(t, []string{EventLedger}, got)
}
