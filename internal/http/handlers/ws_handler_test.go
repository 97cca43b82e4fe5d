package handlers

import (
	"sync"
	"testing"
	"time"

	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/models"
	"github.com/stretchr/testify/require"
)

const (
	wsOperator = models.Address("0x00000000000000000000000000000000000000ff")
	wsTenant   = models.Address("0x00000000000000000000000000000000000000a1")
	wsLandlord = models.Address("0x00000000000000000000000000000000000000b0")
)

type recordingWriter struct {
	mu     sync.Mutex
	gate   chan struct{}
	active int
	peak   int
	frames [][]byte
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.mu.Lock()
	w.active++
	if w.active > w.peak {
		w.peak = w.active
	}
	w.mu.Unlock()

	if w.gate != nil {
		<-w.gate
	}

	w.mu.Lock()
	w.active--
	w.frames = append(w.frames, data)
	w.mu.Unlock()
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func newTestHub() *WSHub {
	return NewWSHub(&config.Config{OperatorAddress: wsOperator}, events.NewMemoryBus(), nil)
}

func TestWSHubStalledSocketDoesNotBlockOthers(t *testing.T) {
	h := newTestHub()
	stalled := &recordingWriter{gate: make(chan struct{})}
	h.register(wsTenant, stalled)

	stalledDone := make(chan struct{})
	go func() {
		h.SendTo(wsTenant, events.Event{Type: "ping"})
		close(stalledDone)
	}()
	require.Eventually(t, func() bool {
		stalled.mu.Lock()
		defer stalled.mu.Unlock()
		return stalled.active == 1
	}, time.Second, time.Millisecond)

	fast := &recordingWriter{}
	done := make(chan struct{})
	go func() {
		h.register(wsLandlord, fast)
		h.SendTo(wsLandlord, events.Event{Type: "ping"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send to a healthy socket waited on a stalled one")
	}
	require.Equal(t, 1, fast.count())
	require.Equal(t, 2, h.Connected(wsTenant)+h.Connected(wsLandlord))

	close(stalled.gate)
	<-stalledDone
	require.Equal(t, 1, stalled.count())
}

func TestWSHubSerializesWritesPerSocket(t *testing.T) {
	h := newTestHub()
	w := &recordingWriter{}
	h.register(wsTenant, w)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.SendTo(wsTenant, events.Event{Type: "ping"})
		}()
	}
	wg.Wait()

	require.Equal(t, 50, w.count())
	require.Equal(t, 1, w.peak)
}

func TestWSHubUnregister(t *testing.T) {
	h := newTestHub()
	a := h.register(wsTenant, &recordingWriter{})
	b := h.register(wsTenant, &recordingWriter{})
	require.Equal(t, 2, h.Connected(wsTenant))

	h.unregister(wsTenant, a)
	require.Equal(t, 1, h.Connected(wsTenant))
	h.unregister(wsTenant, b)
	require.Equal(t, 0, h.Connected(wsTenant))
	h.mu.RLock()
	_, ok := h.connections[wsTenant]
	h.mu.RUnlock()
	require.False(t, ok)
}

func TestWSHubRecipientsIncludeOperator(t *testing.T) {
	h := newTestHub()
	id := models.PaymentID(1)
	evt := events.Event{Type: events.EventLedger, Ledger: &models.Event{
		Type: models.EventPaymentCreated, PaymentID: &id, Payer: wsTenant, Payee: wsLandlord,
	}}
	require.ElementsMatch(t, []models.Address{wsTenant, wsLandlord, wsOperator}, h.Recipients(evt))
}
