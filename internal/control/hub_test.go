package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
)

func TestHubBroadcastDropsForSlowSubscribers(t *testing.T) {
	h := NewHub()
	fast, cancelFast := h.Subscribe(4)
	defer cancelFast()
	slow, cancelSlow := h.Subscribe(1)
	defer cancelSlow()

	for i := 1; i <= 3; i++ {
		h.Broadcast(improvement.ProgressEvent{Type: improvement.EventPassCompleted, Pass: i})
	}

	assert.Len(t, fast, 3)
	require.Len(t, slow, 1)
	ev := <-slow
	assert.Equal(t, 1, ev.Pass, "slow subscriber keeps the first event")
}

func TestHubCancelAndClose(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(0)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel closes on cancel")
	assert.Equal(t, 0, h.Subscribers())

	other, _ := h.Subscribe(0)
	h.Close()
	_, ok = <-other
	assert.False(t, ok, "channel closes on Close")

	late, _ := h.Subscribe(0)
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")
	h.Broadcast(improvement.ProgressEvent{Type: improvement.EventStopped})
}
