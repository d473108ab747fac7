package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

func event(state alert.State) alert.Event {
	return alert.Event{
		Session: alert.Session{ID: "s-1", RuleID: "r-1", State: state},
		Cause:   alert.CauseTimer,
		At:      time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	}
}

// TestHub_FanOut delivers each event to every subscriber in order.
func TestHub_FanOut(t *testing.T) {
	t.Parallel()

	h := NewHub(4)

	first, cancelFirst := h.Subscribe()
	defer cancelFirst()

	second, cancelSecond := h.Subscribe()
	defer cancelSecond()

	require.Equal(t, 2, h.Subscribers())

	h.OnStateChanged(context.Background(), event(alert.StateExpanding))
	h.OnStateChanged(context.Background(), event(alert.StateHeld))

	for _, ch := range []<-chan alert.Event{first, second} {
		require.Equal(t, alert.StateExpanding, (<-ch).Session.State)
		require.Equal(t, alert.StateHeld, (<-ch).Session.State)
	}
}

// TestHub_DropsWhenFull never blocks the publisher on a slow subscriber.
func TestHub_DropsWhenFull(t *testing.T) {
	t.Parallel()

	h := NewHub(1)

	ch, cancel := h.Subscribe()
	defer cancel()

	h.OnStateChanged(context.Background(), event(alert.StateExpanding))
	h.OnStateChanged(context.Background(), event(alert.StateHeld))

	require.Equal(t, alert.StateExpanding, (<-ch).Session.State)
	require.Empty(t, ch)
}

// TestHub_CancelAndClose closes channels exactly once.
func TestHub_CancelAndClose(t *testing.T) {
	t.Parallel()

	h := NewHub(0)

	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, h.Subscribers())

	live, cancelLive := h.Subscribe()
	h.Close()
	h.Close()
	cancelLive()

	_, ok = <-live
	require.False(t, ok)

	late, _ := h.Subscribe()
	_, ok = <-late
	require.False(t, ok)
}
