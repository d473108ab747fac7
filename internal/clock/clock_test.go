package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFake verifies Advance and Set move the reading as expected.
func TestFake(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	require.Equal(t, start, f.Now())
	require.Equal(t, start.Add(time.Minute), f.Advance(time.Minute))

	f.Set(start)
	require.Equal(t, start, f.Now())
}

// TestReal is a smoke test for the system clock.
func TestReal(t *testing.T) {
	t.Parallel()

	var c Clock = Real{}

	require.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
