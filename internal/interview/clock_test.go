package interview

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClock_EveryStops(t *testing.T) {
	var n atomic.Int32
	stop := SystemClock().Every(5*time.Millisecond, func() { n.Add(1) })

	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, stop.Stop())
	assert.False(t, stop.Stop())
}

func TestFakeClock_RunsTimersInOrder(t *testing.T) {
	c := newFakeClock()
	var got []string
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, "once") })
	tick := c.Every(100*time.Millisecond, func() { got = append(got, "tick") })

	c.Advance(350 * time.Millisecond)
	// ties run in registration order
	assert.Equal(t, []string{"tick", "tick", "once", "tick"}, got)

	tick.Stop()
	c.Advance(time.Second)
	assert.Len(t, got, 4)
}
