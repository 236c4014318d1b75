package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockStart = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestMockClockNowAndSince(t *testing.T) {
	clk := NewMockClock(mockStart)
	assert.Equal(t, mockStart, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, mockStart.Add(90*time.Second), clk.Now())
	assert.Equal(t, 90*time.Second, clk.Since(mockStart))
}

func TestMockClockAfterFiresOnAdvance(t *testing.T) {
	clk := NewMockClock(mockStart)
	ch := clk.After(10 * time.Second)

	clk.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before the deadline")
	default:
	}

	clk.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, mockStart.Add(10*time.Second), got)
	case <-time.After(time.Second):
		t.Fatal("never fired")
	}
}

func TestMockClockAfterFuncStop(t *testing.T) {
	clk := NewMockClock(mockStart)

	var fired atomic.Bool
	timer := clk.AfterFunc(5*time.Second, func() { fired.Store(true) })

	assert.True(t, timer.Stop())
	clk.Advance(time.Minute)
	assert.False(t, fired.Load())

	// Stopping again reports the timer was already dead.
	assert.False(t, timer.Stop())
}

func TestMockClockTicker(t *testing.T) {
	clk := NewMockClock(mockStart)
	ticker := clk.NewTicker(time.Minute)
	defer ticker.Stop()

	clk.Advance(time.Minute)
	select {
	case got := <-ticker.Chan():
		assert.Equal(t, mockStart.Add(time.Minute), got)
	case <-time.After(time.Second):
		t.Fatal("no tick after one interval")
	}

	// An undrained tick is dropped, not queued without bound.
	clk.Advance(10 * time.Minute)
	<-ticker.Chan()
	select {
	case <-ticker.Chan():
		t.Fatal("ticks should not accumulate past the buffer")
	default:
	}
}

func TestMockClockSetBackwardsDoesNotFire(t *testing.T) {
	clk := NewMockClock(mockStart)
	ch := clk.After(10 * time.Second)

	clk.Set(mockStart.Add(-time.Hour))
	select {
	case <-ch:
		t.Fatal("moving backwards must not fire timers")
	default:
	}
	assert.Equal(t, mockStart.Add(-time.Hour), clk.Now())
}

func TestRealClockBasics(t *testing.T) {
	clk := NewRealClock()

	before := time.Now()
	now := clk.Now()
	require.False(t, now.Before(before))

	select {
	case <-clk.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("real After never fired")
	}
}
