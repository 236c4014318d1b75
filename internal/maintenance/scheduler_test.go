package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/sensor"
)

func TestTicksFireOnInterval(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	src := sensor.NewFake(clk.Now)
	s := NewScheduler(src, time.Minute, 5*time.Second, clk, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	clk.Advance(time.Minute)

	select {
	case <-s.Ticks():
	case <-time.After(time.Second):
		t.Fatal("expected a maintenance tick after one interval")
	}

	// No second tick without another interval elapsing.
	select {
	case <-s.Ticks():
		t.Fatal("unexpected extra tick")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPerformResetsAndReturnsQuietPeriod(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	src := sensor.NewFake(clk.Now)
	s := NewScheduler(src, time.Minute, 5*time.Second, clk, zap.NewNop())

	now := clk.Now()
	until, err := s.Perform(now)

	require.NoError(t, err)
	assert.Equal(t, 1, src.ResetCalls())
	assert.Equal(t, now.Add(5*time.Second), until)
}

func TestPerformSurfacesResetFailure(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	src := sensor.NewFake(clk.Now)
	src.SetResetError(errors.New("port wedged"))
	s := NewScheduler(src, time.Minute, 5*time.Second, clk, zap.NewNop())

	_, err := s.Perform(clk.Now())
	assert.Error(t, err)
}
