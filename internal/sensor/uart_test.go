package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJYBSS(t *testing.T) {
	cases := []struct {
		line        string
		wantPresent bool
		wantOK      bool
	}{
		{"$JYBSS,1, , , *", true, true},
		{"$JYBSS,0, , , *", false, true},
		{"$JYBSS, 1 , , , *", true, true},
		{"$JYBSS", false, false},
		{"$JYBSS,x, , , *", false, false},
		{"$DFHPD,0, , , *", false, false},
		{"leapMMW:/>", false, false},
		{"", false, false},
	}

	for _, tc := range cases {
		present, ok := parseJYBSS(tc.line)
		assert.Equal(t, tc.wantOK, ok, "line %q", tc.line)
		if ok {
			assert.Equal(t, tc.wantPresent, present, "line %q", tc.line)
		}
	}
}

func TestRangeIncrements(t *testing.T) {
	minInc, maxInc, err := rangeIncrements(0, 3.0)
	require.NoError(t, err)
	assert.Equal(t, 0, minInc)
	assert.Equal(t, 20, maxInc)

	minInc, maxInc, err = rangeIncrements(0.45, 6.0)
	require.NoError(t, err)
	assert.Equal(t, 3, minInc)
	assert.Equal(t, 40, maxInc)
}

func TestRangeIncrementsBounds(t *testing.T) {
	// Beyond the sensor's 127-increment limit.
	_, _, err := rangeIncrements(0, 25.0)
	assert.Error(t, err)

	// Inverted window.
	_, _, err = rangeIncrements(4.0, 2.0)
	assert.Error(t, err)

	// Empty window.
	_, _, err = rangeIncrements(3.0, 3.0)
	assert.Error(t, err)
}

func TestFakeSourceScripting(t *testing.T) {
	f := NewFake(time.Now)
	s, err := f.Sample()
	require.NoError(t, err)
	assert.False(t, s.Present)

	f.SetPresent(true)
	s, err = f.Sample()
	require.NoError(t, err)
	assert.True(t, s.Present)

	f.SetSampleError(ErrHardwareUnavailable)
	_, err = f.Sample()
	assert.ErrorIs(t, err, ErrHardwareUnavailable)

	require.NoError(t, f.Reset())
	assert.Equal(t, 1, f.ResetCalls())
}
