package sunrise

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalculator_ShouldRejectUnknownTimezone(t *testing.T) {
	// when
	calc, err := NewCalculator(50.9097, -1.4044, "Mars/Olympus_Mons")

	// then
	assert.Nil(t, calc)
	assert.Error(t, err)
}

func TestSunrise_ShouldReturnLocalMorningTime(t *testing.T) {
	// given
	calc, err := NewCalculator(50.9097, -1.4044, "Europe/London")
	require.NoError(t, err)

	// when
	rise := calc.Sunrise(time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC))

	// then
	assert.Equal(t, "Europe/London", rise.Location().String())
	assert.Equal(t, 21, rise.Day())
	// midsummer sunrise in Southampton is shortly before 5am local
	assert.GreaterOrEqual(t, rise.Hour(), 4)
	assert.LessOrEqual(t, rise.Hour(), 5)
}

func TestSunrise_ShouldFallBackDuringPolarNight(t *testing.T) {
	// given: Svalbard in midwinter, the sun never rises
	calc, err := NewCalculator(78.2232, 15.6267, "Arctic/Longyearbyen")
	require.NoError(t, err)

	// when
	rise := calc.Sunrise(time.Date(2026, time.December, 21, 0, 0, 0, 0, time.UTC))

	// then
	assert.Equal(t, fallbackHour, rise.Hour())
	assert.Equal(t, 21, rise.Day())
}

func TestCaptureWindow_ShouldStartLeadBeforeSunrise(t *testing.T) {
	// given
	calc, err := NewCalculator(50.9097, -1.4044, "Europe/London")
	require.NoError(t, err)
	date := time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC)

	// when
	start, end := calc.CaptureWindow(date, 45*time.Minute, 75*time.Minute)

	// then
	assert.Equal(t, calc.Sunrise(date).Add(-45*time.Minute), start)
	assert.Equal(t, start.Add(75*time.Minute), end)
}

func TestWaitUntil_ShouldReturnImmediatelyForPastTimes(t *testing.T) {
	// given
	started := time.Now()

	// when
	err := WaitUntil(context.Background(), started.Add(-time.Hour))

	// then
	require.NoError(t, err)
	assert.Less(t, time.Since(started), time.Second)
}

func TestWaitUntil_ShouldAbortOnCancellation(t *testing.T) {
	// given
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	started := time.Now()

	// when
	err := WaitUntil(ctx, started.Add(time.Hour))

	// then
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(started), 2*time.Second)
}
