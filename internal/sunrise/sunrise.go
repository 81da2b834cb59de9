// Package sunrise computes the local capture window for a day's timelapse.
package sunrise

import (
	"context"
	"fmt"
	"time"

	gosunrise "github.com/nathan-osman/go-sunrise"
	"github.com/rs/zerolog/log"
)

// fallbackHour is used on days the sun never rises at the configured
// latitude. A 07:00 start keeps the schedule alive instead of skipping.
const fallbackHour = 7

// Calculator derives sunrise times for a fixed location.
type Calculator struct {
	latitude  float64
	longitude float64
	location  *time.Location
}

func NewCalculator(latitude, longitude float64, timezone string) (*Calculator, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Calculator{latitude: latitude, longitude: longitude, location: loc}, nil
}

// Sunrise returns the local sunrise time for the given date.
func (c *Calculator) Sunrise(date time.Time) time.Time {
	rise, _ := gosunrise.SunriseSunset(c.latitude, c.longitude, date.Year(), date.Month(), date.Day())
	if rise.IsZero() {
		fallback := time.Date(date.Year(), date.Month(), date.Day(), fallbackHour, 0, 0, 0, c.location)
		log.Warn().Time("fallback", fallback).Msg("No sunrise for this date, using fallback time")
		return fallback
	}
	return rise.In(c.location)
}

// CaptureWindow returns when capture should start and end for date: lead
// minutes before sunrise, running for duration.
func (c *Calculator) CaptureWindow(date time.Time, lead, duration time.Duration) (start, end time.Time) {
	start = c.Sunrise(date).Add(-lead)
	return start, start.Add(duration)
}

// WaitUntil blocks until t or until ctx is cancelled. Already-past start
// times return immediately; the capture just begins late.
func WaitUntil(ctx context.Context, t time.Time) error {
	remaining := time.Until(t)
	if remaining <= 0 {
		log.Warn().Time("start", t).Msg("Start time has already passed")
		return nil
	}

	log.Info().Time("start", t).Dur("wait", remaining).Msg("Waiting for capture window")
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
