package indicator

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
	"go.uber.org/zap"

	"presencetv/internal/clock"
)

// NightDimmer wraps a Driver and caps brightness between sunset and sunrise
// so the indicator does not light up a dark room.
type NightDimmer struct {
	inner    Driver
	lat, lon float64
	nightMax int
	clk      clock.Clock
	logger   *zap.Logger
}

// NewNightDimmer caps fades at nightMax while the sun is down at lat/lon.
func NewNightDimmer(inner Driver, lat, lon float64, nightMax int, clk clock.Clock, logger *zap.Logger) *NightDimmer {
	return &NightDimmer{
		inner:    inner,
		lat:      lat,
		lon:      lon,
		nightMax: clamp(nightMax),
		clk:      clk,
		logger:   logger.Named("nightdim"),
	}
}

func (n *NightDimmer) FadeTo(brightness int, d time.Duration) error {
	brightness = clamp(brightness)
	if brightness > n.nightMax && n.isNight(n.clk.Now()) {
		n.logger.Debug("Capping indicator brightness for night",
			zap.Int("requested", brightness),
			zap.Int("capped", n.nightMax))
		brightness = n.nightMax
	}
	return n.inner.FadeTo(brightness, d)
}

func (n *NightDimmer) Brightness() int { return n.inner.Brightness() }

func (n *NightDimmer) Close() error { return n.inner.Close() }

func (n *NightDimmer) isNight(now time.Time) bool {
	rise, set := sunrise.SunriseSunset(n.lat, n.lon, now.Year(), now.Month(), now.Day())
	if rise.IsZero() && set.IsZero() {
		// Polar day or night; no useful boundary, leave brightness alone.
		return false
	}
	return now.Before(rise) || now.After(set)
}
