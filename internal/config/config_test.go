package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	cfg.TV.Host = "192.168.1.50"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "uart", cfg.Sensor.Mode)
	assert.Equal(t, time.Second, cfg.Sensor.SampleInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.Sensor.Debounce.Std())
	assert.Equal(t, 60*time.Second, cfg.Control.OffDelay.Std())
	assert.Equal(t, 3, cfg.Control.RetryAttempts)
	assert.Equal(t, 8002, cfg.TV.Port)
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
sensor:
  mode: gpio
  debounce: 5s
  gpio:
    chip: gpiochip1
    pin: 22
tv:
  host: tv.lan
  mac: "AA:BB:CC:DD:EE:FF"
control:
  off_delay: 2m
`)

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "gpio", cfg.Sensor.Mode)
	assert.Equal(t, 5*time.Second, cfg.Sensor.Debounce.Std())
	assert.Equal(t, "gpiochip1", cfg.Sensor.GPIO.Chip)
	assert.Equal(t, 22, cfg.Sensor.GPIO.Pin)
	assert.Equal(t, 2*time.Minute, cfg.Control.OffDelay.Std())

	// Untouched keys keep their defaults.
	assert.Equal(t, time.Second, cfg.Sensor.SampleInterval.Std())
	assert.Equal(t, 8002, cfg.TV.Port)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
tv:
  host: tv.lan
  hosst: oops
`)

	_, err := Load(path, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
sensor:
  debounce: fast
tv:
  host: tv.lan
`)

	_, err := Load(path, zap.NewNop())
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
tv:
  host: tv.lan
`)
	t.Setenv("PRESENCETV_TV_HOST", "other.lan")

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "other.lan", cfg.TV.Host)
}

func TestValidateCrossFieldRules(t *testing.T) {
	t.Run("uart mode requires port", func(t *testing.T) {
		cfg := Default()
		cfg.TV.Host = "tv.lan"
		cfg.Sensor.UART.Port = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("host required unless dry run", func(t *testing.T) {
		cfg := Default()
		assert.Error(t, cfg.Validate())

		cfg.Dev.DryRun = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("mqtt needs broker", func(t *testing.T) {
		cfg := Default()
		cfg.TV.Host = "tv.lan"
		cfg.MQTT.Enabled = true
		assert.Error(t, cfg.Validate())

		cfg.MQTT.Broker = "tcp://127.0.0.1:1883"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("night dimming needs coordinates", func(t *testing.T) {
		cfg := Default()
		cfg.TV.Host = "tv.lan"
		cfg.Indicator.Night.Enabled = true
		assert.Error(t, cfg.Validate())

		cfg.Indicator.Night.Latitude = 47.6
		cfg.Indicator.Night.Longitude = -122.3
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown sensor mode", func(t *testing.T) {
		cfg := Default()
		cfg.TV.Host = "tv.lan"
		cfg.Sensor.Mode = "telepathy"
		assert.Error(t, cfg.Validate())
	})
}
