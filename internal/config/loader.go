package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides
// (PRESENCETV_TV_HOST, PRESENCETV_MQTT_BROKER, ...).
const EnvPrefix = "presencetv"

// Load builds the configuration: defaults, then the YAML file at path (if
// given), then environment overrides, then validation.
func Load(path string, logger *zap.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		logger.Debug("Loading config file", zap.String("path", path))
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("sensor_mode", cfg.Sensor.Mode),
		zap.Duration("sample_interval", cfg.Sensor.SampleInterval.Std()),
		zap.Duration("debounce", cfg.Sensor.Debounce.Std()),
		zap.Duration("off_delay", cfg.Control.OffDelay.Std()),
		zap.Duration("maintenance_interval", cfg.Maintenance.Interval.Std()),
		zap.Bool("dry_run", cfg.Dev.DryRun))

	return cfg, nil
}

// unmarshalStrict decodes YAML, rejecting unknown keys so typos in config
// files fail at startup instead of silently using defaults.
func unmarshalStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
