// Package config defines the explicit configuration surface of the daemon.
// Values come from a YAML file, overlaid with PRESENCETV_* environment
// variables, and are validated once at startup. Validation failures are
// fatal; nothing else in the system re-checks configuration.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML and environment values can be given
// in Go duration syntax ("2s", "500ms", "1m").
type Duration time.Duration

// UnmarshalYAML parses a YAML scalar as a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalText lets envconfig parse duration strings from the environment.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	TV          TVConfig          `yaml:"tv"`
	Control     ControlConfig     `yaml:"control"`
	Indicator   IndicatorConfig   `yaml:"indicator"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Dev         DevConfig         `yaml:"dev"`
}

// SensorConfig selects and tunes the presence sensor transport.
type SensorConfig struct {
	// Mode selects the physical transport: "gpio" reads the sensor's binary
	// trigger pin, "uart" reads $JYBSS telemetry over serial.
	Mode           string     `yaml:"mode" validate:"oneof=gpio uart"`
	SampleInterval Duration   `yaml:"sample_interval" validate:"gt=0"`
	Debounce       Duration   `yaml:"debounce" validate:"gt=0"`
	GPIO           GPIOConfig `yaml:"gpio"`
	UART           UARTConfig `yaml:"uart"`
}

// GPIOConfig configures the binary trigger pin.
type GPIOConfig struct {
	Chip      string `yaml:"chip" validate:"required"`
	Pin       int    `yaml:"pin" validate:"gte=0"`
	ActiveLow bool   `yaml:"active_low"`
}

// UARTConfig configures the serial telemetry transport.
type UARTConfig struct {
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud" validate:"gt=0"`
	ReadTimeout Duration `yaml:"read_timeout" validate:"gt=0"`
}

// TVConfig identifies the television and tunes its control timing.
type TVConfig struct {
	Host string `yaml:"host" envconfig:"TV_HOST"`
	Port int    `yaml:"port" envconfig:"TV_PORT" validate:"gt=0,lte=65535"`
	// MAC is required for Wake-on-LAN; without it a fully powered-down TV
	// cannot be woken.
	MAC        string `yaml:"mac" envconfig:"TV_MAC"`
	TokenFile  string `yaml:"token_file" envconfig:"TV_TOKEN_FILE"`
	ClientName string `yaml:"client_name" validate:"required"`
	// WakeTimeout bounds how long one wake attempt waits for the TV to
	// become reachable after a magic packet.
	WakeTimeout Duration `yaml:"wake_timeout" validate:"gt=0"`
	// ToggleSettle is how long the TV is given to change state after a
	// power toggle before the state is re-queried.
	ToggleSettle Duration `yaml:"toggle_settle" validate:"gt=0"`
}

// ControlConfig tunes the occupancy-to-power policy.
type ControlConfig struct {
	OffDelay      Duration `yaml:"off_delay" validate:"gt=0"`
	RetryAttempts int      `yaml:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay    Duration `yaml:"retry_delay" validate:"gt=0"`
}

// IndicatorConfig configures the LED feedback.
type IndicatorConfig struct {
	Enabled      bool        `yaml:"enabled"`
	GPIOChip     string      `yaml:"gpio_chip"`
	GPIOPin      int         `yaml:"gpio_pin" validate:"gte=0"`
	FadeDuration Duration    `yaml:"fade_duration" validate:"gt=0"`
	OnBrightness int         `yaml:"on_brightness" validate:"gte=0,lte=100"`
	Night        NightConfig `yaml:"night"`
}

// NightConfig caps LED brightness between sunset and sunrise.
type NightConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Latitude      float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	MaxBrightness int     `yaml:"max_brightness" validate:"gte=0,lte=100"`
}

// MaintenanceConfig tunes the periodic sensor reset.
type MaintenanceConfig struct {
	Interval Duration `yaml:"interval" validate:"gt=0"`
	// QuietPeriod is how long after a reset the occupancy logic ignores
	// absent samples, so the reset never looks like a vacancy.
	QuietPeriod Duration `yaml:"quiet_period" validate:"gt=0"`
}

// MQTTConfig configures the optional telemetry publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker" envconfig:"MQTT_BROKER"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// DevConfig holds development and testing switches.
type DevConfig struct {
	// DryRun simulates appliance calls and logs what would happen.
	DryRun bool `yaml:"dry_run"`
	// Verbose emits a state-transition trace at debug level.
	Verbose bool `yaml:"verbose"`
	// SimClock runs the daemon on an accelerated simulated clock.
	SimClock bool `yaml:"sim_clock"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Mode:           "uart",
			SampleInterval: Duration(time.Second),
			Debounce:       Duration(2 * time.Second),
			GPIO: GPIOConfig{
				Chip: "gpiochip0",
				Pin:  17,
			},
			UART: UARTConfig{
				Port:        "/dev/ttyAMA1",
				Baud:        115200,
				ReadTimeout: Duration(time.Second),
			},
		},
		TV: TVConfig{
			Port:         8002,
			TokenFile:    "tv-token.txt",
			ClientName:   "presencetv",
			WakeTimeout:  Duration(8 * time.Second),
			ToggleSettle: Duration(3 * time.Second),
		},
		Control: ControlConfig{
			OffDelay:      Duration(60 * time.Second),
			RetryAttempts: 3,
			RetryDelay:    Duration(2 * time.Second),
		},
		Indicator: IndicatorConfig{
			GPIOChip:     "gpiochip0",
			GPIOPin:      12,
			FadeDuration: Duration(time.Second),
			OnBrightness: 100,
			Night: NightConfig{
				MaxBrightness: 30,
			},
		},
		Maintenance: MaintenanceConfig{
			Interval:    Duration(60 * time.Second),
			QuietPeriod: Duration(5 * time.Second),
		},
		MQTT: MQTTConfig{
			TopicPrefix: "presencetv",
			ClientID:    "presencetv",
		},
	}
}

// Validate checks field constraints plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Sensor.Mode == "uart" && c.Sensor.UART.Port == "" {
		return fmt.Errorf("sensor.uart.port is required in uart mode")
	}
	if c.Sensor.Mode == "gpio" && c.Sensor.GPIO.Chip == "" {
		return fmt.Errorf("sensor.gpio.chip is required in gpio mode")
	}
	if !c.Dev.DryRun && c.TV.Host == "" {
		return fmt.Errorf("tv.host is required unless running with dry_run")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.Indicator.Night.Enabled &&
		c.Indicator.Night.Latitude == 0 && c.Indicator.Night.Longitude == 0 {
		return fmt.Errorf("indicator.night requires latitude and longitude")
	}
	return nil
}
