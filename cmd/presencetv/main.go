package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/config"
	"presencetv/internal/indicator"
	"presencetv/internal/maintenance"
	"presencetv/internal/orchestrator"
	"presencetv/internal/power"
	"presencetv/internal/sensor"
	"presencetv/internal/telemetry"
	"presencetv/internal/tv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	dryRun := flag.Bool("dry-run", false, "log power actions instead of performing them")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	simClock := flag.Bool("sim-clock", false, "run on an accelerated simulated clock with fake devices")
	flag.Parse()

	logger, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *dryRun {
		cfg.Dev.DryRun = true
	}
	if *verbose {
		cfg.Dev.Verbose = true
	}
	if *simClock {
		cfg.Dev.SimClock = true
	}

	if cfg.Dev.DryRun {
		logger.Info("Running in READ-ONLY mode - no changes will be made to the TV")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Fatal("Controller exited", zap.Error(err))
	}
	logger.Info("Shutting down gracefully...")
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clk, stopSim := buildClock(ctx, cfg)
	if stopSim != nil {
		defer stopSim()
	}

	source, err := buildSource(cfg, clk, logger)
	if err != nil {
		return fmt.Errorf("sensor init: %w", err)
	}
	defer source.Close()

	controller := buildTV(cfg, logger)
	defer controller.Close()

	led := buildIndicator(cfg, clk, logger)
	defer led.Close()

	sink := buildSink(cfg, logger)
	defer sink.Close()

	engine := power.NewEngine(controller, clk, power.Config{
		RetryAttempts: cfg.Control.RetryAttempts,
		RetryDelay:    cfg.Control.RetryDelay.Std(),
		ToggleSettle:  cfg.TV.ToggleSettle.Std(),
		WakeTimeout:   cfg.TV.WakeTimeout.Std(),
	}, cfg.Dev.DryRun, logger)

	mgr := orchestrator.NewManager(orchestrator.Deps{
		Config:      cfg,
		Clock:       clk,
		Source:      source,
		TV:          controller,
		Dispatcher:  power.NewDispatcher(engine, logger),
		Indicator:   led,
		Maintenance: maintenance.NewScheduler(source, cfg.Maintenance.Interval.Std(), cfg.Maintenance.QuietPeriod.Std(), clk, logger),
		Sink:        sink,
	}, logger)

	return mgr.Run(ctx)
}

// buildClock returns the real clock, or in simulation mode a mock clock that
// a background goroutine advances at 10x real time.
func buildClock(ctx context.Context, cfg *config.Config) (clock.Clock, func()) {
	if !cfg.Dev.SimClock {
		return clock.NewRealClock(), nil
	}

	mock := clock.NewMockClock(time.Now())
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				mock.Advance(100 * time.Millisecond)
			}
		}
	}()
	return mock, func() { close(done) }
}

func buildSource(cfg *config.Config, clk clock.Clock, logger *zap.Logger) (sensor.Source, error) {
	if cfg.Dev.SimClock {
		logger.Info("Simulation mode: using fake presence sensor")
		return newSimSource(clk), nil
	}

	switch cfg.Sensor.Mode {
	case "uart":
		return sensor.NewUART(
			cfg.Sensor.UART.Port,
			cfg.Sensor.UART.Baud,
			cfg.Sensor.UART.ReadTimeout.Std(),
			clk, logger)
	case "gpio":
		return sensor.NewTrigger(
			cfg.Sensor.GPIO.Chip,
			cfg.Sensor.GPIO.Pin,
			cfg.Sensor.GPIO.ActiveLow,
			clk, logger)
	default:
		return nil, fmt.Errorf("unknown sensor mode %q", cfg.Sensor.Mode)
	}
}

// newSimSource fabricates a presence pattern: two minutes occupied, two
// minutes empty, repeating.
func newSimSource(clk clock.Clock) sensor.Source {
	fake := sensor.NewFake(clk.Now)
	start := clk.Now()
	go func() {
		for {
			<-clk.After(time.Second)
			elapsed := clk.Now().Sub(start)
			fake.SetPresent(int(elapsed/(2*time.Minute))%2 == 0)
		}
	}()
	return fake
}

func buildTV(cfg *config.Config, logger *zap.Logger) tv.Controller {
	if cfg.Dev.SimClock || (cfg.Dev.DryRun && cfg.TV.Host == "") {
		logger.Info("Using fake TV controller")
		return tv.NewFake(tv.StateStandby)
	}

	return tv.NewSamsung(tv.SamsungConfig{
		Host:      cfg.TV.Host,
		Port:      cfg.TV.Port,
		MAC:       cfg.TV.MAC,
		AppName:   cfg.TV.ClientName,
		TokenFile: cfg.TV.TokenFile,
	}, logger)
}

// buildIndicator never fails the daemon: a missing LED only costs feedback.
func buildIndicator(cfg *config.Config, clk clock.Clock, logger *zap.Logger) indicator.Driver {
	if !cfg.Indicator.Enabled || cfg.Dev.SimClock {
		return indicator.Noop{}
	}

	led, err := indicator.NewLED(cfg.Indicator.GPIOChip, cfg.Indicator.GPIOPin, logger)
	if err != nil {
		logger.Warn("LED indicator unavailable, continuing without it", zap.Error(err))
		return indicator.Noop{}
	}

	if cfg.Indicator.Night.Enabled {
		return indicator.NewNightDimmer(led,
			cfg.Indicator.Night.Latitude,
			cfg.Indicator.Night.Longitude,
			cfg.Indicator.Night.MaxBrightness,
			clk, logger)
	}
	return led
}

// buildSink never fails the daemon either: telemetry is best-effort.
func buildSink(cfg *config.Config, logger *zap.Logger) telemetry.Sink {
	if !cfg.MQTT.Enabled {
		return telemetry.NopSink{}
	}

	sink, err := telemetry.NewMQTTSink(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix, logger)
	if err != nil {
		logger.Warn("MQTT unavailable, continuing without telemetry", zap.Error(err))
		return telemetry.NopSink{}
	}
	return sink
}
