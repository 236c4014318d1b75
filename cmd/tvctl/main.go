// tvctl is a command-line companion for the controller: it drives the same
// TV through the same query-then-toggle engine, for setup and debugging.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/config"
	"presencetv/internal/power"
	"presencetv/internal/tv"
)

const usage = `usage: tvctl [flags] <command>

commands:
  status   print the TV power state
  info     print the TV device descriptor as JSON
  on       drive the TV to the on state (wakes it if needed)
  off      drive the TV to standby
  toggle   send a single power toggle key press
  wake     send a Wake-on-LAN packet

flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	timeout := flag.Duration("timeout", 60*time.Second, "overall command timeout")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	godotenv.Load()

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tvctl: %v\n", err)
		os.Exit(1)
	}
	if cfg.TV.Host == "" {
		fmt.Fprintln(os.Stderr, "tvctl: tv.host is not configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	controller := tv.NewSamsung(tv.SamsungConfig{
		Host:      cfg.TV.Host,
		Port:      cfg.TV.Port,
		MAC:       cfg.TV.MAC,
		AppName:   cfg.TV.ClientName,
		TokenFile: cfg.TV.TokenFile,
	}, logger)
	defer controller.Close()

	if err := execute(ctx, command, cfg, controller, logger); err != nil {
		fmt.Fprintf(os.Stderr, "tvctl: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, command string, cfg *config.Config, controller *tv.Samsung, logger *zap.Logger) error {
	switch command {
	case "status":
		fmt.Println(controller.QueryState(ctx))
		return nil

	case "info":
		info, err := controller.DeviceInfo(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)

	case "on", "off":
		intent := power.IntentEnsureOn
		if command == "off" {
			intent = power.IntentEnsureOff
		}
		engine := power.NewEngine(controller, clock.NewRealClock(), power.Config{
			RetryAttempts: cfg.Control.RetryAttempts,
			RetryDelay:    cfg.Control.RetryDelay.Std(),
			ToggleSettle:  cfg.TV.ToggleSettle.Std(),
			WakeTimeout:   cfg.TV.WakeTimeout.Std(),
		}, false, logger)

		out := engine.Execute(ctx, intent)
		fmt.Printf("%s: %s (attempts: %d)\n", intent, out.FinalState, len(out.Attempts))
		if !out.Success {
			return fmt.Errorf("could not reach the %s state", intent)
		}
		return nil

	case "toggle":
		return controller.TogglePower(ctx)

	case "wake":
		return controller.Wake(ctx)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
