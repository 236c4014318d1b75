// sensorcfg configures the radar presence sensor over its serial command
// channel: detection range, firmware restart, raw command access.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"presencetv/internal/clock"
	"presencetv/internal/sensor"
)

func main() {
	port := flag.String("port", "/dev/ttyAMA1", "serial port of the sensor")
	baud := flag.Int("baud", 115200, "serial baud rate")
	minMeters := flag.Float64("min", 0, "minimum detection distance in meters")
	maxMeters := flag.Float64("max", 0, "maximum detection distance in meters")
	show := flag.Bool("show", false, "print the sensor's current detection range")
	restart := flag.Bool("restart", false, "restart the sensor firmware")
	raw := flag.String("raw", "", "send a raw command and print the response")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	if *raw == "" && !*restart && !*show && *maxMeters == 0 {
		fmt.Fprintln(os.Stderr, "sensorcfg: nothing to do; pass -max (with optional -min), -show, -restart, or -raw")
		flag.PrintDefaults()
		os.Exit(2)
	}

	uart, err := sensor.NewUART(*port, *baud, time.Second, clock.NewRealClock(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sensorcfg: %v\n", err)
		os.Exit(1)
	}
	defer uart.Close()

	if *raw != "" {
		resp, err := uart.Exchange(*raw, 2*time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sensorcfg: %v\n", err)
			os.Exit(1)
		}
		if strings.TrimSpace(resp) == "" {
			fmt.Println("(no response)")
		} else {
			fmt.Println(resp)
		}
		return
	}

	if *show {
		resp, err := uart.Exchange("getRange", 2*time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sensorcfg: %v\n", err)
			os.Exit(1)
		}
		if strings.TrimSpace(resp) == "" {
			fmt.Println("(no response)")
		} else {
			fmt.Println(resp)
		}
		return
	}

	if *maxMeters > 0 {
		if err := uart.ConfigureRange(*minMeters, *maxMeters); err != nil {
			fmt.Fprintf(os.Stderr, "sensorcfg: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("detection range set to %.2fm-%.2fm\n", *minMeters, *maxMeters)
		return
	}

	if *restart {
		if err := uart.Reset(); err != nil {
			fmt.Fprintf(os.Stderr, "sensorcfg: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("sensor firmware restarted")
	}
}
