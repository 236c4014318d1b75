package sensor

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"presencetv/internal/clock"
)

const (
	// staleAfter is how long without a telemetry line before the sensor is
	// considered disconnected.
	staleAfter = 5 * time.Second

	// maxConsecutiveReadErrors before the port is reopened.
	maxConsecutiveReadErrors = 5

	// rangeIncrement is the sensor's native range unit (15 cm).
	rangeIncrement = 0.15

	// maxRangeIncrements is the sensor's detection range limit (127 * 15 cm).
	maxRangeIncrements = 127
)

// saveConfigCommand persists sensor configuration to its flash. The magic
// words are required by the SEN0395 firmware.
const saveConfigCommand = "saveCfg 0x45670123 0xCDEF89AB 0x956128C6 0xDF54AC89"

// UART reads presence telemetry from the sensor's serial channel and exposes
// its command channel for resets and range configuration.
type UART struct {
	portName    string
	baud        int
	readTimeout time.Duration
	clk         clock.Clock
	logger      *zap.Logger

	mu         sync.Mutex
	port       serial.Port
	present    bool
	lastUpdate time.Time
	capture    chan string

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewUART opens the serial port and starts the background telemetry reader.
func NewUART(portName string, baud int, readTimeout time.Duration, clk clock.Clock, logger *zap.Logger) (*UART, error) {
	u := &UART{
		portName:    portName,
		baud:        baud,
		readTimeout: readTimeout,
		clk:         clk,
		logger:      logger.Named("uart"),
		stop:        make(chan struct{}),
	}

	if err := u.open(); err != nil {
		return nil, fmt.Errorf("failed to open sensor port: %w", err)
	}

	u.wg.Add(1)
	go u.readLoop()

	u.logger.Info("Connected to sensor",
		zap.String("port", portName),
		zap.Int("baud", baud))
	return u, nil
}

func (u *UART) open() error {
	port, err := serial.Open(u.portName, &serial.Mode{BaudRate: u.baud})
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(u.readTimeout); err != nil {
		port.Close()
		return err
	}

	u.mu.Lock()
	u.port = port
	u.mu.Unlock()
	return nil
}

// Sample returns the latest telemetry reading. A sensor that has not
// produced a line recently counts as hardware-unavailable, not as absent.
func (u *UART) Sample() (Sample, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.clk.Now()
	if u.port == nil || u.lastUpdate.IsZero() || now.Sub(u.lastUpdate) > staleAfter {
		return Sample{}, fmt.Errorf("no telemetry from %s: %w", u.portName, ErrHardwareUnavailable)
	}
	return Sample{Time: now, Present: u.present}, nil
}

// Reset restarts the sensor firmware over the command channel. The caller is
// expected to suppress presence-loss for a quiet period afterwards.
func (u *UART) Reset() error {
	if _, err := u.Exchange("sensorStop", 500*time.Millisecond); err != nil {
		return fmt.Errorf("sensor stop failed: %w", err)
	}
	if _, err := u.Exchange("sensorStart", 500*time.Millisecond); err != nil {
		return fmt.Errorf("sensor start failed: %w", err)
	}
	u.logger.Debug("Sensor firmware restarted")
	return nil
}

// ConfigureRange sets the detection window in meters, converting to the
// sensor's native 15 cm increments and persisting the result.
func (u *UART) ConfigureRange(minMeters, maxMeters float64) error {
	minInc, maxInc, err := rangeIncrements(minMeters, maxMeters)
	if err != nil {
		return err
	}

	steps := []string{
		"sensorStop",
		fmt.Sprintf("detRangeCfg -1 %d %d", minInc, maxInc),
		saveConfigCommand,
		"sensorStart",
	}
	for _, cmd := range steps {
		if _, err := u.Exchange(cmd, time.Second); err != nil {
			return fmt.Errorf("range configuration step %q failed: %w", cmd, err)
		}
	}

	u.logger.Info("Detection range configured",
		zap.Float64("min_meters", minMeters),
		zap.Float64("max_meters", maxMeters),
		zap.Int("min_increments", minInc),
		zap.Int("max_increments", maxInc))
	return nil
}

// Exchange writes a command and collects non-telemetry response lines for
// the wait window.
func (u *UART) Exchange(cmd string, wait time.Duration) (string, error) {
	u.mu.Lock()
	port := u.port
	if port == nil {
		u.mu.Unlock()
		return "", fmt.Errorf("port closed: %w", ErrHardwareUnavailable)
	}
	capture := make(chan string, 16)
	u.capture = capture
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.capture = nil
		u.mu.Unlock()
	}()

	if _, err := port.Write([]byte(cmd + "\r\n")); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, ErrHardwareUnavailable)
	}

	var lines []string
	deadline := time.After(wait)
	for {
		select {
		case line := <-capture:
			lines = append(lines, line)
		case <-deadline:
			return strings.Join(lines, "\n"), nil
		}
	}
}

// Close stops the reader and releases the port.
func (u *UART) Close() error {
	close(u.stop)
	u.wg.Wait()

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.port != nil {
		err := u.port.Close()
		u.port = nil
		return err
	}
	return nil
}

// readLoop consumes serial bytes, splits them into lines, and routes
// telemetry vs. command responses.
func (u *UART) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, 256)
	var pending []byte
	consecutiveErrors := 0

	for {
		select {
		case <-u.stop:
			return
		default:
		}

		u.mu.Lock()
		port := u.port
		u.mu.Unlock()
		if port == nil {
			return
		}

		n, err := port.Read(buf)
		if err != nil {
			consecutiveErrors++
			u.logger.Warn("Serial read error",
				zap.Int("consecutive", consecutiveErrors),
				zap.Error(err))
			if consecutiveErrors >= maxConsecutiveReadErrors {
				u.reconnect()
				consecutiveErrors = 0
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if n == 0 {
			// Read timeout, nothing buffered.
			continue
		}
		consecutiveErrors = 0

		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			line := strings.TrimSpace(string(pending[:idx]))
			pending = pending[idx+1:]
			if line != "" {
				u.handleLine(line)
			}
		}
	}
}

func (u *UART) handleLine(line string) {
	if present, ok := parseJYBSS(line); ok {
		u.mu.Lock()
		changed := u.lastUpdate.IsZero() || present != u.present
		u.present = present
		u.lastUpdate = u.clk.Now()
		u.mu.Unlock()
		if changed {
			u.logger.Debug("Telemetry state", zap.Bool("present", present))
		}
		return
	}

	u.mu.Lock()
	capture := u.capture
	u.mu.Unlock()
	if capture != nil {
		select {
		case capture <- line:
		default:
		}
	}
}

// reconnect closes and reopens the serial port after repeated read errors.
func (u *UART) reconnect() {
	u.logger.Warn("Too many consecutive read errors, reopening port")

	u.mu.Lock()
	if u.port != nil {
		u.port.Close()
		u.port = nil
	}
	// Force a fresh baseline reading before Sample() reports healthy again.
	u.lastUpdate = time.Time{}
	u.mu.Unlock()

	time.Sleep(time.Second)
	if err := u.open(); err != nil {
		u.logger.Error("Failed to reopen sensor port", zap.Error(err))
	}
}

// rangeIncrements converts a detection window in meters to the sensor's
// native 15 cm units.
func rangeIncrements(minMeters, maxMeters float64) (int, int, error) {
	minInc := int(minMeters/rangeIncrement + 0.5)
	maxInc := int(maxMeters/rangeIncrement + 0.5)

	if minInc < 0 || maxInc > maxRangeIncrements || minInc >= maxInc {
		return 0, 0, fmt.Errorf("range %.2fm-%.2fm out of bounds (max %.2fm)",
			minMeters, maxMeters, maxRangeIncrements*rangeIncrement)
	}
	return minInc, maxInc, nil
}

// parseJYBSS parses a "$JYBSS,1, , , *" telemetry sentence. The second field
// is 1 for presence, 0 for no presence.
func parseJYBSS(line string) (present bool, ok bool) {
	if !strings.HasPrefix(line, "$JYBSS") {
		return false, false
	}
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return false, false
	}
	switch strings.TrimSpace(parts[1]) {
	case "1":
		return true, true
	case "0":
		return false, true
	default:
		return false, false
	}
}
