//go:build linux

package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

const (
	// pwmPeriod gives a 100 Hz software PWM, comfortably above flicker
	// perception for an indicator LED.
	pwmPeriod = 10 * time.Millisecond

	// fadeSteps is how many brightness steps a fade is divided into.
	fadeSteps = 50
)

// LED dims a plain GPIO-attached LED with software PWM. Hardware PWM pins
// are left free for peripherals that actually need them.
type LED struct {
	line   *gpiocdev.Line
	logger *zap.Logger

	mu       sync.Mutex
	duty     int
	target   int
	fadeGen  uint64
	stopPWM  chan struct{}
	pwmDone  chan struct{}
	fadeDone sync.WaitGroup
}

// NewLED requests the LED pin as an output line and starts the PWM loop.
func NewLED(chipName string, pin int, logger *zap.Logger) (Driver, error) {
	line, err := gpiocdev.RequestLine(chipName, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request led pin %d: %w", pin, err)
	}

	l := &LED{
		line:    line,
		logger:  logger.Named("led"),
		stopPWM: make(chan struct{}),
		pwmDone: make(chan struct{}),
	}
	go l.pwmLoop()

	l.logger.Info("LED indicator initialized",
		zap.String("chip", chipName),
		zap.Int("pin", pin))
	return l, nil
}

// FadeTo ramps brightness over d, preempting any running fade.
func (l *LED) FadeTo(brightness int, d time.Duration) error {
	brightness = clamp(brightness)

	l.mu.Lock()
	from := l.duty
	l.target = brightness
	l.fadeGen++
	gen := l.fadeGen
	l.mu.Unlock()

	if d <= 0 || from == brightness {
		l.setDuty(gen, brightness)
		return nil
	}

	l.fadeDone.Add(1)
	go func() {
		defer l.fadeDone.Done()
		stepWait := d / fadeSteps
		for step := 1; step <= fadeSteps; step++ {
			time.Sleep(stepWait)
			duty := from + (brightness-from)*step/fadeSteps
			if !l.setDuty(gen, duty) {
				// A newer fade took over.
				return
			}
		}
	}()
	return nil
}

// Brightness reports the target of the most recent fade.
func (l *LED) Brightness() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

// Close stops PWM and drives the pin low.
func (l *LED) Close() error {
	l.mu.Lock()
	l.fadeGen++ // invalidate running fades
	l.mu.Unlock()
	l.fadeDone.Wait()

	close(l.stopPWM)
	<-l.pwmDone

	if err := l.line.SetValue(0); err != nil {
		l.line.Close()
		return fmt.Errorf("blank led: %w", err)
	}
	return l.line.Close()
}

// setDuty updates the duty cycle if gen is still the current fade.
func (l *LED) setDuty(gen uint64, duty int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.fadeGen {
		return false
	}
	l.duty = clamp(duty)
	return true
}

// pwmLoop time-slices the PWM period between on and off according to the
// duty cycle.
func (l *LED) pwmLoop() {
	defer close(l.pwmDone)

	for {
		select {
		case <-l.stopPWM:
			return
		default:
		}

		l.mu.Lock()
		duty := l.duty
		l.mu.Unlock()

		onTime := pwmPeriod * time.Duration(duty) / 100
		offTime := pwmPeriod - onTime

		if onTime > 0 {
			l.line.SetValue(1)
			time.Sleep(onTime)
		}
		if offTime > 0 {
			l.line.SetValue(0)
			time.Sleep(offTime)
		}
	}
}
