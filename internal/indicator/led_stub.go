//go:build !linux

package indicator

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLED always fails off-Linux; the GPIO character device is a Linux
// facility. Callers fall back to Noop.
func NewLED(chipName string, pin int, logger *zap.Logger) (Driver, error) {
	return nil, fmt.Errorf("led indicator requires linux gpio support")
}
