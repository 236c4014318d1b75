package indicator

import (
	"sync"
	"time"
)

// Fade records one FadeTo call.
type Fade struct {
	Brightness int
	Duration   time.Duration
}

// Fake is a Driver that records fades for assertions.
type Fake struct {
	mu    sync.Mutex
	fades []Fade
}

// NewFake creates an empty recording driver.
func NewFake() *Fake { return &Fake{} }

// Fades returns a copy of every recorded fade.
func (f *Fake) Fades() []Fade {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Fade, len(f.fades))
	copy(out, f.fades)
	return out
}

func (f *Fake) FadeTo(brightness int, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fades = append(f.fades, Fade{Brightness: clamp(brightness), Duration: d})
	return nil
}

func (f *Fake) Brightness() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fades) == 0 {
		return 0
	}
	return f.fades[len(f.fades)-1].Brightness
}

func (f *Fake) Close() error { return nil }
