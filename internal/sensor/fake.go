package sensor

import (
	"sync"
	"time"
)

// Fake is a scriptable Source for tests and the simulated-clock mode.
type Fake struct {
	mu         sync.Mutex
	present    bool
	sampleErr  error
	resetErr   error
	resetCalls int
	now        func() time.Time
}

// NewFake creates a fake source whose sample timestamps come from now.
func NewFake(now func() time.Time) *Fake {
	return &Fake{now: now}
}

// SetPresent sets the presence value returned by subsequent samples.
func (f *Fake) SetPresent(present bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.present = present
}

// SetSampleError makes Sample fail until cleared with a nil error.
func (f *Fake) SetSampleError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampleErr = err
}

// SetResetError makes Reset fail until cleared with a nil error.
func (f *Fake) SetResetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetErr = err
}

// ResetCalls reports how many times Reset has been invoked.
func (f *Fake) ResetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetCalls
}

func (f *Fake) Sample() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sampleErr != nil {
		return Sample{}, f.sampleErr
	}
	return Sample{Time: f.now(), Present: f.present}, nil
}

func (f *Fake) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return f.resetErr
}

func (f *Fake) Close() error { return nil }
