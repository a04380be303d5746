//go:build !linux || disablegpio

package hal

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// stubBuild reports whether Open returns the desktop stub.
const stubBuild = true

// stubInputs reads every pin as High (not pressed), so the dispatcher idles
// on machines without GPIO hardware.
type stubInputs struct {
	mu         sync.Mutex
	configured map[int]bool
}

// Open returns the desktop stub.
func Open() Inputs {
	return &stubInputs{configured: make(map[int]bool)}
}

func (s *stubInputs) ConfigurePullUp(pin int) error {
	s.mu.Lock()
	s.configured[pin] = true
	s.mu.Unlock()
	return nil
}

func (s *stubInputs) Read(int) (gpio.Level, error) {
	return gpio.High, nil
}

func (s *stubInputs) ReleaseAll() error {
	s.mu.Lock()
	s.configured = make(map[int]bool)
	s.mu.Unlock()
	return nil
}
