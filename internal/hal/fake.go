package hal

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Fake is a scripted Inputs for tests.  Each pin replays the levels queued
// with Script, one per Read, and reads High once the script is exhausted.
type Fake struct {
	mu           sync.Mutex
	scripts      map[int][]gpio.Level
	configured   []int
	configureErr map[int]error
	readErr      map[int]error
	reads        map[int]int
	releases     int
}

// NewFake returns a Fake with every pin idle.
func NewFake() *Fake {
	return &Fake{
		scripts:      make(map[int][]gpio.Level),
		configureErr: make(map[int]error),
		readErr:      make(map[int]error),
		reads:        make(map[int]int),
	}
}

// Script queues levels to be returned by successive reads of pin.
func (f *Fake) Script(pin int, levels ...gpio.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[pin] = append(f.scripts[pin], levels...)
}

// FailConfigure makes ConfigurePullUp(pin) return err.
func (f *Fake) FailConfigure(pin int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configureErr[pin] = err
}

// FailRead makes every Read(pin) return err.
func (f *Fake) FailRead(pin int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr[pin] = err
}

func (f *Fake) ConfigurePullUp(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.configureErr[pin]; err != nil {
		return fmt.Errorf("configure GPIO%d: %w", pin, err)
	}
	f.configured = append(f.configured, pin)
	return nil
}

func (f *Fake) Read(pin int) (gpio.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[pin]++
	if err := f.readErr[pin]; err != nil {
		return gpio.High, err
	}
	script := f.scripts[pin]
	if len(script) == 0 {
		return gpio.High, nil
	}
	f.scripts[pin] = script[1:]
	return script[0], nil
}

func (f *Fake) ReleaseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	f.configured = nil
	return nil
}

// Configured returns the pins currently configured, in configuration order.
func (f *Fake) Configured() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.configured...)
}

// Releases returns how many times ReleaseAll was called.
func (f *Fake) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// Reads returns how many times pin was read.
func (f *Fake) Reads(pin int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[pin]
}
