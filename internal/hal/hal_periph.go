//go:build linux && !disablegpio

// This file provides the Raspberry Pi implementation of Inputs using the
// periph.io library.  When building for other platforms or when the build
// tag "disablegpio" is specified, hal_stub.go is used instead.

package hal

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const stubBuild = false

// periphInputs keeps the pins it configured so ReleaseAll can undo them.
// The host drivers are loaded on the first ConfigurePullUp, so a missing
// GPIO controller surfaces as a configuration failure of the first pin.
type periphInputs struct {
	mu       sync.Mutex
	pins     map[int]gpio.PinIO
	initHost func() error
	initOnce sync.Once
	initErr  error
}

// Open returns the Raspberry Pi inputs.  It does not touch the hardware;
// ReleaseAll is safe to call on the result at any point.
func Open() Inputs {
	return &periphInputs{
		pins: make(map[int]gpio.PinIO),
		initHost: func() error {
			_, err := host.Init()
			return err
		},
	}
}

func (p *periphInputs) ready() error {
	p.initOnce.Do(func() {
		if err := p.initHost(); err != nil {
			p.initErr = fmt.Errorf("initialise gpio host: %w", err)
		}
	})
	return p.initErr
}

func (p *periphInputs) ConfigurePullUp(pin int) error {
	if err := p.ready(); err != nil {
		return err
	}
	pinIO := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if pinIO == nil {
		return fmt.Errorf("gpio pin %d not found", pin)
	}
	if err := pinIO.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("configure GPIO%d as pulled-up input: %w", pin, err)
	}
	p.mu.Lock()
	p.pins[pin] = pinIO
	p.mu.Unlock()
	return nil
}

func (p *periphInputs) Read(pin int) (gpio.Level, error) {
	p.mu.Lock()
	pinIO, ok := p.pins[pin]
	p.mu.Unlock()
	if !ok {
		return gpio.High, fmt.Errorf("gpio pin %d not configured", pin)
	}
	return pinIO.Read(), nil
}

// ReleaseAll leaves every pin as a floating input, which is the state the
// kernel hands them out in.
func (p *periphInputs) ReleaseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for pin, pinIO := range p.pins {
		if err := pinIO.In(gpio.Float, gpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("release GPIO%d: %w", pin, err))
		}
		if err := pinIO.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt GPIO%d: %w", pin, err))
		}
		delete(p.pins, pin)
	}
	return errors.Join(errs...)
}
