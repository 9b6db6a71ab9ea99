// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package led

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPins drives GPIO lines through periph.io. Line names are periph pin
// names such as "GPIO17" or "P1_11".
type PeriphPins struct {
	pins map[string]gpio.PinIO
}

// NewPeriphPins initializes the periph host drivers and resolves every
// named line. All lines start low.
func NewPeriphPins(names ...string) (*PeriphPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	p := &PeriphPins{pins: make(map[string]gpio.PinIO, len(names))}
	for _, name := range names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("%w: no GPIO named %s", ErrUnknownLED, name)
		}
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to configure %s as output: %w", name, err)
		}
		p.pins[name] = pin
	}
	return p, nil
}

// Out drives a GPIO line
func (p *PeriphPins) Out(name string, high bool) error {
	pin, ok := p.pins[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLED, name)
	}
	return pin.Out(gpio.Level(high))
}

// Read returns the GPIO line level
func (p *PeriphPins) Read(name string) (bool, error) {
	pin, ok := p.pins[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLED, name)
	}
	return bool(pin.Read()), nil
}

// Close drives every line low and halts the pins
func (p *PeriphPins) Close() error {
	var firstErr error
	for name, pin := range p.pins {
		if err := pin.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to drive %s low: %w", name, err)
		}
		if err := pin.Halt(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to halt %s: %w", name, err)
		}
	}
	return firstErr
}
