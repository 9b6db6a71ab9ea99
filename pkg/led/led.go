// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package led drives the two indicator LEDs of a signalbox board.
//
// A Bank maps protocol.LED1/LED2 onto named output lines of a Pins backend.
// Backend failures are logged and never returned to the protocol handler.
package led

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/rs/zerolog"
)

// DefaultBlinkPeriod is the half-period used by Blink when none is given.
const DefaultBlinkPeriod = 200 * time.Millisecond

// ErrUnknownLED is returned by Pins backends for a line they do not know.
var ErrUnknownLED = errors.New("unknown LED line")

// Pins is a set of named digital output lines.
type Pins interface {
	// Out drives the named line high or low
	Out(name string, high bool) error

	// Read returns the current level of the named line
	Read(name string) (bool, error)

	// Close releases backend resources
	Close() error
}

// Bank drives LED1 and LED2 through a Pins backend.
// It is safe for concurrent use; Blink may run alongside the handler.
type Bank struct {
	mu        sync.Mutex
	pins      Pins
	names     map[protocol.LEDID]string
	activeLow bool
	level     map[protocol.LEDID]bool
	logger    zerolog.Logger
}

// NewBank creates a bank. led1 and led2 are backend line names.
func NewBank(pins Pins, led1, led2 string, activeLow bool, logger zerolog.Logger) *Bank {
	return &Bank{
		pins: pins,
		names: map[protocol.LEDID]string{
			protocol.LED1: led1,
			protocol.LED2: led2,
		},
		activeLow: activeLow,
		level:     make(map[protocol.LEDID]bool),
		logger:    logger,
	}
}

// SetLED switches an LED on or off. Unknown ids are ignored.
func (b *Bank) SetLED(id protocol.LEDID, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(id, on)
}

func (b *Bank) set(id protocol.LEDID, on bool) {
	name, ok := b.names[id]
	if !ok {
		return
	}
	b.level[id] = on
	if err := b.pins.Out(name, on != b.activeLow); err != nil {
		b.logger.Warn().Err(err).Str("line", name).Bool("on", on).Msg("LED write failed")
	}
}

// ToggleLED inverts an LED. The current level is read back from the
// backend; the cached level is used if the read fails.
func (b *Bank) ToggleLED(id protocol.LEDID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name, ok := b.names[id]
	if !ok {
		return
	}
	on := b.level[id]
	if high, err := b.pins.Read(name); err == nil {
		on = high != b.activeLow
	}
	b.set(id, !on)
}

// Level returns the last level written to an LED.
func (b *Bank) Level(id protocol.LEDID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level[id]
}

// Levels returns the LED1 and LED2 levels.
func (b *Bank) Levels() (led1, led2 bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level[protocol.LED1], b.level[protocol.LED2]
}

// AllOff drives both LEDs off.
func (b *Bank) AllOff() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(protocol.LED1, false)
	b.set(protocol.LED2, false)
}

// Blink toggles an LED on and off times times, holding each level for
// period. The LED ends at its starting level. Returns early with the
// context error if ctx is cancelled.
func (b *Bank) Blink(ctx context.Context, id protocol.LEDID, times int, period time.Duration) error {
	if period <= 0 {
		period = DefaultBlinkPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i := 0; i < times*2; i++ {
		b.ToggleLED(id)
		select {
		case <-ctx.Done():
			if i%2 == 0 {
				b.ToggleLED(id)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close releases the backend.
func (b *Bank) Close() error {
	return b.pins.Close()
}
