// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package led

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendSysfs  = "sysfs"
	BackendPeriph = "periph"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown LED backend")

// Config selects and configures a Pins backend.
type Config struct {
	Backend   string
	LED1      string // backend line name for LED1
	LED2      string // backend line name for LED2
	ActiveLow bool
	SysfsRoot string
}

// DefaultConfig returns an emulator configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		LED1:    "led1",
		LED2:    "led2",
	}
}

// Open creates the backend described by cfg and wraps it in a Bank.
// Both LEDs are driven off before Open returns.
func Open(cfg Config, logger zerolog.Logger) (*Bank, error) {
	var (
		pins Pins
		err  error
	)

	switch cfg.Backend {
	case "", BackendMemory:
		pins = NewMemoryPins(cfg.LED1, cfg.LED2)
	case BackendSysfs:
		pins, err = NewSysfsPins(cfg.SysfsRoot, cfg.LED1, cfg.LED2)
	case BackendPeriph:
		pins, err = NewPeriphPins(cfg.LED1, cfg.LED2)
	default:
		return nil, fmt.Errorf("%w: %q (use %s, %s or %s)",
			ErrUnknownBackend, cfg.Backend, BackendMemory, BackendSysfs, BackendPeriph)
	}
	if err != nil {
		return nil, err
	}

	bank := NewBank(pins, cfg.LED1, cfg.LED2, cfg.ActiveLow,
		logger.With().Str("component", "led").Str("backend", cfg.Backend).Logger())
	bank.AllOff()
	return bank, nil
}
