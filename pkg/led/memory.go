// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package led

import (
	"fmt"
	"sync"
)

// PinWrite is one recorded write to a MemoryPins line.
type PinWrite struct {
	Name string
	High bool
}

// MemoryPins is an in-memory Pins backend for tests and the board emulator.
type MemoryPins struct {
	mu      sync.Mutex
	lines   map[string]bool
	history []PinWrite
}

// NewMemoryPins creates a backend with the given lines, all low.
func NewMemoryPins(names ...string) *MemoryPins {
	m := &MemoryPins{lines: make(map[string]bool)}
	for _, n := range names {
		m.lines[n] = false
	}
	return m
}

// Out drives a line
func (m *MemoryPins) Out(name string, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLED, name)
	}
	m.lines[name] = high
	m.history = append(m.history, PinWrite{Name: name, High: high})
	return nil
}

// Read returns a line level
func (m *MemoryPins) Read(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	high, ok := m.lines[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLED, name)
	}
	return high, nil
}

// History returns a copy of all writes in order.
func (m *MemoryPins) History() []PinWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PinWrite, len(m.history))
	copy(out, m.history)
	return out
}

// Close is a no-op
func (m *MemoryPins) Close() error {
	return nil
}
