// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package led

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is the Linux LED class directory.
const DefaultSysfsRoot = "/sys/class/leds"

// SysfsPins drives LEDs through the Linux sysfs LED interface. Line names
// are LED class device names (e.g. "usr_led").
type SysfsPins struct {
	root string
}

// NewSysfsPins creates a sysfs backend. An empty root uses DefaultSysfsRoot.
// The trigger of every named LED is set to "none" so brightness writes are
// not overridden by a kernel trigger.
func NewSysfsPins(root string, names ...string) (*SysfsPins, error) {
	if root == "" {
		root = DefaultSysfsRoot
	}
	s := &SysfsPins{root: root}
	for _, name := range names {
		ledPath := filepath.Join(root, name)
		if _, err := os.Stat(ledPath); err != nil {
			return nil, fmt.Errorf("%w: %s not found at %s", ErrUnknownLED, name, ledPath)
		}
		triggerPath := filepath.Join(ledPath, "trigger")
		if _, err := os.Stat(triggerPath); err == nil {
			if err := os.WriteFile(triggerPath, []byte("none"), 0644); err != nil {
				return nil, fmt.Errorf("failed to set LED trigger for %s: %w", name, err)
			}
		}
	}
	return s, nil
}

// Out writes brightness 1 or 0
func (s *SysfsPins) Out(name string, high bool) error {
	value := "0"
	if high {
		value = "1"
	}
	brightnessPath := filepath.Join(s.root, name, "brightness")
	if err := os.WriteFile(brightnessPath, []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

// Read reports a non-zero brightness as high
func (s *SysfsPins) Read(name string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, name, "brightness"))
	if err != nil {
		return false, fmt.Errorf("failed to read LED brightness: %w", err)
	}
	value := strings.TrimSpace(string(data))
	return value != "" && value != "0", nil
}

// Close is a no-op; sysfs LEDs keep their last level
func (s *SysfsPins) Close() error {
	return nil
}
