// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

// State is the last accepted detection command held by a Handler.
type State uint8

const (
	StateUninitialized State = iota
	StateObjectA
	StateObjectB
	StateNoObject
)

// String returns the human-readable name for a state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateObjectA:
		return "OBJECT_A"
	case StateObjectB:
		return "OBJECT_B"
	case StateNoObject:
		return "NO_OBJECT"
	default:
		return "UNKNOWN"
	}
}

// StateFor maps a command to the state it selects.
// Returns false for bytes outside the command set.
func StateFor(c Command) (State, bool) {
	switch c {
	case CmdObjectA:
		return StateObjectA, true
	case CmdObjectB:
		return StateObjectB, true
	case CmdNoObject:
		return StateNoObject, true
	}
	return StateUninitialized, false
}

// LEDLevels returns the LED1 and LED2 levels a state drives.
// Uninitialized drives both off, same as NoObject.
func (s State) LEDLevels() (led1, led2 bool) {
	switch s {
	case StateObjectA:
		return true, false
	case StateObjectB:
		return false, true
	}
	return false, false
}

// Ack returns the acknowledgement sent when entering the state.
// Uninitialized has no acknowledgement.
func (s State) Ack() string {
	switch s {
	case StateObjectA:
		return AckA
	case StateObjectB:
		return AckB
	case StateNoObject:
		return AckN
	}
	return ""
}
