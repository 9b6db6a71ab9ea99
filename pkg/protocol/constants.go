// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package protocol implements the signalbox detection link.
//
// The host classifies camera frames and reports the result to the indicator
// board as a single ASCII byte. The board drives two LEDs and answers every
// state change with a fixed CRLF-terminated acknowledgement. There is no
// framing, checksum or payload: one byte in, at most one line out.
package protocol

// Command is a single-byte detection report sent by the host.
type Command byte

// Detection commands (Host → Board)
const (
	CmdObjectA  Command = 'A' // object A in frame
	CmdObjectB  Command = 'B' // object B in frame
	CmdNoObject Command = 'N' // nothing detected
)

// Responses (Board → Host)
const (
	AckA        = "ACK_A\r\n"
	AckB        = "ACK_B\r\n"
	AckN        = "ACK_N\r\n"
	ErrResponse = "ERR\r\n"

	// LegacyErrResponse is sent by the older polling firmware. It is
	// understood by the response decoder but never emitted.
	LegacyErrResponse = "ERR:Invalid Command\r\n"
)

// Response line prefixes
const (
	AckPrefix = "ACK_"
	ErrPrefix = "ERR"
)

// MaxLineLength bounds a response line, excluding the line terminator.
const MaxLineLength = 32

// LEDID identifies one of the two indicator outputs.
type LEDID uint8

const (
	LED1 LEDID = 1
	LED2 LEDID = 2
)

// IsValidCommand reports whether b is one of the detection commands.
func IsValidCommand(b byte) bool {
	switch Command(b) {
	case CmdObjectA, CmdObjectB, CmdNoObject:
		return true
	}
	return false
}

// Commands returns the detection commands in protocol order.
func Commands() []Command {
	return []Command{CmdObjectA, CmdObjectB, CmdNoObject}
}
