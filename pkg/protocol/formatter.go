// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import "fmt"

// FormatCommand returns the human-readable name for a command byte
func FormatCommand(c Command) string {
	switch c {
	case CmdObjectA:
		return "OBJECT_A"
	case CmdObjectB:
		return "OBJECT_B"
	case CmdNoObject:
		return "NO_OBJECT"
	default:
		return "UNKNOWN"
	}
}

// FormatByte renders an input byte for logs: printable ASCII is quoted,
// anything else is shown in hex.
func FormatByte(b byte) string {
	if b >= 0x20 && b < 0x7F {
		return fmt.Sprintf("'%c' (0x%02X)", b, b)
	}
	return fmt.Sprintf("0x%02X", b)
}

// FormatResponse formats a response into a human-readable line
func FormatResponse(r *Response) string {
	timestamp := r.Timestamp.Format("15:04:05.000")
	if r.Kind == ResponseErr {
		return fmt.Sprintf("[%s] ERR %q\n", timestamp, r.Raw)
	}
	return fmt.Sprintf("[%s] ACK %s (%s)\n", timestamp, FormatCommand(r.Command), r.Raw)
}

// FormatTransition formats a handled byte for the device log
func FormatTransition(t Transition) string {
	timestamp := t.At.Format("15:04:05.000")
	switch t.Outcome {
	case OutcomeAccepted:
		return fmt.Sprintf("[%s] %s %s -> %s\n", timestamp, FormatByte(t.Input), t.From, t.To)
	case OutcomeRepeated:
		return fmt.Sprintf("[%s] %s repeated, holding %s\n", timestamp, FormatByte(t.Input), t.From)
	default:
		return fmt.Sprintf("[%s] %s rejected, holding %s\n", timestamp, FormatByte(t.Input), t.From)
	}
}
