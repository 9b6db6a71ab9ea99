// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Signalbox - detection indicator board and host tools
//
// Runs the single-byte detection protocol on a board emulator or real
// LEDs, and drives a board from the host over serial or WebSocket.

package main

import (
	"os"

	"github.com/Thermoquad/signalbox/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
