// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/signalbox/internal/config"
	"github.com/Thermoquad/signalbox/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Config file flag
	configPath string

	// Resolved settings, filled in by loadSettings before any RunE
	cfg    = config.Default()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "signalbox",
	Short: "Detection indicator board and host tools",
	Long: `Signalbox - Single-byte detection protocol for a two-LED indicator board.

The host classifies frames and sends one ASCII byte per result:
  A  object A detected   -> LED1 on,  LED2 off, board answers ACK_A
  B  object B detected   -> LED1 off, LED2 on,  board answers ACK_B
  N  nothing detected    -> both LEDs off,      board answers ACK_N
Any other byte is answered with ERR. A byte equal to the held state is
ignored and gets no answer.

The device command runs the board side; the remaining commands drive a
board from the host.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a TOML file (--config) and SIGNALBOX_*
environment variables. Flags win over the environment, which wins over
the file.

For WebSocket authentication, the password is read from the SIGNALBOX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configPath, "config", "", "TOML config file")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Log as JSON instead of console text")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadSettings resolves the config file, environment and explicit flags
// into cfg and builds the shared logger.
func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := loaded.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	logger = logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, SkipEnv: true})
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
