// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var discoveryTimeout time.Duration

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with a board attached",
	Long: `Probe every serial port on this host for a signalbox board.

Each port is opened at --baud and sent one probe byte ('?'). A port whose
answer decodes as a board response line is reported as a board. The probe
is not a command, so the LEDs and held state of a board are not changed.

Examples:
  signalbox discovery
  signalbox discovery --baud 9600 --timeout 2s

Exit codes:
  0 - At least one board found
  1 - No board answered
  2 - Ports could not be listed`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().DurationVar(&discoveryTimeout, "timeout", 500*time.Millisecond, "Time to wait for each port to answer")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list serial ports: %v\n", err)
		os.Exit(exitLinkError)
	}

	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Board Discovery\n")
	fmt.Fprintf(out, "Baud: %d\n", cfg.Serial.Baud)
	fmt.Fprintf(out, "Timeout: %s per port\n\n", discoveryTimeout)

	found := discoverBoards(out, names, func(name string) (Connection, error) {
		return OpenSerialConnection(name, cfg.Serial.Baud)
	}, discoveryTimeout)

	fmt.Fprintf(out, "\n--- Discovery summary ---\n")
	fmt.Fprintf(out, "Ports probed: %d\n", len(names))
	fmt.Fprintf(out, "Boards found: %d\n", len(found))
	for _, name := range found {
		fmt.Fprintf(out, "  %s\n", name)
	}

	if len(found) == 0 {
		fmt.Fprintf(out, "No boards discovered. Check the cable, baud rate and board power.\n")
		os.Exit(exitFailure)
	}
	return nil
}

// discoverBoards probes each named port and returns the ones that answered
func discoverBoards(out io.Writer, names []string, open func(name string) (Connection, error), timeout time.Duration) []string {
	found := make([]string, 0)
	for _, name := range names {
		fmt.Fprintf(out, "%s: ", name)

		conn, err := open(name)
		if err != nil {
			fmt.Fprintf(out, "open failed: %v\n", err)
			continue
		}

		link := newHostLink(conn)
		start := time.Now()
		// Any decodable line means a board is listening, even a wrong one
		resp, err := link.exchange(probeCommand, timeout)
		link.Close()

		if resp == nil {
			fmt.Fprintf(out, "no board (%v)\n", err)
			continue
		}
		fmt.Fprintf(out, "board answered %s (rtt=%v)\n", resp.Raw, time.Since(start).Round(time.Millisecond))
		if err != nil {
			logger.Warn().Err(err).Str("port", name).Msg("board gave an unexpected answer to the probe")
		}
		found = append(found, name)
	}
	return found
}
