// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/spf13/cobra"
)

// probeCommand is a byte outside the command set. The board answers it
// with ERR and keeps its held state, so it is safe to send at any time.
const probeCommand = protocol.Command('?')

var (
	pingTimeout time.Duration
	pingCount   int
	pingDelay   time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip time to the board",
	Long: `Send probe bytes to the board and wait for each ERR answer.

The probe ('?') is not a command, so the board answers every probe with
ERR and its LEDs and held state stay as they are. This works over a
serial port or through a WebSocket bridge and is useful for verifying:
  - the link is established (and authenticated, for WebSocket)
  - the board is running its protocol handler
  - round-trip latency

Exit codes:
  0 - All probes answered
  1 - One or more probes failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", time.Second, "Time to wait for each answer")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of probes to send")
	pingCmd.Flags().DurationVar(&pingDelay, "delay", 100*time.Millisecond, "Pause between probes")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitLinkError)
	}
	link := newHostLink(conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Ping\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Timeout: %s per probe\n", pingTimeout)
	fmt.Fprintf(out, "Count: %d probes\n\n", pingCount)

	result := runPings(out, link, pingCount, pingDelay, pingTimeout)
	link.Close()

	if result.linkErr != nil {
		os.Exit(exitLinkError)
	}
	if result.received < result.sent {
		os.Exit(exitFailure)
	}
	return nil
}

// pingResult summarizes a ping run
type pingResult struct {
	sent     int
	received int
	min      time.Duration
	max      time.Duration
	total    time.Duration
	linkErr  error
}

func (r pingResult) average() time.Duration {
	if r.received == 0 {
		return 0
	}
	return r.total / time.Duration(r.received)
}

// runPings sends count probes and reports each round trip
func runPings(out io.Writer, link *hostLink, count int, delay, timeout time.Duration) pingResult {
	var result pingResult

	for i := 1; i <= count; i++ {
		fmt.Fprintf(out, "Ping %d/%d: ", i, count)

		start := time.Now()
		resp, err := link.exchange(probeCommand, timeout)
		result.sent++
		if err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			if exitCodeFor(err) == exitLinkError {
				result.linkErr = err
				break
			}
		} else {
			rtt := time.Since(start)
			fmt.Fprintf(out, "%s, rtt=%v\n", resp.Raw, rtt.Round(time.Millisecond))
			result.received++
			result.total += rtt
			if result.min == 0 || rtt < result.min {
				result.min = rtt
			}
			if rtt > result.max {
				result.max = rtt
			}
		}

		if i < count {
			time.Sleep(delay)
		}
	}

	loss := float64(result.sent-result.received) / float64(result.sent) * 100
	fmt.Fprintf(out, "\n--- Ping statistics ---\n")
	fmt.Fprintf(out, "%d probes sent, %d answered, %.0f%% loss\n", result.sent, result.received, loss)
	if result.received > 0 {
		fmt.Fprintf(out, "rtt min/avg/max = %v/%v/%v\n",
			result.min.Round(time.Microsecond),
			result.average().Round(time.Microsecond),
			result.max.Round(time.Microsecond))
	}
	return result
}
