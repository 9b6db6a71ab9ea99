// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/spf13/cobra"
)

const stressProgressEvery = 10

var (
	stressCycles  int
	stressDelay   time.Duration
	stressTimeout time.Duration
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Cycle A, B, N repeatedly and count acknowledgements",
	Long: `Repeat the A, B, N cycle and verify every acknowledgement.

Progress is printed every 10 cycles and full statistics at the end.

Exit codes:
  0 - Every command acknowledged
  1 - One or more failures
  2 - Connection error`,
	RunE: runStressCmd,
}

func init() {
	rootCmd.AddCommand(stressCmd)
	stressCmd.Flags().IntVar(&stressCycles, "cycles", 100, "Number of A, B, N cycles")
	stressCmd.Flags().DurationVar(&stressDelay, "delay", 100*time.Millisecond, "Pause between commands")
	stressCmd.Flags().DurationVar(&stressTimeout, "timeout", 500*time.Millisecond, "Time to wait for each response")
}

func runStressCmd(cmd *cobra.Command, args []string) error {
	if stressCycles <= 0 {
		return fmt.Errorf("--cycles must be positive, got %d", stressCycles)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitLinkError)
	}
	link := newHostLink(conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Stress Test\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Cycles: %d, Delay: %v, Timeout: %v\n\n", stressCycles, stressDelay, stressTimeout)

	result, err := runStress(out, link, stressCycles, stressDelay, stressTimeout)
	link.Close()

	fmt.Fprintln(out)
	fmt.Fprint(out, result.stats.String())

	if err != nil {
		fmt.Fprintf(os.Stderr, "Link error: %v\n", err)
		os.Exit(exitLinkError)
	}
	if result.failed > 0 {
		os.Exit(exitFailure)
	}
	return nil
}

type stressResult struct {
	succeeded int
	failed    int
	stats     *protocol.Statistics
}

// runStress runs the cycles; a link error aborts early
func runStress(out io.Writer, link *hostLink, cycles int, delay, timeout time.Duration) (stressResult, error) {
	result := stressResult{stats: protocol.NewStatistics()}

	link.syncToNoObject(timeout)

	for i := 1; i <= cycles; i++ {
		for _, c := range protocol.Commands() {
			result.stats.RecordSent()
			resp, err := link.exchange(c, timeout)
			switch {
			case err == nil:
				result.succeeded++
				result.stats.RecordResponse(c, resp, nil)
			case errors.Is(err, ErrResponseTimeout):
				result.failed++
				result.stats.RecordTimeout()
			case errors.Is(err, ErrResponseMismatch):
				result.failed++
				result.stats.RecordResponse(c, resp, nil)
			case exitCodeFor(err) == exitLinkError:
				return result, err
			default:
				result.failed++
				result.stats.RecordResponse(c, nil, err)
			}

			if delay > 0 {
				time.Sleep(delay)
			}
		}

		if i%stressProgressEvery == 0 {
			fmt.Fprintf(out, "Progress: %d/%d cycles, %d ok, %d failed\n", i, cycles, result.succeeded, result.failed)
		}
	}

	fmt.Fprintf(out, "Stress test complete: %d ok, %d failed\n", result.succeeded, result.failed)
	return result, nil
}
