// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/spf13/cobra"
)

var (
	protocolTestDelay   time.Duration
	protocolTestTimeout time.Duration
	protocolTestInvalid bool
)

var protocolTestCmd = &cobra.Command{
	Use:   "protocol_test",
	Short: "Walk the board through every command and verify each answer",
	Long: `Send A, B and N in order and verify each acknowledgement.

The board is first driven to NO_OBJECT so that A is guaranteed to change
the held state. With --invalid (default) a non-command byte is sent last
and must be answered with ERR.

Exit codes:
  0 - All steps passed
  1 - One or more steps failed
  2 - Connection error`,
	RunE: runProtocolTest,
}

func init() {
	rootCmd.AddCommand(protocolTestCmd)
	protocolTestCmd.Flags().DurationVar(&protocolTestDelay, "delay", 500*time.Millisecond, "Pause between commands")
	protocolTestCmd.Flags().DurationVar(&protocolTestTimeout, "timeout", time.Second, "Time to wait for each response")
	protocolTestCmd.Flags().BoolVar(&protocolTestInvalid, "invalid", true, "Also check that a non-command byte gets ERR")
}

func runProtocolTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitLinkError)
	}
	link := newHostLink(conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Protocol Test\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Delay: %v, Timeout: %v\n\n", protocolTestDelay, protocolTestTimeout)

	failed, err := runProtocolSteps(out, link, protocolTestDelay, protocolTestTimeout, protocolTestInvalid)
	link.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Link error: %v\n", err)
		os.Exit(exitLinkError)
	}
	if failed > 0 {
		os.Exit(exitFailure)
	}
	return nil
}

// protocolSteps returns the bytes checked by protocol_test
func protocolSteps(checkInvalid bool) []protocol.Command {
	steps := protocol.Commands()
	if checkInvalid {
		steps = append(steps, protocol.Command('?'))
	}
	return steps
}

// runProtocolSteps runs the sequence and prints one line per step.
// Returns the number of failed steps, or a link error that aborted the run.
func runProtocolSteps(out io.Writer, link *hostLink, delay, timeout time.Duration, checkInvalid bool) (int, error) {
	link.syncToNoObject(timeout)

	steps := protocolSteps(checkInvalid)
	failed := 0
	for i, c := range steps {
		if i > 0 {
			time.Sleep(delay)
		}

		fmt.Fprintf(out, "--- %s ---\n", describeCommand(c))
		fmt.Fprintf(out, "  Expect: %s, %s\n",
			strings.TrimRight(protocol.ExpectedResponse(c), "\r\n"), describeLEDs(c))

		resp, err := link.exchange(c, timeout)
		if err != nil {
			if exitCodeFor(err) == exitLinkError {
				return failed, err
			}
			failed++
			fmt.Fprintf(out, "  FAIL: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  PASS: %s\n", resp.Raw)
	}

	fmt.Fprintf(out, "\n--- Protocol test ---\n")
	fmt.Fprintf(out, "%d steps, %d passed, %d failed\n", len(steps), len(steps)-failed, failed)
	return failed, nil
}

// describeLEDs names the LED levels a command selects
func describeLEDs(c protocol.Command) string {
	s, ok := protocol.StateFor(c)
	if !ok {
		return "LEDs unchanged"
	}
	led1, led2 := s.LEDLevels()
	return fmt.Sprintf("LED1 %s, LED2 %s", onOff(led1), onOff(led2))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
