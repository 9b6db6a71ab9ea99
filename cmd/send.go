// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/spf13/cobra"
)

var (
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <A|B|N|byte>",
	Short: "Send one command byte and verify the board's answer",
	Long: `Send a single command byte and wait for the response line.

The argument may be a literal byte (A, B, N, or anything else to provoke
ERR), a command name (OBJECT_A, OBJECT_B, NO_OBJECT) or a byte value
(0x41, 65).

The board does not answer a command equal to the state it already holds,
so sending the same command twice in a row times out the second time.

Exit codes:
  0 - Expected response received
  1 - Timeout, wrong response or undecodable line
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", time.Second, "Time to wait for the response")
}

func runSend(cmd *cobra.Command, args []string) error {
	c, err := parseCommandArg(args[0])
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitLinkError)
	}
	link := newHostLink(conn)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Send Command\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Command: %s\n", describeCommand(c))
	fmt.Fprintf(out, "Expected: %s\n\n", strings.TrimRight(protocol.ExpectedResponse(c), "\r\n"))

	err = sendOnce(out, link, c, sendTimeout)
	link.Close()
	os.Exit(exitCodeFor(err))
	return nil
}

// sendOnce performs one exchange and reports the result
func sendOnce(out io.Writer, link *hostLink, c protocol.Command, timeout time.Duration) error {
	start := time.Now()
	resp, err := link.exchange(c, timeout)
	switch {
	case err == nil:
		fmt.Fprintf(out, "SUCCESS: %s (rtt=%v)\n", resp.Raw, time.Since(start).Round(time.Millisecond))
	case errors.Is(err, ErrResponseTimeout):
		fmt.Fprintf(out, "TIMEOUT: %v (the board does not answer a repeat of its held state)\n", err)
	case errors.Is(err, ErrResponseMismatch):
		fmt.Fprintf(out, "MISMATCH: %v\n", err)
	default:
		fmt.Fprintf(out, "FAILED: %v\n", err)
	}
	return err
}
