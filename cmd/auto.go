// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/spf13/cobra"
)

var (
	autoStep   time.Duration
	autoFast   time.Duration
	autoCycles int
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Play a scripted command sequence for visual LED checks",
	Long: `Send a fixed sequence without verifying responses:

  N, A, B, N at --step intervals (the first pause is half a step),
  then --cycles fast A, B, N switches at --fast intervals.

Responses that arrive are printed as they are seen. Use this to watch the
LEDs follow the commands; use protocol_test to verify acknowledgements.`,
	RunE: runAutoCmd,
}

func init() {
	rootCmd.AddCommand(autoCmd)
	autoCmd.Flags().DurationVar(&autoStep, "step", time.Second, "Pause after each slow step")
	autoCmd.Flags().DurationVar(&autoFast, "fast", 200*time.Millisecond, "Pause after each fast switch")
	autoCmd.Flags().IntVar(&autoCycles, "cycles", 5, "Number of fast A, B, N cycles")
}

// scriptStep is one scripted command and the pause that follows it
type scriptStep struct {
	command protocol.Command
	pause   time.Duration
}

// autoSequence builds the scripted sequence
func autoSequence(step, fast time.Duration, cycles int) []scriptStep {
	seq := []scriptStep{
		{protocol.CmdNoObject, step / 2},
		{protocol.CmdObjectA, step},
		{protocol.CmdObjectB, step},
		{protocol.CmdNoObject, step},
	}
	for i := 0; i < cycles; i++ {
		for _, c := range protocol.Commands() {
			seq = append(seq, scriptStep{c, fast})
		}
	}
	return seq
}

func runAutoCmd(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	link := newHostLink(conn)
	defer link.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Auto Sequence\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runAuto(ctx, out, link, autoSequence(autoStep, autoFast, autoCycles))
}

// runAuto sends each step and prints whatever the board answers during
// the pause. A write failure stops the sequence.
func runAuto(ctx context.Context, out io.Writer, link *hostLink, seq []scriptStep) error {
	for i, s := range seq {
		if err := link.send(s.command); err != nil {
			return err
		}
		fmt.Fprintf(out, "[%2d/%d] sent %s\n", i+1, len(seq), describeCommand(s.command))

		if !printResponsesFor(ctx, out, link, s.pause) {
			fmt.Fprintf(out, "Stopped after %d of %d steps\n", i+1, len(seq))
			return nil
		}
	}

	fmt.Fprintf(out, "Auto sequence complete: %d commands sent\n", len(seq))
	return nil
}

// printResponsesFor prints responses until d elapses. Returns false if ctx
// was cancelled or the link closed.
func printResponsesFor(ctx context.Context, out io.Writer, link *hostLink, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case r := <-link.responses:
			if r.err != nil {
				fmt.Fprintf(out, "        [ERROR] %v\n", r.err)
			} else {
				fmt.Fprintf(out, "        %s", protocol.FormatResponse(r.resp))
			}
		case <-timer.C:
			return true
		case <-link.done:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
