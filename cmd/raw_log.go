// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display board responses as they arrive",
	Long: `Continuously decode and display board response lines.

Each ACK or ERR line is printed with a timestamp. Lines that are too long
or not part of the protocol are reported as errors.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signalbox - Raw Response Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return logResponses(ctx, out, conn)
}

// logResponses prints decoded response lines until ctx is done or the
// link closes
func logResponses(ctx context.Context, out io.Writer, r io.Reader) error {
	decoder := protocol.NewResponseDecoder()
	err := readLoop(ctx, r, func(p []byte) {
		for _, b := range p {
			resp, err := decoder.DecodeByte(b)
			if err != nil {
				fmt.Fprintf(out, "[ERROR] %v\n", err)
				continue
			}
			if resp != nil {
				fmt.Fprint(out, protocol.FormatResponse(resp))
			}
		}
	}, func(err error) {
		logger.Warn().Err(err).Msg("read error")
	})

	if isLinkClosed(err) {
		logger.Info().Msg("connection closed")
		return nil
	}
	return err
}
