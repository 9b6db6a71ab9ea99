// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports present on this host.

USB ports show their vendor and product IDs, serial number and product
name when the operating system reports them. Host tools started without
--port or --url use the first port listed.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	printPorts(cmd.OutOrStdout(), ports)
	return nil
}

func printPorts(out io.Writer, ports []*enumerator.PortDetails) {
	if len(ports) == 0 {
		fmt.Fprintf(out, "No serial ports found\n")
		return
	}

	fmt.Fprintf(out, "Found %d serial port(s):\n", len(ports))
	for _, p := range ports {
		if !p.IsUSB {
			fmt.Fprintf(out, "  %s\n", p.Name)
			continue
		}
		fmt.Fprintf(out, "  %s  USB %s:%s", p.Name, p.VID, p.PID)
		if p.SerialNumber != "" {
			fmt.Fprintf(out, "  serial=%s", p.SerialNumber)
		}
		if p.Product != "" {
			fmt.Fprintf(out, "  %s", p.Product)
		}
		fmt.Fprintln(out)
	}
}
