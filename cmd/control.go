// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var controlTimeout time.Duration

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving a board",
	Long: `Drive a board from an interactive terminal UI.

Pick A, B or N from the command list, or type any byte (a character,
a name such as OBJECT_B, or a value such as 0x3F) into the input box,
and press Enter to send it. Each response is checked against the command
that was sent.

Features:
  - Command list and raw byte input
  - Response verification with round-trip times
  - Timeout tracking (a repeat of the held state is not answered)
  - Statistics and event log
  - Automatic reconnection on connection loss

Tab switches between the command list and the input box.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().DurationVar(&controlTimeout, "timeout", time.Second, "Time to wait for each response")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// write sends one command byte on the current connection
func (cm *connectionManager) write(c protocol.Command) error {
	conn := cm.getConn()
	if conn == nil {
		return ErrConnectionClosed
	}
	if _, err := conn.Write([]byte{byte(c)}); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkWrite, err)
	}
	return nil
}

func runControl(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	// Keep log output from tearing the alt screen
	logger = logger.Level(zerolog.Disabled)

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	m := initialControlModel(cm, connInfo, controlTimeout)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()

	if _, err := p.Run(); err != nil {
		close(cm.done)
		cm.getConn().Close()
		return fmt.Errorf("TUI error: %w", err)
	}

	close(cm.done)
	cm.getConn().Close()
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromConnection()

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection decodes response lines until the connection fails.
// Returns true if connection was lost, false if shutdown requested
func (cm *connectionManager) readFromConnection() bool {
	decoder := protocol.NewResponseDecoder()

	// Buffered channel for batching updates
	batchChan := make(chan controlDataMsg, 100)
	readerDone := make(chan struct{})

	// Reader goroutine - decodes lines and sends to batch channel
	go func() {
		defer close(readerDone)
		buf := make([]byte, 128)
		for {
			select {
			case <-cm.done:
				return
			default:
			}

			conn := cm.getConn()
			if conn == nil {
				return
			}

			n, err := conn.Read(buf)
			if err != nil {
				select {
				case <-cm.done:
					return
				default:
					if isLinkClosed(err) {
						return
					}
					// Brief pause before retry on transient errors (e.g., serial)
					time.Sleep(readRetryDelay)
					continue
				}
			}

			for i := 0; i < n; i++ {
				resp, decodeErr := decoder.DecodeByte(buf[i])
				if resp == nil && decodeErr == nil {
					continue
				}
				select {
				case batchChan <- controlDataMsg{response: resp, decodeErr: decodeErr}:
				default:
				}
			}
		}
	}()

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch controlBatchMsg

			drainLoop:
				for {
					select {
					case msg := <-batchChan:
						batch.messages = append(batch.messages, msg)
					default:
						break drainLoop
					}
				}

				if len(batch.messages) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	// Wait for reader to finish (connection lost or shutdown)
	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
