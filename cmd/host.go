// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
)

// Exit codes shared by the host tools
const (
	exitOK        = 0
	exitFailure   = 1
	exitLinkError = 2
)

var (
	// ErrResponseTimeout is returned when the board does not answer in time.
	// The board stays silent for a command equal to its held state.
	ErrResponseTimeout = errors.New("no response")

	// ErrResponseMismatch is returned when the board answers with the wrong line
	ErrResponseMismatch = errors.New("unexpected response")

	// ErrLinkWrite is returned when a command byte could not be written
	ErrLinkWrite = errors.New("link write failed")
)

// exitCodeFor maps an exchange error to a host tool exit code
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrLinkWrite):
		return exitLinkError
	default:
		return exitFailure
	}
}

// responseResult is one decoded line, or the error decoding it
type responseResult struct {
	resp *protocol.Response
	err  error
}

// hostLink drives a board from the host: it writes command bytes and
// decodes the board's response lines in a background reader.
type hostLink struct {
	conn      Connection
	responses chan responseResult
	cancel    context.CancelFunc
	done      chan struct{}
	err       error // reader exit reason, valid after done is closed
}

func newHostLink(conn Connection) *hostLink {
	ctx, cancel := context.WithCancel(context.Background())
	l := &hostLink{
		conn:      conn,
		responses: make(chan responseResult, 16),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

func (l *hostLink) run(ctx context.Context) {
	defer close(l.done)

	decoder := protocol.NewResponseDecoder()
	l.err = readLoop(ctx, l.conn, func(p []byte) {
		for _, b := range p {
			resp, err := decoder.DecodeByte(b)
			if resp == nil && err == nil {
				continue
			}
			select {
			case l.responses <- responseResult{resp: resp, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}, func(err error) {
		logger.Debug().Err(err).Msg("read error, retrying")
	})
}

// Close stops the reader and closes the connection
func (l *hostLink) Close() error {
	l.cancel()
	return l.conn.Close()
}

// send writes one command byte without waiting for an answer
func (l *hostLink) send(c protocol.Command) error {
	if _, err := l.conn.Write([]byte{byte(c)}); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkWrite, err)
	}
	return nil
}

// drain discards responses that arrived before the next exchange
func (l *hostLink) drain() {
	for {
		select {
		case <-l.responses:
		default:
			return
		}
	}
}

// next waits for the next response line
func (l *hostLink) next(timeout time.Duration) (*protocol.Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-l.responses:
		if r.err != nil {
			return nil, fmt.Errorf("decode response: %w", r.err)
		}
		return r.resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w within %s", ErrResponseTimeout, timeout)
	case <-l.done:
		if l.err == nil {
			return nil, ErrConnectionClosed
		}
		if errors.Is(l.err, ErrConnectionClosed) {
			return nil, l.err
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, l.err)
	}
}

// exchange sends c and waits for the board's answer. A response that does
// not answer c is returned together with ErrResponseMismatch.
func (l *hostLink) exchange(c protocol.Command, timeout time.Duration) (*protocol.Response, error) {
	l.drain()
	if err := l.send(c); err != nil {
		return nil, err
	}

	resp, err := l.next(timeout)
	if err != nil {
		return nil, err
	}
	if !resp.Answers(c) {
		return resp, fmt.Errorf("%w: got %q, want %q", ErrResponseMismatch,
			resp.Raw, strings.TrimRight(protocol.ExpectedResponse(c), "\r\n"))
	}
	return resp, nil
}

// syncToNoObject drives the board to NO_OBJECT so the next A or B is
// guaranteed to differ from the held state. No answer is fine: the
// board may already hold NO_OBJECT.
func (l *hostLink) syncToNoObject(timeout time.Duration) {
	resp, err := l.exchange(protocol.CmdNoObject, timeout)
	switch {
	case err == nil:
		logger.Debug().Str("response", resp.Raw).Msg("board synced to NO_OBJECT")
	case errors.Is(err, ErrResponseTimeout):
		logger.Debug().Msg("board already held NO_OBJECT")
	default:
		logger.Warn().Err(err).Msg("sync to NO_OBJECT failed")
	}
}

// parseCommandArg accepts a literal byte ("A", "x"), a command name
// ("OBJECT_A", "no_object") or a hex/decimal byte value ("0x41", "65").
func parseCommandArg(arg string) (protocol.Command, error) {
	if arg == "" {
		return 0, errors.New("empty command")
	}
	if len(arg) == 1 {
		return protocol.Command(arg[0]), nil
	}

	for _, c := range protocol.Commands() {
		if strings.EqualFold(arg, protocol.FormatCommand(c)) {
			return c, nil
		}
	}

	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid command %q: use A, B, N, a command name or a byte value", arg)
	}
	return protocol.Command(v), nil
}

// describeCommand renders a command byte with its name for report output
func describeCommand(c protocol.Command) string {
	if !protocol.IsValidCommand(byte(c)) {
		return protocol.FormatByte(byte(c)) + " (not a command)"
	}
	return fmt.Sprintf("%s %s", protocol.FormatByte(byte(c)), protocol.FormatCommand(c))
}
