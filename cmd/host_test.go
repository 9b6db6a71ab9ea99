// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
)

const testTimeout = 500 * time.Millisecond

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"timeout", fmt.Errorf("%w within 1s", ErrResponseTimeout), exitFailure},
		{"mismatch", fmt.Errorf("%w: got x", ErrResponseMismatch), exitFailure},
		{"decode", errors.New("decode response: bad line"), exitFailure},
		{"closed", ErrConnectionClosed, exitLinkError},
		{"closed wrapped", fmt.Errorf("%w: %v", ErrConnectionClosed, io.EOF), exitLinkError},
		{"write", fmt.Errorf("%w: broken pipe", ErrLinkWrite), exitLinkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseCommandArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    protocol.Command
		wantErr bool
	}{
		{"A", protocol.CmdObjectA, false},
		{"B", protocol.CmdObjectB, false},
		{"N", protocol.CmdNoObject, false},
		{"a", protocol.Command('a'), false},
		{"?", protocol.Command('?'), false},
		{"OBJECT_A", protocol.CmdObjectA, false},
		{"no_object", protocol.CmdNoObject, false},
		{"Object_B", protocol.CmdObjectB, false},
		{"0x41", protocol.CmdObjectA, false},
		{"78", protocol.CmdNoObject, false},
		{"0xFF", protocol.Command(0xFF), false},
		{"", 0, true},
		{"0x100", 0, true},
		{"hello", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseCommandArg(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseCommandArg(%q) = %v, want error", tt.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommandArg(%q) error: %v", tt.arg, err)
			}
			if got != tt.want {
				t.Errorf("parseCommandArg(%q) = 0x%02X, want 0x%02X", tt.arg, byte(got), byte(tt.want))
			}
		})
	}
}

func TestDescribeCommand(t *testing.T) {
	if got := describeCommand(protocol.CmdObjectA); !strings.Contains(got, "OBJECT_A") {
		t.Errorf("describeCommand(A) = %q, want it to name OBJECT_A", got)
	}
	if got := describeCommand(protocol.Command('x')); !strings.Contains(got, "not a command") {
		t.Errorf("describeCommand(x) = %q, want it flagged as not a command", got)
	}
}

func TestHostLink_Exchange(t *testing.T) {
	board, h := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	for _, c := range []protocol.Command{protocol.CmdObjectA, protocol.CmdObjectB, protocol.CmdNoObject} {
		resp, err := link.exchange(c, testTimeout)
		if err != nil {
			t.Fatalf("exchange(%c) error: %v", c, err)
		}
		if !resp.Matches(c) {
			t.Errorf("exchange(%c) got %q", c, resp.Raw)
		}
	}

	if h.State() != protocol.StateNoObject {
		t.Errorf("board state = %v, want NO_OBJECT", h.State())
	}
	if got := string(board.sent()); got != "ABN" {
		t.Errorf("bytes sent = %q, want %q", got, "ABN")
	}
}

func TestHostLink_InvalidByteAnsweredWithErr(t *testing.T) {
	board, h := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	if _, err := link.exchange(protocol.CmdObjectA, testTimeout); err != nil {
		t.Fatalf("exchange(A) error: %v", err)
	}

	resp, err := link.exchange(protocol.Command('x'), testTimeout)
	if err != nil {
		t.Fatalf("exchange(x) error: %v", err)
	}
	if resp.Kind != protocol.ResponseErr {
		t.Errorf("exchange(x) got %q, want ERR", resp.Raw)
	}
	if h.State() != protocol.StateObjectA {
		t.Errorf("board state = %v, want OBJECT_A after a rejected byte", h.State())
	}
}

func TestHostLink_RepeatTimesOut(t *testing.T) {
	board, _ := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	if _, err := link.exchange(protocol.CmdObjectB, testTimeout); err != nil {
		t.Fatalf("first exchange error: %v", err)
	}

	_, err := link.exchange(protocol.CmdObjectB, 50*time.Millisecond)
	if !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("repeat exchange error = %v, want ErrResponseTimeout", err)
	}
	if exitCodeFor(err) != exitFailure {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitFailure)
	}
}

func TestHostLink_Mismatch(t *testing.T) {
	board := newScriptedBoard(t, protocol.AckB)
	link := newHostLink(board)
	defer link.Close()

	resp, err := link.exchange(protocol.CmdObjectA, testTimeout)
	if !errors.Is(err, ErrResponseMismatch) {
		t.Fatalf("exchange error = %v, want ErrResponseMismatch", err)
	}
	if resp == nil || resp.Command != protocol.CmdObjectB {
		t.Errorf("mismatched response = %+v, want ACK_B", resp)
	}
}

func TestHostLink_LegacyErrAnswersInvalidByte(t *testing.T) {
	board := newScriptedBoard(t, protocol.LegacyErrResponse)
	link := newHostLink(board)
	defer link.Close()

	resp, err := link.exchange(protocol.Command('?'), testTimeout)
	if err != nil {
		t.Fatalf("exchange error: %v", err)
	}
	if resp.Kind != protocol.ResponseErr {
		t.Errorf("got %q, want an ERR line", resp.Raw)
	}
}

func TestHostLink_DecodeError(t *testing.T) {
	board := newScriptedBoard(t, "HELLO\r\n")
	link := newHostLink(board)
	defer link.Close()

	_, err := link.exchange(protocol.CmdObjectA, testTimeout)
	if err == nil {
		t.Fatal("exchange succeeded on an unknown line")
	}
	if exitCodeFor(err) != exitFailure {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitFailure)
	}
}

func TestHostLink_ClosedLink(t *testing.T) {
	board, _ := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	board.hangUp()

	_, err := link.next(time.Second)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("next error = %v, want ErrConnectionClosed", err)
	}
	if exitCodeFor(err) != exitLinkError {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitLinkError)
	}
}

func TestHostLink_WriteFailure(t *testing.T) {
	board, _ := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	board.Close()

	err := link.send(protocol.CmdObjectA)
	if !errors.Is(err, ErrLinkWrite) {
		t.Fatalf("send error = %v, want ErrLinkWrite", err)
	}
}

func TestHostLink_SyncToNoObject(t *testing.T) {
	board, h := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	link.syncToNoObject(testTimeout)
	if h.State() != protocol.StateNoObject {
		t.Fatalf("board state = %v, want NO_OBJECT", h.State())
	}

	// Already at NO_OBJECT: no answer, no error path
	link.syncToNoObject(50 * time.Millisecond)
	if h.State() != protocol.StateNoObject {
		t.Errorf("board state = %v after second sync", h.State())
	}
}

func TestSendOnce(t *testing.T) {
	board, _ := newFakeBoard(t)
	link := newHostLink(board)
	defer link.Close()

	var out bytes.Buffer
	if err := sendOnce(&out, link, protocol.CmdObjectA, testTimeout); err != nil {
		t.Fatalf("sendOnce error: %v", err)
	}
	if !strings.Contains(out.String(), "SUCCESS: ACK_A") {
		t.Errorf("output = %q, want SUCCESS: ACK_A", out.String())
	}

	out.Reset()
	err := sendOnce(&out, link, protocol.CmdObjectA, 50*time.Millisecond)
	if !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("repeat sendOnce error = %v, want ErrResponseTimeout", err)
	}
	if !strings.Contains(out.String(), "TIMEOUT") {
		t.Errorf("output = %q, want TIMEOUT", out.String())
	}
}

func TestSendOnce_Mismatch(t *testing.T) {
	board := newScriptedBoard(t, protocol.AckN)
	link := newHostLink(board)
	defer link.Close()

	var out bytes.Buffer
	err := sendOnce(&out, link, protocol.CmdObjectB, testTimeout)
	if !errors.Is(err, ErrResponseMismatch) {
		t.Fatalf("sendOnce error = %v, want ErrResponseMismatch", err)
	}
	if !strings.Contains(out.String(), "MISMATCH") {
		t.Errorf("output = %q, want MISMATCH", out.String())
	}
}
