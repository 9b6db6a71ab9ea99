// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/signalbox/pkg/led"
	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/rs/zerolog"
)

// fakeBoard is a host-side Connection wired to an in-process board.
// Bytes written by the host go to onByte; replies flow back through a pipe.
type fakeBoard struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	closed  bool
	written []byte
	onByte  func(b byte)
}

// newFakeBoard runs a real protocol handler behind the link
func newFakeBoard(t *testing.T) (*fakeBoard, *protocol.Handler) {
	t.Helper()
	b := newPipeBoard()
	bank := led.NewBank(led.NewMemoryPins("led1", "led2"), "led1", "led2", false, zerolog.Nop())
	h := protocol.NewHandler(bank, protocol.NewWriterTransmitter(b.pw, nil))
	b.onByte = func(c byte) { h.HandleByte(c) }
	t.Cleanup(func() { b.Close() })
	return b, h
}

// newScriptedBoard answers every byte with reply, or stays silent if
// reply is empty
func newScriptedBoard(t *testing.T, reply string) *fakeBoard {
	t.Helper()
	b := newPipeBoard()
	b.onByte = func(byte) {
		if reply != "" {
			io.WriteString(b.pw, reply)
		}
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func newPipeBoard() *fakeBoard {
	pr, pw := io.Pipe()
	return &fakeBoard{pr: pr, pw: pw}
}

func (f *fakeBoard) Read(p []byte) (int, error) {
	return f.pr.Read(p)
}

func (f *fakeBoard) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	f.written = append(f.written, p...)
	for _, b := range p {
		f.onByte(b)
	}
	return len(p), nil
}

func (f *fakeBoard) Close() error {
	// Unblock a reply still waiting on the pipe before taking the lock
	f.pw.Close()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// hangUp ends the board side of the link; the host reads io.EOF
func (f *fakeBoard) hangUp() {
	f.pw.Close()
}

func (f *fakeBoard) sent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}

// deviceConn is a board-side Connection: the test writes command bytes in
// and collects the board's responses.
type deviceConn struct {
	in  *io.PipeReader
	inW *io.PipeWriter

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func newDeviceConn() *deviceConn {
	pr, pw := io.Pipe()
	return &deviceConn{in: pr, inW: pw}
}

// feed writes command bytes and then ends the link if hangUp is set
func (d *deviceConn) feed(s string, hangUp bool) {
	go func() {
		io.WriteString(d.inW, s)
		if hangUp {
			d.inW.Close()
		}
	}()
}

func (d *deviceConn) Read(p []byte) (int, error) {
	return d.in.Read(p)
}

func (d *deviceConn) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, io.ErrClosedPipe
	}
	return d.out.Write(p)
}

func (d *deviceConn) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.inW.Close()
	return nil
}

func (d *deviceConn) output() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.String()
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func outputHas(d *deviceConn, want string) func() bool {
	return func() bool { return strings.Contains(d.output(), want) }
}
