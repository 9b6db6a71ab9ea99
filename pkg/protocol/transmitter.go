// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"io"
	"sync"
)

// WriterTransmitter sends responses to an io.Writer, typically the serial
// link. Write failures are reported to OnError and otherwise dropped.
type WriterTransmitter struct {
	mu      sync.Mutex
	w       io.Writer
	onError func(text string, err error)
}

// NewWriterTransmitter creates a transmitter writing to w.
// onError may be nil.
func NewWriterTransmitter(w io.Writer, onError func(text string, err error)) *WriterTransmitter {
	return &WriterTransmitter{w: w, onError: onError}
}

// Send writes text in full. Short writes are retried until the writer
// stops making progress.
func (t *WriterTransmitter) Send(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := []byte(text)
	for len(buf) > 0 {
		n, err := t.w.Write(buf)
		if err != nil {
			t.fail(text, err)
			return
		}
		if n == 0 {
			t.fail(text, io.ErrShortWrite)
			return
		}
		buf = buf[n:]
	}
}

// SetWriter swaps the underlying writer, used after a reconnect.
func (t *WriterTransmitter) SetWriter(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w = w
}

func (t *WriterTransmitter) fail(text string, err error) {
	if t.onError != nil {
		t.onError(text, fmt.Errorf("transmit %q: %w", text, err))
	}
}
