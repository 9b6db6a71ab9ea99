// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownResponse is returned for a complete line that is neither an
	// ACK nor an ERR.
	ErrUnknownResponse = errors.New("unknown response")

	// ErrLineTooLong is returned when a line exceeds MaxLineLength.
	ErrLineTooLong = errors.New("response line too long")
)

// ResponseKind distinguishes acknowledgements from errors.
type ResponseKind uint8

const (
	ResponseAck ResponseKind = iota
	ResponseErr
)

// Response is a decoded board response line.
type Response struct {
	Kind      ResponseKind
	Command   Command // acknowledged command, zero for ERR
	Raw       string  // line text without terminator
	Timestamp time.Time
}

// IsAck reports whether the response acknowledges a command.
func (r *Response) IsAck() bool {
	return r.Kind == ResponseAck
}

// Matches reports whether r is the expected answer to c.
func (r *Response) Matches(c Command) bool {
	return r.Kind == ResponseAck && r.Command == c
}

// Answers reports whether r is a correct reply to the byte c: the matching
// ACK for a command, any ERR line for anything else.
func (r *Response) Answers(c Command) bool {
	if !IsValidCommand(byte(c)) {
		return r.Kind == ResponseErr
	}
	return r.Matches(c)
}

// ExpectedResponse returns the line the board sends for a state change to c,
// or ErrResponse for bytes outside the command set.
func ExpectedResponse(c Command) string {
	s, ok := StateFor(c)
	if !ok {
		return ErrResponse
	}
	return s.Ack()
}

// ParseResponse parses one response line. Trailing CR/LF is ignored.
func ParseResponse(line string) (*Response, error) {
	line = strings.TrimRight(line, "\r\n")

	switch {
	case line == ErrPrefix || strings.HasPrefix(line, ErrPrefix+":"):
		return &Response{Kind: ResponseErr, Raw: line, Timestamp: time.Now()}, nil

	case strings.HasPrefix(line, AckPrefix) && len(line) == len(AckPrefix)+1:
		c := Command(line[len(AckPrefix)])
		if !IsValidCommand(byte(c)) {
			break
		}
		return &Response{Kind: ResponseAck, Command: c, Raw: line, Timestamp: time.Now()}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownResponse, line)
}

// Decoder states
const (
	lineIdle = iota
	lineText
	lineOverflow
)

// ResponseDecoder splits the board's byte stream into response lines.
// Lines end at LF; CR is dropped. Empty lines are ignored.
type ResponseDecoder struct {
	state  int
	buffer []byte
}

// NewResponseDecoder creates a new response decoder
func NewResponseDecoder() *ResponseDecoder {
	return &ResponseDecoder{
		state:  lineIdle,
		buffer: make([]byte, 0, MaxLineLength),
	}
}

// Reset discards any partial line
func (d *ResponseDecoder) Reset() {
	d.state = lineIdle
	d.buffer = d.buffer[:0]
}

// Pending returns the bytes of the current partial line.
func (d *ResponseDecoder) Pending() []byte {
	return d.buffer
}

// DecodeByte processes a single byte.
// Returns a response when a line completes, nil while a line is in progress,
// or an error for an overlong or unrecognised line.
func (d *ResponseDecoder) DecodeByte(b byte) (*Response, error) {
	switch b {
	case '\r':
		return nil, nil

	case '\n':
		state := d.state
		line := string(d.buffer)
		d.Reset()

		switch state {
		case lineIdle:
			return nil, nil
		case lineOverflow:
			return nil, fmt.Errorf("%w (max %d)", ErrLineTooLong, MaxLineLength)
		}
		return ParseResponse(line)
	}

	switch d.state {
	case lineIdle, lineText:
		if len(d.buffer) >= MaxLineLength {
			d.state = lineOverflow
			d.buffer = d.buffer[:0]
			return nil, nil
		}
		d.buffer = append(d.buffer, b)
		d.state = lineText

	case lineOverflow:
		// Drop until end of line
	}
	return nil, nil
}
