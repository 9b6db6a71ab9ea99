// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import "time"

// LEDs drives the two indicator outputs.
type LEDs interface {
	SetLED(id LEDID, on bool)
}

// Transmitter sends a response line to the host. Delivery is best-effort:
// implementations swallow or report their own failures.
type Transmitter interface {
	Send(text string)
}

// Outcome classifies how a Handler treated one input byte.
type Outcome uint8

const (
	OutcomeAccepted Outcome = iota // state changed, LEDs updated, ACK sent
	OutcomeRepeated                // same as held state, nothing done
	OutcomeRejected                // not a command, ERR sent
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeRepeated:
		return "REPEATED"
	case OutcomeRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Transition describes the handling of one input byte.
type Transition struct {
	Input    byte
	From     State
	To       State
	Outcome  Outcome
	Response string // empty when nothing was sent
	At       time.Time
}

// Observer is notified after every handled byte.
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(t Transition)

// Observe calls f(t).
func (f ObserverFunc) Observe(t Transition) { f(t) }

// Option configures a Handler.
type Option func(*Handler)

// WithObserver registers an observer. Observers run synchronously in
// registration order, after LEDs and transmitter.
func WithObserver(o Observer) Option {
	return func(h *Handler) {
		h.observers = append(h.observers, o)
	}
}

// WithClock overrides the timestamp source for transitions.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// Handler is the board-side command state machine.
//
// A Handler is not safe for concurrent use. The device loop feeds it one
// byte at a time from a single goroutine.
type Handler struct {
	leds      LEDs
	tx        Transmitter
	state     State
	observers []Observer
	now       func() time.Time
}

// NewHandler creates a handler in the Uninitialized state.
func NewHandler(leds LEDs, tx Transmitter, opts ...Option) *Handler {
	h := &Handler{
		leds:  leds,
		tx:    tx,
		state: StateUninitialized,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the held state.
func (h *Handler) State() State {
	return h.state
}

// Reset returns the handler to Uninitialized without touching LEDs.
func (h *Handler) Reset() {
	h.state = StateUninitialized
}

// HandleByte processes one input byte.
//
// Bytes outside the command set are answered with ERR and leave the held
// state alone. A command equal to the held state is ignored. Any other
// command updates the state, drives the LEDs and sends its ACK.
func (h *Handler) HandleByte(b byte) Outcome {
	t := Transition{
		Input: b,
		From:  h.state,
		To:    h.state,
	}

	next, ok := StateFor(Command(b))
	switch {
	case !ok:
		t.Outcome = OutcomeRejected
		t.Response = ErrResponse
		h.tx.Send(ErrResponse)

	case next == h.state:
		t.Outcome = OutcomeRepeated

	default:
		h.state = next
		led1, led2 := next.LEDLevels()
		h.leds.SetLED(LED1, led1)
		h.leds.SetLED(LED2, led2)

		t.To = next
		t.Outcome = OutcomeAccepted
		t.Response = next.Ack()
		h.tx.Send(t.Response)
	}

	if len(h.observers) > 0 {
		t.At = h.now()
		for _, o := range h.observers {
			o.Observe(t)
		}
	}
	return t.Outcome
}

// HandleBytes processes a read buffer in order.
func (h *Handler) HandleBytes(p []byte) {
	for _, b := range p {
		h.HandleByte(b)
	}
}
