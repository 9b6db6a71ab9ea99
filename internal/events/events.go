// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package events fans protocol activity out to metrics, MQTT and the TUI.
package events

import (
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/kelindar/event"
)

// Event type identifiers for kelindar/event.
const (
	TypeTransition uint32 = iota + 1
	TypeTransmitFailure
	TypeLink
)

// TransitionEvent is published for every byte the board handler consumes.
type TransitionEvent struct {
	protocol.Transition
}

// Type returns the event type identifier for TransitionEvent.
func (e TransitionEvent) Type() uint32 { return TypeTransition }

// TransmitFailureEvent is published when a response could not be written.
type TransmitFailureEvent struct {
	Response string
	Err      error
	At       time.Time
}

// Type returns the event type identifier for TransmitFailureEvent.
func (e TransmitFailureEvent) Type() uint32 { return TypeTransmitFailure }

// LinkEvent reports link up/down changes.
type LinkEvent struct {
	Connected bool
	Info      string
	At        time.Time
}

// Type returns the event type identifier for LinkEvent.
func (e LinkEvent) Type() uint32 { return TypeLink }

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous; each
// subscriber receives its events in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Observe implements protocol.Observer by publishing a TransitionEvent.
func (b *Bus) Observe(t protocol.Transition) {
	event.Publish(b.dispatcher, TransitionEvent{Transition: t})
}

// PublishTransmitFailure publishes a TransmitFailureEvent.
func (b *Bus) PublishTransmitFailure(response string, err error) {
	event.Publish(b.dispatcher, TransmitFailureEvent{Response: response, Err: err, At: time.Now()})
}

// PublishLink publishes a LinkEvent.
func (b *Bus) PublishLink(connected bool, info string) {
	event.Publish(b.dispatcher, LinkEvent{Connected: connected, Info: info, At: time.Now()})
}

// OnTransition subscribes to transitions. Returns an unsubscribe function.
func (b *Bus) OnTransition(handler func(TransitionEvent)) func() {
	return event.Subscribe(b.dispatcher, handler)
}

// OnTransmitFailure subscribes to transmit failures.
func (b *Bus) OnTransmitFailure(handler func(TransmitFailureEvent)) func() {
	return event.Subscribe(b.dispatcher, handler)
}

// OnLink subscribes to link changes.
func (b *Bus) OnLink(handler func(LinkEvent)) func() {
	return event.Subscribe(b.dispatcher, handler)
}
