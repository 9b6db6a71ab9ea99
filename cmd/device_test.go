// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/signalbox/internal/events"
	"github.com/Thermoquad/signalbox/pkg/led"
	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/rs/zerolog"
)

// newTestRunner builds a board runner over in-memory LEDs
func newTestRunner(conn Connection) (*boardRunner, *led.Bank) {
	bank := led.NewBank(led.NewMemoryPins("led1", "led2"), "led1", "led2", false, zerolog.Nop())
	tx := protocol.NewWriterTransmitter(conn, nil)
	return &boardRunner{
		handler:        protocol.NewHandler(bank, tx),
		tx:             tx,
		bank:           bank,
		bus:            events.New(),
		initialBackoff: time.Millisecond,
		maxBackoff:     5 * time.Millisecond,
	}, bank
}

func TestServeLink(t *testing.T) {
	conn := newDeviceConn()
	bank := led.NewBank(led.NewMemoryPins("led1", "led2"), "led1", "led2", false, zerolog.Nop())
	h := protocol.NewHandler(bank, protocol.NewWriterTransmitter(conn, nil))

	conn.feed("AAB?N\x00B", true)

	err := serveLink(context.Background(), conn, h)
	if !isLinkClosed(err) {
		t.Fatalf("serveLink error = %v, want link closed", err)
	}

	want := protocol.AckA + protocol.AckB + protocol.ErrResponse + protocol.AckN + protocol.ErrResponse + protocol.AckB
	if got := conn.output(); got != want {
		t.Errorf("responses = %q, want %q", got, want)
	}
	if h.State() != protocol.StateObjectB {
		t.Errorf("state = %v, want OBJECT_B", h.State())
	}
	if led1, led2 := bank.Levels(); led1 || !led2 {
		t.Errorf("LEDs = %v, %v, want off, on", led1, led2)
	}
}

func TestBoardRunner_ExitsWhenLinkCloses(t *testing.T) {
	conn := newDeviceConn()
	runner, _ := newTestRunner(conn)

	var mu sync.Mutex
	var linkEvents []bool
	defer runner.bus.OnLink(func(e events.LinkEvent) {
		mu.Lock()
		linkEvents = append(linkEvents, e.Connected)
		mu.Unlock()
	})()

	conn.feed("ABN", true)

	if err := runner.run(context.Background(), conn, "test link"); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if got, want := conn.output(), protocol.AckA+protocol.AckB+protocol.AckN; got != want {
		t.Errorf("responses = %q, want %q", got, want)
	}

	waitFor(t, "link up and down events", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(linkEvents) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if !linkEvents[0] || linkEvents[1] {
		t.Errorf("link events = %v, want [true false]", linkEvents)
	}
}

func TestBoardRunner_ReconnectStartsFromReset(t *testing.T) {
	first := newDeviceConn()
	second := newDeviceConn()
	runner, bank := newTestRunner(first)
	runner.reconnect = true

	opens := 0
	runner.open = func() (Connection, string, error) {
		opens++
		if opens == 1 {
			return second, "second link", nil
		}
		return nil, "", errors.New("port busy")
	}

	first.feed("A", true)
	second.feed("A", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.run(ctx, first, "first link") }()

	// The repeated A is only answered if the handler was reset
	waitFor(t, "ACK_A on the second link", outputHas(second, "ACK_A"))
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	if first.output() != protocol.AckA {
		t.Errorf("first link responses = %q, want %q", first.output(), protocol.AckA)
	}
	if led1, _ := bank.Levels(); !led1 {
		t.Error("LED1 off, want on after A on the second link")
	}
	if runner.handler.State() != protocol.StateObjectA {
		t.Errorf("state = %v, want OBJECT_A", runner.handler.State())
	}
}

func TestTransitionLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.InfoLevel)
	observe := transitionLogger(l)

	observe(protocol.Transition{Input: 'A', From: protocol.StateUninitialized, To: protocol.StateObjectA, Outcome: protocol.OutcomeAccepted})
	observe(protocol.Transition{Input: 'A', From: protocol.StateObjectA, To: protocol.StateObjectA, Outcome: protocol.OutcomeRepeated})
	observe(protocol.Transition{Input: 'x', From: protocol.StateObjectA, To: protocol.StateObjectA, Outcome: protocol.OutcomeRejected})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("logged %d lines, want 1 (only the rejected byte is above debug):\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"level":"warn"`) || !strings.Contains(lines[0], `"outcome":"REJECTED"`) {
		t.Errorf("rejected line = %s", lines[0])
	}

	buf.Reset()
	observe = transitionLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	observe(protocol.Transition{Input: 'A', From: protocol.StateUninitialized, To: protocol.StateObjectA, Outcome: protocol.OutcomeAccepted})
	if !strings.Contains(buf.String(), `"to":"OBJECT_A"`) {
		t.Errorf("accepted byte not logged at debug: %s", buf.String())
	}
}

func TestTransitionPrinter(t *testing.T) {
	var out bytes.Buffer
	conn := newDeviceConn()
	bank := led.NewBank(led.NewMemoryPins("led1", "led2"), "led1", "led2", false, zerolog.Nop())
	h := protocol.NewHandler(bank, protocol.NewWriterTransmitter(conn, nil),
		protocol.WithObserver(transitionPrinter(&out)))

	h.HandleBytes([]byte("AA?"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("printed %d lines, want 3:\n%s", len(lines), out.String())
	}
	for i, want := range []string{"UNINITIALIZED -> OBJECT_A", "repeated, holding OBJECT_A", "rejected, holding OBJECT_A"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
}

func TestSelfTest(t *testing.T) {
	pins := led.NewMemoryPins("led1", "led2")
	bank := led.NewBank(pins, "led1", "led2", false, zerolog.Nop())

	if err := selfTest(context.Background(), bank, 2, time.Millisecond); err != nil {
		t.Fatalf("selfTest error: %v", err)
	}

	// Each LED goes on and off twice, LED1 first, and both end off
	var led1Writes, led2Writes int
	lastLED1 := -1
	for i, w := range pins.History() {
		switch w.Name {
		case "led1":
			led1Writes++
			lastLED1 = i
		case "led2":
			led2Writes++
			if lastLED1 < 0 {
				t.Fatal("LED2 blinked before LED1")
			}
		}
	}
	if led1Writes < 4 || led2Writes < 4 {
		t.Errorf("writes led1=%d led2=%d, want at least 4 each", led1Writes, led2Writes)
	}
	if led1, led2 := bank.Levels(); led1 || led2 {
		t.Errorf("LEDs = %v, %v after self test, want both off", led1, led2)
	}
}

func TestSelfTest_Cancelled(t *testing.T) {
	bank := led.NewBank(led.NewMemoryPins("led1", "led2"), "led1", "led2", false, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := selfTest(ctx, bank, 100, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("selfTest error = %v, want context.Canceled", err)
	}
	if led1, led2 := bank.Levels(); led1 || led2 {
		t.Errorf("LEDs = %v, %v after cancel, want both off", led1, led2)
	}
}
