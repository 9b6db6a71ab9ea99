// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomInput picks a command byte half of the time so repeats are common
func randomInput(rng *rand.Rand) byte {
	if rng.Intn(2) == 0 {
		cmds := Commands()
		return byte(cmds[rng.Intn(len(cmds))])
	}
	return byte(rng.Intn(256))
}

// ============================================================
// Handler Fuzz Tests
// ============================================================

// TestFuzzHandler_Invariants checks the handler against a reference model
// on random byte streams.
func TestFuzzHandler_Invariants(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		h, leds, tx := newTestHandler()
		held := StateUninitialized

		for i := 0; i < 32; i++ {
			b := randomInput(rng)
			sentBefore := len(tx.sent)
			writesBefore := len(leds.writes)

			outcome := h.HandleByte(b)

			next, valid := StateFor(Command(b))
			switch {
			case !valid:
				if outcome != OutcomeRejected || tx.sent[len(tx.sent)-1] != ErrResponse {
					t.Fatalf("round %d: %s should be rejected with ERR", round, FormatByte(b))
				}
				if len(leds.writes) != writesBefore {
					t.Fatalf("round %d: rejected byte wrote LEDs", round)
				}
			case next == held:
				if outcome != OutcomeRepeated || len(tx.sent) != sentBefore || len(leds.writes) != writesBefore {
					t.Fatalf("round %d: repeat of %s was not a no-op", round, next)
				}
			default:
				held = next
				if outcome != OutcomeAccepted || tx.sent[len(tx.sent)-1] != next.Ack() {
					t.Fatalf("round %d: %s should be accepted with %q", round, FormatByte(b), next.Ack())
				}
			}

			if h.State() != held {
				t.Fatalf("round %d: state %s, model %s", round, h.State(), held)
			}
			if held != StateUninitialized {
				want1, want2 := held.LEDLevels()
				if leds.level[LED1] != want1 || leds.level[LED2] != want2 {
					t.Fatalf("round %d: LEDs (%v, %v) do not reflect %s",
						round, leds.level[LED1], leds.level[LED2], held)
				}
			}
		}
	}
}

// TestFuzzDecoder_NoPanic feeds random bytes to the response decoder and
// checks that a valid line still decodes afterwards.
func TestFuzzDecoder_NoPanic(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		d := NewResponseDecoder()
		n := rng.Intn(100)
		for i := 0; i < n; i++ {
			d.DecodeByte(byte(rng.Intn(256)))
		}

		// Terminate whatever garbage is pending, then send a real line
		d.DecodeByte('\n')
		var got *Response
		for _, b := range []byte(AckN) {
			r, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: decode error after resync: %v", round, err)
			}
			if r != nil {
				got = r
			}
		}
		if got == nil || !got.Matches(CmdNoObject) {
			t.Fatalf("round %d: ACK_N not decoded after resync", round)
		}
	}
}
