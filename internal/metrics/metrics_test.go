// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Thermoquad/signalbox/internal/events"
	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTx struct{}

func (nopTx) Send(string) {}

type nopLEDs struct{}

func (nopLEDs) SetLED(protocol.LEDID, bool) {}

func TestMetrics_Observe(t *testing.T) {
	m := New()
	h := protocol.NewHandler(nopLEDs{}, nopTx{}, protocol.WithObserver(m))

	h.HandleBytes([]byte("AABZN"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.bytes.WithLabelValues("ACCEPTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bytes.WithLabelValues("REPEATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bytes.WithLabelValues("REJECTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("ACK_A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("ERR")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("NO_OBJECT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("OBJECT_A")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("UNINITIALIZED")))
}

func TestMetrics_Subscribe(t *testing.T) {
	m := New()
	bus := events.New()
	defer m.Subscribe(bus)()

	bus.PublishLink(true, "test")
	bus.PublishTransmitFailure(protocol.AckB, errors.New("timeout"))
	bus.Observe(protocol.Transition{Input: 'B', To: protocol.StateObjectB, Outcome: protocol.OutcomeAccepted, Response: protocol.AckB})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.linkUp) == 1 &&
			testutil.ToFloat64(m.transmitFailures) == 1 &&
			testutil.ToFloat64(m.state.WithLabelValues("OBJECT_B")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Observe(protocol.Transition{Input: 'A', To: protocol.StateObjectA, Outcome: protocol.OutcomeAccepted, Response: protocol.AckA})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `signalbox_bytes_handled_total{outcome="ACCEPTED"} 1`)
	assert.Contains(t, string(body), `signalbox_state{state="OBJECT_A"} 1`)
}

func TestResponseLabel(t *testing.T) {
	assert.Equal(t, "ACK_N", responseLabel("ACK_N\r\n"))
	assert.Equal(t, "ERR", responseLabel("ERR\n"))
	assert.Equal(t, "", responseLabel("\r\n"))
}
