// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports board activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Thermoquad/signalbox/internal/events"
	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "signalbox"

// Metrics holds the board collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	bytes            *prometheus.CounterVec
	responses        *prometheus.CounterVec
	transmitFailures prometheus.Counter
	state            *prometheus.GaugeVec
	linkUp           prometheus.Gauge
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_handled_total",
			Help:      "Input bytes handled, by outcome.",
		}, []string{"outcome"}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses sent, by response line.",
		}, []string{"response"}),
		transmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmit_failures_total",
			Help:      "Responses that could not be written to the link.",
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the held detection state, 0 otherwise.",
		}, []string{"state"}),
		linkUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_up",
			Help:      "1 while the serial or WebSocket link is open.",
		}),
	}

	m.setState(protocol.StateUninitialized)
	for _, o := range []protocol.Outcome{protocol.OutcomeAccepted, protocol.OutcomeRepeated, protocol.OutcomeRejected} {
		m.bytes.WithLabelValues(o.String())
	}
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe implements protocol.Observer.
func (m *Metrics) Observe(t protocol.Transition) {
	m.bytes.WithLabelValues(t.Outcome.String()).Inc()
	if t.Response != "" {
		m.responses.WithLabelValues(responseLabel(t.Response)).Inc()
	}
	if t.Outcome == protocol.OutcomeAccepted {
		m.setState(t.To)
	}
}

// Subscribe attaches the collectors to an event bus. Returns an
// unsubscribe function.
func (m *Metrics) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.OnTransition(func(e events.TransitionEvent) { m.Observe(e.Transition) }),
		bus.OnTransmitFailure(func(events.TransmitFailureEvent) { m.transmitFailures.Inc() }),
		bus.OnLink(func(e events.LinkEvent) {
			if e.Connected {
				m.linkUp.Set(1)
			} else {
				m.linkUp.Set(0)
			}
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (m *Metrics) setState(current protocol.State) {
	for _, s := range []protocol.State{
		protocol.StateUninitialized,
		protocol.StateObjectA,
		protocol.StateObjectB,
		protocol.StateNoObject,
	} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

// responseLabel strips the line terminator so labels stay readable.
func responseLabel(response string) string {
	for len(response) > 0 {
		last := response[len(response)-1]
		if last != '\r' && last != '\n' {
			break
		}
		response = response[:len(response)-1]
	}
	return response
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve runs a /metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
