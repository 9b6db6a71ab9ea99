// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"time"
)

// Statistics tracks link counters for both ends of the link
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Board side
	BytesHandled     uint64
	Accepted         uint64
	Repeated         uint64
	Rejected         uint64
	ResponsesSent    uint64
	TransmitFailures uint64

	// Host side
	CommandsSent uint64
	Acks         uint64
	Errs         uint64
	Timeouts     uint64
	Mismatches   uint64
	DecodeErrors uint64

	// Rates (calculated)
	ByteRate  float64 // bytes/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Observe implements Observer so a Statistics can be attached to a Handler.
func (s *Statistics) Observe(t Transition) {
	s.BytesHandled++
	switch t.Outcome {
	case OutcomeAccepted:
		s.Accepted++
	case OutcomeRepeated:
		s.Repeated++
	case OutcomeRejected:
		s.Rejected++
	}
	if t.Response != "" {
		s.ResponsesSent++
	}
	s.LastUpdateTime = time.Now()
}

// RecordTransmitFailure counts a response that could not be written.
func (s *Statistics) RecordTransmitFailure() {
	s.TransmitFailures++
}

// RecordSent counts a command written by the host.
func (s *Statistics) RecordSent() {
	s.CommandsSent++
	s.LastUpdateTime = time.Now()
}

// RecordResponse counts a response received by the host for command c.
func (s *Statistics) RecordResponse(c Command, r *Response, decodeErr error) {
	if decodeErr != nil {
		s.DecodeErrors++
		return
	}
	if r.Kind == ResponseErr {
		s.Errs++
	} else {
		s.Acks++
	}
	if c != 0 && !r.Answers(c) {
		s.Mismatches++
	}
	s.LastUpdateTime = time.Now()
}

// RecordTimeout counts a command that got no response in time.
func (s *Statistics) RecordTimeout() {
	s.Timeouts++
}

func (s *Statistics) errorCount() uint64 {
	return s.Rejected + s.TransmitFailures + s.Errs + s.Timeouts + s.Mismatches + s.DecodeErrors
}

// CalculateRates calculates byte and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ByteRate = float64(s.BytesHandled+s.CommandsSent) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())

	if s.BytesHandled > 0 {
		result += fmt.Sprintf("Bytes Handled:   %8d\n", s.BytesHandled)
		result += fmt.Sprintf("  Accepted:         %5d\n", s.Accepted)
		result += fmt.Sprintf("  Repeated:         %5d\n", s.Repeated)
		result += fmt.Sprintf("  Rejected:         %5d\n", s.Rejected)
		result += fmt.Sprintf("Responses Sent:  %8d\n", s.ResponsesSent)
		if s.TransmitFailures > 0 {
			result += fmt.Sprintf("Transmit Fails:  %8d\n", s.TransmitFailures)
		}
	}

	if s.CommandsSent > 0 {
		ackPercent := float64(s.Acks) * 100.0 / float64(s.CommandsSent)
		result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
		result += fmt.Sprintf("ACKs:            %8d (%.1f%%)\n", s.Acks, ackPercent)
		if s.Errs > 0 {
			result += fmt.Sprintf("ERRs:            %8d\n", s.Errs)
		}
		if s.Timeouts > 0 {
			result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
		}
		if s.Mismatches > 0 {
			result += fmt.Sprintf("Mismatches:      %8d\n", s.Mismatches)
		}
		if s.DecodeErrors > 0 {
			result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
		}
	}

	result += fmt.Sprintf("Byte Rate:       %8.1f bytes/sec\n", s.ByteRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
