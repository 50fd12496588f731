// Package metrics defines the sink contract for dispatch telemetry. Sinks
// like the Prometheus and InfluxDB implementations record dispatches,
// accept races and completions and can be combined with NewMultiSink.
package metrics

import "time"

// DispatchRecord describes one dispatch run.
type DispatchRecord struct {
	ReportID   string
	Urgency    string
	Candidates int
	When       time.Time
}

// AcceptRecord describes one accept attempt.
type AcceptRecord struct {
	AssignmentID    string
	ReportID        string
	Conflict        bool
	ResponseMinutes float64
}

// CompletionRecord describes one completed rescue.
type CompletionRecord struct {
	AssignmentID    string
	Outcome         string
	ResponseMinutes float64
}

// MetricsSink records dispatch telemetry. Implementations must be safe for
// concurrent use.
type MetricsSink interface {
	RecordDispatch(DispatchRecord) error
	RecordAccept(AcceptRecord) error
	RecordCompletion(CompletionRecord) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchRecord) error     { return nil }
func (NopSink) RecordAccept(AcceptRecord) error         { return nil }
func (NopSink) RecordCompletion(CompletionRecord) error { return nil }

// MultiSink fans records out to several sinks, returning the first error.
type MultiSink struct {
	sinks []MetricsSink
}

// NewMultiSink combines the given sinks into one.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordDispatch(r DispatchRecord) error {
	for _, s := range m.sinks {
		if err := s.RecordDispatch(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordAccept(r AcceptRecord) error {
	for _, s := range m.sinks {
		if err := s.RecordAccept(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordCompletion(r CompletionRecord) error {
	for _, s := range m.sinks {
		if err := s.RecordCompletion(r); err != nil {
			return err
		}
	}
	return nil
}
