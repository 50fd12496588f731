package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/strayaid/rescuedispatch/core/metrics"
)

// PromSink records dispatch telemetry in Prometheus metrics.
type PromSink struct {
	dispatches  *prometheus.CounterVec
	candidates  prometheus.Gauge
	accepts     *prometheus.CounterVec
	response    prometheus.Histogram
	completions *prometheus.CounterVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_dispatches_total",
		Help: "Total number of dispatch runs",
	}, []string{"urgency"})
	candidates := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rescue_dispatch_candidates",
		Help: "Number of assignments created by the last dispatch run",
	})
	accepts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_accepts_total",
		Help: "Total number of accept attempts",
	}, []string{"conflict"})
	response := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rescue_response_minutes",
		Help:    "Minutes between assignment and acceptance",
		Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
	})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rescue_completions_total",
		Help: "Total number of completed assignments",
	}, []string{"outcome"})

	if err := reg.Register(dispatches); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			dispatches = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(candidates); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			candidates = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(accepts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			accepts = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(response); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			response = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(completions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			completions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		dispatches:  dispatches,
		candidates:  candidates,
		accepts:     accepts,
		response:    response,
		completions: completions,
	}, nil
}

// RecordDispatch increments the dispatch counter and records the fan-out size.
func (s *PromSink) RecordDispatch(r coremetrics.DispatchRecord) error {
	s.dispatches.WithLabelValues(r.Urgency).Inc()
	s.candidates.Set(float64(r.Candidates))
	return nil
}

// RecordAccept counts the attempt and observes response time on success.
func (s *PromSink) RecordAccept(r coremetrics.AcceptRecord) error {
	s.accepts.WithLabelValues(strconv.FormatBool(r.Conflict)).Inc()
	if !r.Conflict {
		s.response.Observe(r.ResponseMinutes)
	}
	return nil
}

// RecordCompletion increments the completion counter for the outcome.
func (s *PromSink) RecordCompletion(r coremetrics.CompletionRecord) error {
	s.completions.WithLabelValues(r.Outcome).Inc()
	return nil
}
