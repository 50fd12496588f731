package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/strayaid/rescuedispatch/core/metrics"
	"github.com/strayaid/rescuedispatch/infra/logger"
)

// InfluxSink writes dispatch telemetry to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatch writes the dispatch run as a line protocol event.
func (s *InfluxSink) RecordDispatch(r coremetrics.DispatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_run").
		AddTag("report_id", r.ReportID).
		AddTag("urgency", r.Urgency).
		AddTag("component", "dispatch_manager").
		AddField("candidates", r.Candidates).
		SetTime(r.When)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAccept writes an accept attempt.
func (s *InfluxSink) RecordAccept(r coremetrics.AcceptRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("accept_attempt").
		AddTag("assignment_id", r.AssignmentID).
		AddTag("report_id", r.ReportID).
		AddTag("conflict", strconv.FormatBool(r.Conflict)).
		AddTag("component", "dispatch_manager").
		AddField("response_minutes", round3(r.ResponseMinutes)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCompletion writes a completed rescue.
func (s *InfluxSink) RecordCompletion(r coremetrics.CompletionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("rescue_completed").
		AddTag("assignment_id", r.AssignmentID).
		AddTag("outcome", r.Outcome).
		AddTag("component", "dispatch_manager").
		AddField("response_minutes", round3(r.ResponseMinutes)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
