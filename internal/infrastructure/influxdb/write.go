package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// BatchMetrics summarises one processed match batch for telemetry.
type BatchMetrics struct {
	Intent          string
	Source          string // "http", "mqtt", or "cli"
	RequestCount    int
	TargetCount     int
	SuggestionCount int
	TopScore        float64
	AdvisorUsed     bool
	Duration        time.Duration
}

// WriteBatchMetrics records one match batch. Non-blocking; the point is
// buffered and sent asynchronously.
//
// Measurement: match_batch
// Tags: intent, source (low cardinality only)
// Fields: counts, top score, duration in milliseconds
func (c *Client) WriteBatchMetrics(m BatchMetrics) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"match_batch",
		map[string]string{
			"intent": m.Intent,
			"source": m.Source,
		},
		map[string]interface{}{
			"request_count":    m.RequestCount,
			"target_count":     m.TargetCount,
			"suggestion_count": m.SuggestionCount,
			"top_score":        m.TopScore,
			"advisor_used":     m.AdvisorUsed,
			"duration_ms":      float64(m.Duration.Microseconds()) / 1000.0,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use for measurements that do not fit WriteBatchMetrics.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
