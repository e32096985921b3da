package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hearthwise/voicematch/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteBatchMetricsDisconnectedIsNoop(t *testing.T) {
	c := &Client{}

	// Must not panic with a nil write API when disconnected.
	c.WriteBatchMetrics(BatchMetrics{
		Intent:       "Best Match",
		Source:       "http",
		RequestCount: 1,
		Duration:     5 * time.Millisecond,
	})
	c.WritePoint("match_batch", nil, map[string]interface{}{"x": 1})
}

func TestCloseAndFlushOnZeroClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	c.Flush()
}
