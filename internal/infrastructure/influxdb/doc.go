// Package influxdb records match telemetry in InfluxDB v2.
//
// Every processed batch produces one measurement carrying the batch
// duration, request/target/suggestion counts, and the top score. Writes
// are non-blocking and batched by the client library, so the match path
// never waits on the telemetry sink.
//
// The integration is optional; when disabled in config, Connect returns
// ErrDisabled and the pipeline runs without telemetry.
package influxdb
