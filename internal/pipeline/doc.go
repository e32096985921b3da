// Package pipeline orchestrates one match batch end to end.
//
// The processor sits between the transports (HTTP, MQTT, CLI) and the
// engine. Every inbound payload follows the same path:
//
//	raw JSON ── envelope.Decode ──> match.Batch
//	              │ learned aliases merged in
//	              ▼
//	         engine.Match ──> match.Result
//	              │ empty-target actions escalated to the advisor
//	              ▼
//	    audit / telemetry / broadcast (all best effort)
//
// Only decode failures surface as errors to the caller; audit, telemetry,
// and broadcast failures are logged and never block the response.
//
// # Learned aliases
//
// When the advisor reports vocabulary it observed in a failed query (for
// example "salon" meaning living_room), the pairs are kept in an
// in-memory overlay and merged into every subsequent batch. The overlay
// is deliberately not persisted: callers own their alias tables, and a
// restart starts clean.
package pipeline
