// Package envelope normalises external request payloads into the canonical
// match.Batch structure.
//
// Callers deliver batches in one of three accepted JSON shapes, kept for
// backward compatibility with older voice-pipeline stages:
//
//   - Wrapped: {"intention_data": {"data": {...}}, "entities_data": {"data": {...}}}
//   - Legacy: {"intent_devices": [...], "entities": [...]}
//   - Direct: {"intent": {"devices": [...]}, "entities": [...]}
//
// Shape detection happens here and only here. The matching engine receives
// one canonical Batch and never sees the envelope variants. Malformed
// payloads are rejected with a single descriptive error and no partial
// result.
package envelope
