// Package match implements the entity matching and ranking engine for
// Voicematch.
//
// This package resolves natural-language device requests (floor, room,
// device name, device type, desired action) against a pool of smart-home
// entity records, producing ranked targets, ambiguity flags, and fallback
// suggestions when nothing passes the gates.
//
// # Architecture
//
// The engine is a synchronous, allocation-bounded pipeline. Per-batch
// indexes are values threaded through each call; the two bounded caches
// are owned by the Engine instance and shared across batches.
//
//	Batch ──▶ AliasIndex ──▶ TypeIndex ──▶ per-request:
//	              │               │
//	              │               ├─ candidate filter (type → room → floor)
//	              │               ├─ multi-field scorer (gates + weights + bonuses)
//	              │               ├─ ranking + disambiguation
//	              │               └─ suggestions (only when ranked list empty)
//	              │
//	              └─ canonicalisation for type/room lookups
//
// # Scoring Model
//
// Four field similarities (floor, room, name, type) are computed through
// the shared similarity engine (exact → containment → character n-gram
// TF-IDF cosine). Each requested field must pass its gating threshold or
// the candidate is rejected with a sentinel score of -1. Accepted
// candidates receive a weighted composite (room dominates) plus additive
// bonuses for near-exact field matches, service-domain consistency, and
// room references embedded in device names.
//
// # Concurrency
//
// Engine.Match is safe for concurrent use: batch state never escapes the
// call, and the internal caches serialise access with a mutex. Construct
// one Engine per configuration; construct fresh engines freely in tests.
package match
