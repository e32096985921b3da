// Package advisor escalates empty match results to an external language
// model for free-text suggestions.
//
// The advisor is strictly best-effort. It is consulted only when an action
// produced zero targets and a free-text user query is available, and it
// can never change the match outcome: it attaches a prose reason and
// suggestion strings to the result, and may propose new alias mappings
// that the pipeline merges into its in-memory overlay for later batches.
//
// Failure modes degrade, never propagate:
//   - No API key configured: the advisor reports itself disabled.
//   - Request timeout or transport error: empty advice, error returned
//     for logging only.
//   - Unparsable model output: the raw content becomes a single
//     suggestion string.
//
// Calls are rate limited (3 req/s, burst 5) and carry their own timeout
// so a slow upstream can never stall batch processing.
package advisor
