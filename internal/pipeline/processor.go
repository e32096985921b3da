package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hearthwise/voicematch/internal/advisor"
	"github.com/hearthwise/voicematch/internal/audit"
	"github.com/hearthwise/voicematch/internal/envelope"
	"github.com/hearthwise/voicematch/internal/infrastructure/influxdb"
	"github.com/hearthwise/voicematch/internal/match"
)

// ErrDecode wraps envelope decode failures so transports can map them to
// a bad-request response without inspecting envelope internals.
var ErrDecode = errors.New("pipeline: decode failed")

// Adviser is the slice of the advisor the processor needs.
// Satisfied by *advisor.Advisor.
type Adviser interface {
	Enabled() bool
	Advise(ctx context.Context, userQuery string, requests []match.DeviceRequest, entities []match.Entity) (advisor.Advice, error)
}

// Telemetry receives per-batch metrics. Satisfied by *influxdb.Client.
type Telemetry interface {
	WriteBatchMetrics(m influxdb.BatchMetrics)
}

// Broadcaster pushes completed results to monitoring clients.
// Satisfied by the API server's websocket hub.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Logger is the minimal logging interface the processor requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Processor runs batches through the engine and fans the outcome out to
// the optional sinks. All sinks may be nil; the processor degrades to a
// plain engine wrapper.
//
// Thread Safety:
//   - Process is safe for concurrent use. The learned-alias overlay is
//     guarded by its own mutex.
type Processor struct {
	engine    *match.Engine
	adviser   Adviser
	auditor   audit.Repository
	telemetry Telemetry
	broadcast Broadcaster
	logger    Logger

	learnedMu sync.RWMutex
	learned   []learnedAlias
}

// learnedAlias is one advisor-reported vocabulary pair.
type learnedAlias struct {
	class     match.AliasClass
	canonical string
	alias     string
}

// Option configures optional processor dependencies.
type Option func(*Processor)

// WithAdviser attaches the LLM advisor for empty-result escalation.
func WithAdviser(a Adviser) Option {
	return func(p *Processor) { p.adviser = a }
}

// WithAuditor attaches the audit repository.
func WithAuditor(r audit.Repository) Option {
	return func(p *Processor) { p.auditor = r }
}

// WithTelemetry attaches the metrics sink.
func WithTelemetry(t Telemetry) Option {
	return func(p *Processor) { p.telemetry = t }
}

// WithBroadcaster attaches the monitoring broadcast sink.
func WithBroadcaster(b Broadcaster) Option {
	return func(p *Processor) { p.broadcast = b }
}

// WithLogger attaches a logger.
func WithLogger(l Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates a Processor around an engine.
func NewProcessor(engine *match.Engine, opts ...Option) *Processor {
	p := &Processor{
		engine: engine,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process decodes one raw payload and runs it to completion.
//
// Parameters:
//   - ctx: Bounds the advisor call; the engine itself is CPU-bound and fast
//   - source: Transport label for telemetry ("http", "mqtt", "cli")
//   - raw: Request payload in any supported envelope shape
//
// Returns:
//   - match.Result: The completed result
//   - error: ErrDecode-wrapped for malformed payloads, nil otherwise
func (p *Processor) Process(ctx context.Context, source string, raw []byte) (match.Result, error) {
	batch, err := envelope.Decode(raw)
	if err != nil {
		return match.Result{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return p.ProcessBatch(ctx, source, batch), nil
}

// ProcessBatch runs an already-decoded batch through the engine, the
// advisor escalation, and the sinks.
func (p *Processor) ProcessBatch(ctx context.Context, source string, batch match.Batch) match.Result {
	start := time.Now()

	batch.Aliases = p.withLearnedAliases(batch.Aliases)
	result := p.engine.Match(batch)

	advisorUsed := p.escalate(ctx, batch, &result)
	duration := time.Since(start)

	p.record(ctx, batch, result, advisorUsed, duration)
	p.emit(source, batch, result, advisorUsed, duration)

	return result
}

// escalate consults the advisor for actions that resolved no targets.
// One advisory call covers the whole batch; its reason and suggestions
// are attached to every empty action. Reports whether the advisor ran.
func (p *Processor) escalate(ctx context.Context, batch match.Batch, result *match.Result) bool {
	if p.adviser == nil || !p.adviser.Enabled() || batch.UserInput == "" {
		return false
	}

	empty := emptyActions(result)
	if len(empty) == 0 {
		return false
	}

	advice, err := p.adviser.Advise(ctx, batch.UserInput, batch.Requests, batch.Entities)
	if err != nil {
		p.logger.Warn("advisor escalation failed", "error", err)
		return false
	}

	for _, i := range empty {
		result.Actions[i].AdvisorReason = advice.Reason
		result.Actions[i].AdvisorSuggestions = advice.Suggestions
	}

	p.learnAliases(advice.NewAliases)
	return true
}

// learnAliases adds advisor-reported vocabulary to the overlay.
func (p *Processor) learnAliases(pairs map[match.AliasClass]map[string]string) {
	if len(pairs) == 0 {
		return
	}

	p.learnedMu.Lock()
	defer p.learnedMu.Unlock()

	for class, m := range pairs {
		for alias, canonical := range m {
			if alias == "" || canonical == "" {
				continue
			}
			p.learned = append(p.learned, learnedAlias{
				class:     class,
				canonical: canonical,
				alias:     alias,
			})
			p.logger.Info("learned alias",
				"class", string(class), "alias", alias, "canonical", canonical)
		}
	}
}

// withLearnedAliases merges the overlay into a batch's alias table.
// The caller's table is cloned, never mutated. Pairs whose canonical the
// batch does not know are skipped.
func (p *Processor) withLearnedAliases(base match.Aliases) match.Aliases {
	p.learnedMu.RLock()
	defer p.learnedMu.RUnlock()

	if len(p.learned) == 0 {
		return base
	}

	merged := base.Clone()
	for _, la := range p.learned {
		merged.Add(la.class, la.canonical, la.alias)
	}
	return merged
}

// LearnedAliasCount reports the size of the overlay. Exposed for the
// health endpoint and tests.
func (p *Processor) LearnedAliasCount() int {
	p.learnedMu.RLock()
	defer p.learnedMu.RUnlock()
	return len(p.learned)
}

// record writes the audit row. Best effort.
func (p *Processor) record(ctx context.Context, batch match.Batch, result match.Result, advisorUsed bool, duration time.Duration) {
	if p.auditor == nil {
		return
	}

	rec := &audit.Record{
		Intent:          result.Intent,
		UserInput:       batch.UserInput,
		RequestCount:    len(batch.Requests),
		TargetCount:     targetCount(result),
		SuggestionCount: suggestionCount(result),
		Disambiguation:  anyDisambiguation(result),
		AdvisorUsed:     advisorUsed,
		DurationMillis:  float64(duration.Microseconds()) / 1000.0,
	}
	if err := p.auditor.Create(ctx, rec); err != nil {
		p.logger.Error("audit write failed", "error", err)
	}
}

// emit sends telemetry and the monitoring broadcast. Best effort.
func (p *Processor) emit(source string, batch match.Batch, result match.Result, advisorUsed bool, duration time.Duration) {
	if p.telemetry != nil {
		p.telemetry.WriteBatchMetrics(influxdb.BatchMetrics{
			Intent:          result.Intent,
			Source:          source,
			RequestCount:    len(batch.Requests),
			TargetCount:     targetCount(result),
			SuggestionCount: suggestionCount(result),
			TopScore:        topScore(result),
			AdvisorUsed:     advisorUsed,
			Duration:        duration,
		})
	}

	if p.broadcast != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			p.logger.Error("result marshal for broadcast failed", "error", err)
			return
		}
		p.broadcast.Broadcast(payload)
	}
}

func emptyActions(result *match.Result) []int {
	var idx []int
	for i, action := range result.Actions {
		if len(action.Targets) == 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

func targetCount(result match.Result) int {
	n := 0
	for _, action := range result.Actions {
		n += len(action.Targets)
	}
	return n
}

func suggestionCount(result match.Result) int {
	n := 0
	for _, action := range result.Actions {
		n += len(action.SuggestionsIfEmpty)
	}
	return n
}

func anyDisambiguation(result match.Result) bool {
	for _, action := range result.Actions {
		if action.DisambiguationRequired {
			return true
		}
	}
	return false
}

func topScore(result match.Result) float64 {
	best := 0.0
	for _, action := range result.Actions {
		for _, target := range action.Targets {
			if target.Score > best {
				best = target.Score
			}
		}
	}
	return best
}
