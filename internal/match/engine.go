package match

import "strings"

// Logger is the minimal logging interface the engine requires. The noop
// default keeps the engine silent unless a logger is injected.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Engine resolves device-request batches against entity pools. It owns
// the two bounded caches (normalization, similarity); everything else is
// batch-scoped and threaded through calls, so one Engine is safe for
// concurrent Match calls and engines are cheap to construct per test.
type Engine struct {
	opts   Options
	norm   *Normalizer
	sim    *Similarity
	logger Logger
}

// New creates an Engine. Zero-valued option fields fall back to defaults.
func New(opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Weights == (Weights{}) {
		opts.Weights = defaults.Weights
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = defaults.Thresholds
	}
	if opts.TopK == 0 {
		opts.TopK = defaults.TopK
	}
	if opts.DisambiguationGap == 0 {
		opts.DisambiguationGap = defaults.DisambiguationGap
	}
	if opts.NormalizeCacheSize == 0 {
		opts.NormalizeCacheSize = defaults.NormalizeCacheSize
	}
	if opts.SimilarityCacheSize == 0 {
		opts.SimilarityCacheSize = defaults.SimilarityCacheSize
	}

	norm := newNormalizer(opts.NormalizeCacheSize)
	return &Engine{
		opts:   opts,
		norm:   norm,
		sim:    newSimilarity(norm, opts.SimilarityCacheSize),
		logger: noopLogger{},
	}
}

// SetLogger injects a logger. Must be called before Match if used.
func (e *Engine) SetLogger(l Logger) {
	if l != nil {
		e.logger = l
	}
}

// Match processes one batch to completion: builds the batch-scoped alias
// and type indexes, then filters, scores, ranks, and assembles an
// ActionResult per request in order. Total for well-typed input; an empty
// batch yields an empty result, never an error.
func (e *Engine) Match(batch Batch) Result {
	opts := e.applyOverrides(batch.Overrides)

	aliasIdx := newAliasIndex(e.norm, batch.Aliases)
	typeIdx := newTypeIndex(e.norm, batch.Entities)
	sc := newScorer(opts, e.sim, aliasIdx)

	intent := batch.Intent
	if intent == "" {
		intent = "Best Match"
	}

	result := Result{
		Intent:         intent,
		UserInput:      batch.UserInput,
		Actions:        make([]ActionResult, 0, len(batch.Requests)),
		MatchedDevices: []MatchedDevice{},
	}

	for _, req := range batch.Requests {
		pool := typeIdx.Candidates(req)

		var accepted []scoredCandidate
		for _, entity := range pool {
			score, evidence, warnings := sc.score(req, entity)
			if score >= 0 {
				accepted = append(accepted, scoredCandidate{
					entity:   entity,
					score:    score,
					evidence: evidence,
					warnings: warnings,
				})
			}
		}

		ranked := rank(accepted, opts.TopK)

		action := ActionResult{
			Request:                echoRequest(req),
			Targets:                make([]Target, 0, len(ranked)),
			DisambiguationRequired: needsDisambiguation(ranked, opts.DisambiguationGap),
			Warnings:               []string{},
			SuggestionsIfEmpty:     []Suggestion{},
		}

		for _, cand := range ranked {
			action.Targets = append(action.Targets, Target{
				EntityID:   cand.entity.EntityID,
				DeviceType: strings.ToLower(cand.entity.DeviceType),
				DeviceName: cand.entity.DisplayName(),
				Floor:      cand.entity.Floor(),
				Room:       cand.entity.Room(),
				Score:      round3(cand.score),
				Matched:    cand.evidence,
			})
			action.Warnings = append(action.Warnings, cand.warnings...)

			result.MatchedDevices = append(result.MatchedDevices, MatchedDevice{
				EntityID:    cand.entity.EntityID,
				Service:     optionalString(req.Service),
				ServiceData: orEmptyMap(req.ServiceData),
				Automation:  req.Automation,
			})
		}

		if len(ranked) == 0 {
			if suggestions := sc.suggestions(req, pool); suggestions != nil {
				action.SuggestionsIfEmpty = suggestions
			}
			e.logger.Debug("no targets for request",
				"room", req.Room(), "type", req.Type(), "suggestions", len(action.SuggestionsIfEmpty))
		}

		result.Actions = append(result.Actions, action)
	}

	return result
}

// applyOverrides layers per-batch configuration overrides onto the engine
// options. The engine's own options are never mutated.
func (e *Engine) applyOverrides(ov *Overrides) Options {
	opts := e.opts
	if ov == nil {
		return opts
	}
	if ov.Weights != nil {
		opts.Weights = *ov.Weights
	}
	if ov.Thresholds != nil {
		opts.Thresholds = *ov.Thresholds
	}
	if ov.TopK != nil && *ov.TopK > 0 {
		opts.TopK = *ov.TopK
	}
	if ov.DisambiguationGap != nil && *ov.DisambiguationGap > 0 {
		opts.DisambiguationGap = *ov.DisambiguationGap
	}
	return opts
}

func echoRequest(req DeviceRequest) RequestEcho {
	echo := RequestEcho{
		Floor:       optionalString(req.Floor()),
		Room:        optionalString(req.Room()),
		DeviceName:  optionalString(req.Name()),
		DeviceType:  optionalString(firstNonEmpty(req.Type(), req.ServiceDomain())),
		Service:     optionalString(req.Service),
		ServiceData: orEmptyMap(req.ServiceData),
		Automation:  req.Automation,
	}
	return echo
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
