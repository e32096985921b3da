package match

import (
	"math"
	"sort"
)

const suggestionLimit = 3

// scoredCandidate pairs an entity with its accepted composite score and
// evidence. Rejected candidates never become scoredCandidates.
type scoredCandidate struct {
	entity   Entity
	score    float64
	evidence Evidence
	warnings []string
}

// rank sorts accepted candidates by score descending and truncates to
// topK. The sort is stable so ties preserve original pool order, keeping
// results reproducible across runs.
func rank(candidates []scoredCandidate, topK int) []scoredCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// needsDisambiguation reports whether the top two scores are too close to
// auto-select the winner.
func needsDisambiguation(ranked []scoredCandidate, gap float64) bool {
	return len(ranked) >= 2 && ranked[0].score-ranked[1].score < gap
}

// suggestions generates relaxed hints when the ranked list came back
// empty. The pool is first re-scoped to the requested floor and room:
// a request that names a floor never produces cross-floor guesses, so if
// nothing in the pool carries matching floor information the result is
// empty rather than wrong.
func (sc *scorer) suggestions(req DeviceRequest, pool []Entity) []Suggestion {
	norm := sc.sim.norm
	floorQ := norm.Normalize(req.Floor())
	roomQ := norm.Normalize(req.Room())

	var scoped []Entity
	for _, e := range pool {
		eFloor := norm.Normalize(e.Floor())
		eRoom := norm.Normalize(e.Room())

		if floorQ != "" {
			if eFloor == "" || !containsEither(floorQ, eFloor) {
				continue
			}
		}

		if roomQ != "" {
			if eRoom == "" {
				// No room info: accept only when floor consistency holds.
				if floorQ != "" && !containsEither(floorQ, eFloor) {
					continue
				}
			} else if !containsEither(roomQ, eRoom) {
				continue
			}
		}

		scoped = append(scoped, e)
	}

	if floorQ != "" && len(scoped) == 0 {
		return nil
	}

	type item struct {
		entity Entity
		score  float64
	}
	items := make([]item, 0, len(scoped))
	for _, e := range scoped {
		items = append(items, item{entity: e, score: sc.looseScore(req, e)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if len(items) > suggestionLimit {
		items = items[:suggestionLimit]
	}

	out := make([]Suggestion, 0, len(items))
	for _, it := range items {
		out = append(out, Suggestion{
			EntityID:    it.entity.EntityID,
			DeviceName:  it.entity.DisplayName(),
			Room:        it.entity.Room(),
			Floor:       it.entity.Floor(),
			ReasonScore: round3(it.score),
		})
	}
	return out
}

// round3 rounds a score to three decimals for output.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
