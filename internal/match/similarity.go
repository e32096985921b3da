package match

import (
	"math"
	"sort"
	"strings"
)

// Similarity scores a query string against candidate strings for one
// semantic field. Evaluation order, first applicable wins:
//
//  1. Exact match on normalized forms: 1.0.
//  2. Containment either way: 0.95, deliberately below exact confidence.
//  3. Character 2-4-gram TF-IDF cosine over the query plus all candidates,
//     maximum across candidates. Handles near-synonyms ("lamp"/"light"),
//     transliteration variants, and mixed-script room names.
//
// A degenerate corpus (everything empty after normalization) degrades to
// 0.0, never an error. Results are cached in a bounded LRU because the
// filtering pipeline re-evaluates the same query against overlapping
// candidate sets.
type Similarity struct {
	norm  *Normalizer
	cache *lruCache[string, simResult]
}

type simResult struct {
	score float64
	hit   string
}

func newSimilarity(norm *Normalizer, cacheSize int) *Similarity {
	return &Similarity{
		norm:  norm,
		cache: newLRUCache[string, simResult](cacheSize),
	}
}

// Score returns the best similarity of query against candidates, in [0,1].
func (s *Similarity) Score(query string, candidates []string) float64 {
	score, _ := s.Best(query, candidates)
	return score
}

// Best returns the best similarity together with the raw candidate text
// that produced it. Empty query or candidate set yields (0, "").
func (s *Similarity) Best(query string, candidates []string) (float64, string) {
	key := cacheKey(query, candidates)
	if cached, ok := s.cache.Get(key); ok {
		return cached.score, cached.hit
	}

	result := s.compute(query, candidates)
	s.cache.Put(key, result)
	return result.score, result.hit
}

func (s *Similarity) compute(query string, candidates []string) simResult {
	q := s.norm.Normalize(query)
	if q == "" {
		return simResult{}
	}

	type cand struct {
		raw  string
		norm string
	}
	cands := make([]cand, 0, len(candidates))
	for _, raw := range candidates {
		if n := s.norm.Normalize(raw); n != "" {
			cands = append(cands, cand{raw: raw, norm: n})
		}
	}
	if len(cands) == 0 {
		return simResult{}
	}

	// Fast path: exact match.
	for _, c := range cands {
		if q == c.norm {
			return simResult{score: 1.0, hit: c.raw}
		}
	}

	// Fast path: containment either way.
	for _, c := range cands {
		if containsEither(q, c.norm) {
			return simResult{score: 0.95, hit: c.raw}
		}
	}

	// Slow path: TF-IDF cosine over character n-grams.
	corpus := make([]string, 0, len(cands)+1)
	for _, c := range cands {
		corpus = append(corpus, c.norm)
	}
	corpus = append(corpus, q)

	vectors := tfidfVectors(corpus)
	queryVec := vectors[len(vectors)-1]

	best := simResult{}
	for i, c := range cands {
		if sim := cosine(queryVec, vectors[i]); sim > best.score {
			best = simResult{score: sim, hit: c.raw}
		}
	}
	if best.score < 0.9 {
		best.hit = ""
	}
	if best.score > 1 {
		best.score = 1
	}
	return best
}

// cacheKey joins the raw query with the sorted raw candidates. Sorting
// makes the key order-independent, matching how candidate sets overlap
// across filter stages.
func cacheKey(query string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(query)
	for _, c := range sorted {
		b.WriteByte('\x1f')
		b.WriteString(c)
	}
	return b.String()
}

// ngrams emits all character n-grams of length 2 to 4 from a token. A
// token shorter than 2 runes produces no grams.
func ngrams(token string) []string {
	runes := []rune(token)
	var grams []string
	for size := 2; size <= 4; size++ {
		for i := 0; i+size <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+size]))
		}
	}
	return grams
}

// tfidfVectors builds l2-normalised TF-IDF vectors for every document in
// the corpus, using smoothed inverse document frequency:
//
//	idf = ln((1+n)/(1+df)) + 1
//
// A document with no grams yields an empty vector, which cosines to 0.
func tfidfVectors(corpus []string) []map[string]float64 {
	n := len(corpus)
	termFreqs := make([]map[string]float64, n)
	docFreq := map[string]int{}

	for i, doc := range corpus {
		tf := map[string]float64{}
		for _, gram := range ngrams(doc) {
			tf[gram]++
		}
		termFreqs[i] = tf
		for gram := range tf {
			docFreq[gram]++
		}
	}

	vectors := make([]map[string]float64, n)
	for i, tf := range termFreqs {
		vec := make(map[string]float64, len(tf))
		var sumSq float64
		for gram, count := range tf {
			idf := math.Log(float64(1+n)/float64(1+docFreq[gram])) + 1
			w := count * idf
			vec[gram] = w
			sumSq += w * w
		}
		if sumSq > 0 {
			inv := 1 / math.Sqrt(sumSq)
			for gram := range vec {
				vec[gram] *= inv
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// cosine computes the dot product of two l2-normalised sparse vectors.
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for gram, w := range a {
		dot += w * b[gram]
	}
	return dot
}
