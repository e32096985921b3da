package match

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalises arbitrary text into a comparable token: NFKC
// fold, lower-case, then a character-class filter keeping only ASCII
// alphanumerics and CJK ideographs. Whitespace, underscores, and hyphens
// disappear with everything else outside the kept classes.
//
// Normalisation is the single most frequent operation in the engine, so
// results are memoised in a bounded LRU keyed by the raw input.
type Normalizer struct {
	cache *lruCache[string, string]
}

// newNormalizer creates a Normalizer with the given cache capacity.
func newNormalizer(cacheSize int) *Normalizer {
	return &Normalizer{cache: newLRUCache[string, string](cacheSize)}
}

// Normalize returns the canonical token for text. Deterministic and total:
// empty input yields an empty token, nothing ever fails.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	if cached, ok := n.cache.Get(text); ok {
		return cached
	}

	// NFKC first so full-width forms fold to ASCII before lower-casing.
	folded := strings.ToLower(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x4E00 && r <= 0x9FA5:
			b.WriteRune(r)
		}
	}

	result := b.String()
	n.cache.Put(text, result)
	return result
}

// containsEither reports whether either normalized token contains the
// other. Both must be non-empty.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
