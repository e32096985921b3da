package match

import "strings"

// AliasIndex is a reverse mapping from the normalized form of every known
// alias (and every canonical identifier) to the normalized canonical form,
// per alias class. Built fresh for each batch because alias tables are
// batch-scoped: a stale canonical mapping from a previous caller is an
// integrity hazard. Read-only after construction.
type AliasIndex struct {
	norm    *Normalizer
	classes map[AliasClass]map[string]string

	// roomRefs holds every normalized room token (canonicals and aliases)
	// keyed to its normalized canonical room, for detecting room references
	// embedded in device names.
	roomRefs map[string]string
}

// newAliasIndex builds the reverse index for all three alias classes.
func newAliasIndex(norm *Normalizer, aliases Aliases) *AliasIndex {
	idx := &AliasIndex{
		norm:     norm,
		classes:  make(map[AliasClass]map[string]string, 3),
		roomRefs: map[string]string{},
	}
	for _, class := range []AliasClass{AliasFloors, AliasRooms, AliasDeviceTypes} {
		idx.classes[class] = buildReverseIndex(norm, aliases.Class(class))
	}

	for canonical, list := range aliases.Rooms {
		canonNorm := norm.Normalize(canonical)
		if canonNorm == "" {
			continue
		}
		idx.roomRefs[canonNorm] = canonNorm
		for _, alias := range list {
			if a := norm.Normalize(alias); a != "" {
				idx.roomRefs[a] = canonNorm
			}
		}
	}
	return idx
}

func buildReverseIndex(norm *Normalizer, aliasMap map[string][]string) map[string]string {
	index := make(map[string]string, len(aliasMap)*4)
	for canonical, aliases := range aliasMap {
		canonNorm := norm.Normalize(canonical)
		if canonNorm == "" {
			continue
		}
		index[canonNorm] = canonNorm
		for _, alias := range aliases {
			if a := norm.Normalize(alias); a != "" {
				index[a] = canonNorm
			}
		}
	}
	return index
}

// Resolve canonicalises a raw value through one alias class. Resolution
// never fails: an unknown value falls back to its own normalized form.
func (idx *AliasIndex) Resolve(class AliasClass, value string) string {
	if value == "" {
		return ""
	}
	v := idx.norm.Normalize(value)
	if canonical, ok := idx.classes[class][v]; ok {
		return canonical
	}
	return v
}

// RoomMentionedIn scans a device name for an embedded room reference
// (canonical or alias) and returns the normalized canonical room, or ""
// when none is found. Rewards names like "living-room lamp" that resolve
// unambiguously even with an empty room slot.
func (idx *AliasIndex) RoomMentionedIn(name string) string {
	n := idx.norm.Normalize(name)
	if n == "" {
		return ""
	}
	// Longest token wins so "master_bedroom" is not shadowed by "bedroom".
	best := ""
	bestToken := ""
	for token, canonical := range idx.roomRefs {
		if !strings.Contains(n, token) {
			continue
		}
		if len(token) > len(bestToken) || (len(token) == len(bestToken) && token < bestToken) {
			best = canonical
			bestToken = token
		}
	}
	return best
}
