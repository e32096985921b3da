package match

// Candidate-pool bounds before the staged room/floor narrowing kicks in.
// Narrowing keeps the scorer's O(pool) cost in check without ever
// producing an empty pool: a stage only applies when its result is
// non-empty.
const (
	roomNarrowLimit  = 50
	floorNarrowLimit = 30
)

// TypeIndex pre-groups entities by their normalized domain and, when
// distinct, their normalized explicit device type. Built once per entity
// pool, read-only afterwards.
type TypeIndex struct {
	norm  *Normalizer
	byKey map[string][]Entity
	all   []Entity
}

// newTypeIndex builds the index over one entity pool.
func newTypeIndex(norm *Normalizer, entities []Entity) *TypeIndex {
	idx := &TypeIndex{
		norm:  norm,
		byKey: map[string][]Entity{},
		all:   entities,
	}
	for _, e := range entities {
		domainKey := norm.Normalize(e.Domain())
		if domainKey != "" {
			idx.byKey[domainKey] = append(idx.byKey[domainKey], e)
		}
		typeKey := norm.Normalize(e.DeviceType)
		if typeKey != "" && typeKey != domainKey {
			idx.byKey[typeKey] = append(idx.byKey[typeKey], e)
		}
	}
	return idx
}

// Lookup returns the entities grouped under one normalized key.
func (idx *TypeIndex) Lookup(key string) []Entity {
	return idx.byKey[idx.norm.Normalize(key)]
}

// Candidates resolves the candidate pool for one request: explicit device
// type first, then the service domain, then the full pool. Oversized pools
// are narrowed progressively by room and floor using both-ways containment
// on the primary location fields.
func (idx *TypeIndex) Candidates(req DeviceRequest) []Entity {
	pool := idx.typePool(req)

	if len(pool) > roomNarrowLimit {
		if room := idx.norm.Normalize(req.Room()); room != "" {
			narrowed := idx.narrowBy(pool, room, func(e Entity) string { return e.Room() })
			if len(narrowed) > 0 {
				pool = narrowed
			}
		}
	}

	if len(pool) > floorNarrowLimit {
		if floor := idx.norm.Normalize(req.Floor()); floor != "" {
			narrowed := idx.narrowBy(pool, floor, func(e Entity) string { return e.Floor() })
			if len(narrowed) > 0 {
				pool = narrowed
			}
		}
	}

	return pool
}

func (idx *TypeIndex) typePool(req DeviceRequest) []Entity {
	typeQ := req.Type()
	serviceDomain := req.ServiceDomain()

	if typeQ != "" {
		if pool := idx.Lookup(typeQ); len(pool) > 0 {
			return pool
		}
		if serviceDomain != "" {
			if pool := idx.Lookup(serviceDomain); len(pool) > 0 {
				return pool
			}
		}
		return idx.all
	}

	if serviceDomain != "" {
		if pool := idx.Lookup(serviceDomain); len(pool) > 0 {
			return pool
		}
	}
	return idx.all
}

func (idx *TypeIndex) narrowBy(pool []Entity, query string, field func(Entity) string) []Entity {
	var out []Entity
	for _, e := range pool {
		if containsEither(query, idx.norm.Normalize(field(e))) {
			out = append(out, e)
		}
	}
	return out
}
