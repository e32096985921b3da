package match

import (
	"strconv"
	"strings"
)

// DeviceRequest is one user intent item: the slots extracted upstream from a
// spoken or typed command. All fields are optional; empty means the user did
// not constrain that slot. Immutable for the duration of a match cycle.
type DeviceRequest struct {
	FloorName   string `json:"floor_name,omitempty"`
	FloorNameEN string `json:"floor_name_en,omitempty"`
	FloorType   string `json:"floor_type,omitempty"`

	RoomName   string `json:"room_name,omitempty"`
	RoomNameEN string `json:"room_name_en,omitempty"`
	RoomType   string `json:"room_type,omitempty"`

	DeviceName   string `json:"device_name,omitempty"`
	DeviceNameEN string `json:"device_name_en,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`

	// Service is a "domain.action" identifier (e.g. "light.turn_on").
	Service     string         `json:"service,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Automation  map[string]any `json:"automation,omitempty"`
}

// Floor returns the primary floor query text. The canonical-language variant
// wins over the localised one so that cross-script requests compare in a
// single script where possible.
func (d DeviceRequest) Floor() string {
	return firstNonEmpty(d.FloorNameEN, d.FloorType, d.FloorName)
}

// Room returns the primary room query text.
func (d DeviceRequest) Room() string {
	return firstNonEmpty(d.RoomNameEN, d.RoomType, d.RoomName)
}

// Name returns the primary device-name query text.
func (d DeviceRequest) Name() string {
	return firstNonEmpty(d.DeviceNameEN, d.DeviceName)
}

// Type returns the explicit device type, lower-cased. Empty when the request
// carries no type constraint.
func (d DeviceRequest) Type() string {
	return strings.ToLower(strings.TrimSpace(d.DeviceType))
}

// ServiceDomain returns the domain portion of the service identifier, or ""
// when no service was requested.
func (d DeviceRequest) ServiceDomain() string {
	if d.Service == "" {
		return ""
	}
	domain, _, _ := strings.Cut(d.Service, ".")
	return strings.ToLower(domain)
}

// Entity is one candidate addressable device record. EntityID is in
// "domain.object_id" form; the domain acts as a type-like classifier.
// Level may arrive as a string or a number depending on the upstream
// exporter, hence the any type.
type Entity struct {
	EntityID   string `json:"entity_id"`
	DeviceType string `json:"device_type,omitempty"`
	DeviceName string `json:"device_name,omitempty"`

	FloorName   string `json:"floor_name,omitempty"`
	FloorNameEN string `json:"floor_name_en,omitempty"`
	FloorType   string `json:"floor_type,omitempty"`
	Level       any    `json:"level,omitempty"`

	RoomName   string `json:"room_name,omitempty"`
	RoomNameEN string `json:"room_name_en,omitempty"`
	RoomType   string `json:"room_type,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`
}

// Domain returns the entity-ID prefix before the first dot.
func (e Entity) Domain() string {
	domain, _, _ := strings.Cut(e.EntityID, ".")
	return domain
}

// FriendlyName returns the nested display name, if one is present.
func (e Entity) FriendlyName() string {
	if e.Attributes == nil {
		return ""
	}
	if v, ok := e.Attributes["friendly_name"].(string); ok {
		return v
	}
	return ""
}

// Floor returns the primary floor label for display and filtering.
func (e Entity) Floor() string {
	return firstNonEmpty(e.FloorNameEN, e.FloorType, e.FloorName, e.levelString())
}

// Room returns the primary room label.
func (e Entity) Room() string {
	return firstNonEmpty(e.RoomNameEN, e.RoomType, e.RoomName)
}

// DisplayName returns the best available human-readable device name.
func (e Entity) DisplayName() string {
	return firstNonEmpty(e.DeviceName, e.FriendlyName())
}

func (e Entity) levelString() string {
	switch v := e.Level.(type) {
	case string:
		return v
	case float64:
		return trimFloat(v)
	case int:
		return trimFloat(float64(v))
	default:
		return ""
	}
}

// floorCandidates returns every field that may identify the floor, ordered
// by reliability.
func (e Entity) floorCandidates() []string {
	return []string{e.FloorNameEN, e.FloorType, e.FloorName, e.levelString()}
}

func (e Entity) roomCandidates() []string {
	return []string{e.RoomNameEN, e.RoomType, e.RoomName}
}

func (e Entity) nameCandidates() []string {
	return []string{e.DeviceName, e.FriendlyName()}
}

func (e Entity) typeCandidates() []string {
	return []string{strings.ToLower(e.DeviceType), e.Domain()}
}

// AliasClass identifies one of the three supported alias vocabularies.
type AliasClass string

const (
	AliasFloors      AliasClass = "floors"
	AliasRooms       AliasClass = "rooms"
	AliasDeviceTypes AliasClass = "device_types"
)

// Aliases maps canonical identifiers to their known alias strings, per
// class. Supplied per batch; any class may be empty.
type Aliases struct {
	Floors      map[string][]string `json:"floors,omitempty"`
	Rooms       map[string][]string `json:"rooms,omitempty"`
	DeviceTypes map[string][]string `json:"device_types,omitempty"`
}

// Class returns the alias map for one class, never nil for a known class.
func (a Aliases) Class(c AliasClass) map[string][]string {
	switch c {
	case AliasFloors:
		return a.Floors
	case AliasRooms:
		return a.Rooms
	case AliasDeviceTypes:
		return a.DeviceTypes
	default:
		return nil
	}
}

// Clone returns a deep copy. Used when merging learned aliases so the
// caller's table is never mutated.
func (a Aliases) Clone() Aliases {
	return Aliases{
		Floors:      cloneAliasMap(a.Floors),
		Rooms:       cloneAliasMap(a.Rooms),
		DeviceTypes: cloneAliasMap(a.DeviceTypes),
	}
}

// Add records a new alias for an existing canonical identifier. Unknown
/// canonicals are ignored: an alias without an established target would
// corrupt the vocabulary. Reports whether the alias was added.
func (a *Aliases) Add(class AliasClass, canonical, alias string) bool {
	var m map[string][]string
	switch class {
	case AliasFloors:
		if a.Floors == nil {
			a.Floors = map[string][]string{}
		}
		m = a.Floors
	case AliasRooms:
		if a.Rooms == nil {
			a.Rooms = map[string][]string{}
		}
		m = a.Rooms
	case AliasDeviceTypes:
		if a.DeviceTypes == nil {
			a.DeviceTypes = map[string][]string{}
		}
		m = a.DeviceTypes
	default:
		return false
	}

	existing, ok := m[canonical]
	if !ok {
		return false
	}
	for _, have := range existing {
		if have == alias {
			return false
		}
	}
	m[canonical] = append(existing, alias)
	return true
}

func cloneAliasMap(src map[string][]string) map[string][]string {
	if src == nil {
		return nil
	}
	dst := make(map[string][]string, len(src))
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
	return dst
}

// Weights are the composite score weights per field. Room dominates because
// physical location disambiguates multi-device rooms more reliably than
// naming.
type Weights struct {
	Floor float64 `json:"F" yaml:"floor"`
	Room  float64 `json:"R" yaml:"room"`
	Name  float64 `json:"N" yaml:"name"`
	Type  float64 `json:"T" yaml:"type"`
}

// DefaultWeights returns the standard field weighting.
func DefaultWeights() Weights {
	return Weights{Floor: 0.15, Room: 0.40, Name: 0.30, Type: 0.15}
}

// Thresholds are per-field gating minimums. A requested field scoring below
// its threshold rejects the candidate outright.
type Thresholds struct {
	Floor float64 `json:"floor" yaml:"floor"`
	Room  float64 `json:"room" yaml:"room"`
	Type  float64 `json:"type" yaml:"type"`
	Name  float64 `json:"name" yaml:"name"`
}

// DefaultThresholds returns the standard gate levels. The name gate is
// deliberately low to tolerate synonym pairs like lamp/light.
func DefaultThresholds() Thresholds {
	return Thresholds{Floor: 0.70, Room: 0.70, Type: 0.65, Name: 0.45}
}

// Options configures an Engine.
type Options struct {
	Weights    Weights
	Thresholds Thresholds

	// TopK bounds the ranked target list per request.
	TopK int

	// DisambiguationGap is the minimum score distance between rank 1 and
	// rank 2 below which the result is flagged ambiguous.
	DisambiguationGap float64

	// StrictRoomMatch raises the room gate to a near-exact 0.98, rejecting
	// containment-grade room matches.
	StrictRoomMatch bool

	// NormalizeCacheSize and SimilarityCacheSize bound the two LRU caches.
	// Zero selects the defaults.
	NormalizeCacheSize  int
	SimilarityCacheSize int
}

// DefaultOptions returns engine options with standard weights, thresholds,
// and cache capacities.
func DefaultOptions() Options {
	return Options{
		Weights:             DefaultWeights(),
		Thresholds:          DefaultThresholds(),
		TopK:                100,
		DisambiguationGap:   0.08,
		NormalizeCacheSize:  1000,
		SimilarityCacheSize: 500,
	}
}

// Overrides carries per-batch configuration overrides supplied by the
// caller. Nil fields leave the engine defaults untouched.
type Overrides struct {
	Weights           *Weights    `json:"weights,omitempty"`
	Thresholds        *Thresholds `json:"thresholds,omitempty"`
	TopK              *int        `json:"topK,omitempty"`
	DisambiguationGap *float64    `json:"disambiguationGap,omitempty"`
}

// Batch is one canonical match request: an ordered sequence of device
// requests resolved against an ordered entity pool.
type Batch struct {
	Intent    string
	UserInput string
	Requests  []DeviceRequest
	Entities  []Entity
	Aliases   Aliases
	Overrides *Overrides
}

// ScoreNotApplicable marks an evidence field that was not part of the
// request, distinguishing "not constrained" from "scored zero".
const ScoreNotApplicable = -1.0

// FieldEvidence records how one request field compared against an entity.
// Hit is the best matching candidate text when the match was confident
// (score at or above 0.9), otherwise empty.
type FieldEvidence struct {
	Text  string  `json:"text"`
	Hit   string  `json:"hit"`
	Score float64 `json:"score"`
}

// Evidence is the per-field breakdown attached to every scored candidate,
// including rejected ones.
type Evidence struct {
	Floor      FieldEvidence `json:"floor"`
	Room       FieldEvidence `json:"room"`
	DeviceName FieldEvidence `json:"device_name"`
	DeviceType FieldEvidence `json:"device_type"`
}

// Target is one ranked match for a request.
type Target struct {
	EntityID   string   `json:"entity_id"`
	DeviceType string   `json:"device_type"`
	DeviceName string   `json:"device_name"`
	Floor      string   `json:"floor"`
	Room       string   `json:"room"`
	Score      float64  `json:"score"`
	Matched    Evidence `json:"matched"`
}

// Suggestion is a lightweight hint returned when no candidate passed
// gating. Never auto-applied as a match.
type Suggestion struct {
	EntityID    string  `json:"entity_id"`
	DeviceName  string  `json:"device_name"`
	Room        string  `json:"room"`
	Floor       string  `json:"floor"`
	ReasonScore float64 `json:"reason_score"`
}

// RequestEcho mirrors the resolved request slots back to the caller.
type RequestEcho struct {
	Floor       *string        `json:"floor"`
	Room        *string        `json:"room"`
	DeviceName  *string        `json:"device_name"`
	DeviceType  *string        `json:"device_type"`
	Service     *string        `json:"service"`
	ServiceData map[string]any `json:"service_data"`
	Automation  map[string]any `json:"automation,omitempty"`
}

// ActionResult is the outcome for one DeviceRequest, order preserved.
// AdvisorReason and AdvisorSuggestions are attached by the pipeline when
// the external advisor is escalated; the engine never populates them.
type ActionResult struct {
	Request                RequestEcho  `json:"request"`
	Targets                []Target     `json:"targets"`
	DisambiguationRequired bool         `json:"disambiguation_required"`
	Warnings               []string     `json:"warnings"`
	SuggestionsIfEmpty     []Suggestion `json:"suggestions_if_empty"`
	AdvisorReason          string       `json:"llm_reason,omitempty"`
	AdvisorSuggestions     []string     `json:"llm_suggestions,omitempty"`
}

// MatchedDevice is one flattened action directive drawn from a request's
// ranked targets.
type MatchedDevice struct {
	EntityID    string         `json:"entity_id"`
	Service     *string        `json:"service"`
	ServiceData map[string]any `json:"service_data"`
	Automation  map[string]any `json:"automation,omitempty"`
}

// Result is the full outcome of one batch.
type Result struct {
	Intent         string          `json:"intent"`
	UserInput      string          `json:"user_input"`
	Actions        []ActionResult  `json:"actions"`
	MatchedDevices []MatchedDevice `json:"matched_devices"`
}

// trimFloat renders a JSON number as a floor label: integral values lose
// the trailing ".0" so level 1 compares equal to the string "1".
func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
