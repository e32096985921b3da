package match

import (
	"fmt"
	"strings"
)

// genericNameVocab lists class-level device nouns in English, pinyin, and
// Chinese script. A generic name carries near-zero identity information,
// so it is exempt from the name gate and replaced by the neutral name
// substitute in the composite.
var genericNameVocab = []string{
	"light", "lights", "lamp", "lamps", "deng", "灯", "灯光", "灯具", "照明",
	"switch", "switches", "kaiguan", "开关",
	"socket", "sockets", "chazuo", "插座", "outlet", "plug",
	"ac", "aircon", "kongtiao", "空调", "冷气", "climate",
	"fan", "fans", "fengshan", "风扇",
	"cover", "covers", "chuanglian", "窗帘", "curtain", "blind",
	"lock", "locks", "suo", "锁", "门锁",
	"camera", "cameras", "cam", "shexiangtou", "摄像头", "监控",
	"sensor", "sensors", "chuanganqi", "传感器",
	"temperature", "temp", "wendu", "温度", "temperaturesensor", "温度传感器",
	"humidity", "shidu", "湿度", "湿度传感器",
	"motion", "renti", "人体", "motionsensor", "运动传感器", "yundongchuanganqi",
	"occupancy", "zhanyong", "占用", "occupancysensor", "占用传感器", "zhanyongchuanganqi",
	"door", "menchuang", "门窗", "doorsensor", "门窗传感器", "menci", "门磁",
}

// independentTypes are type categories that never alias to a broad domain.
// Requesting one of these must match the entity's explicit device type
// exactly; matching only the domain (e.g. binary_sensor) scores zero.
var independentTypes = map[string]bool{
	"occupancy": true,
	"motion":    true,
}

// Bonus and substitute constants for the composite score.
const (
	neutralFloorScore = 0.90
	neutralNameScore  = 0.85

	bonusNearExactRoom  = 0.10
	bonusNearExactName  = 0.05
	bonusNearExactFloor = 0.03
	bonusDomainMatch    = 0.03
	bonusRoomInName     = 0.40

	nearExact     = 0.98
	confidentHit  = 0.90
	strictRoomMin = 0.98
)

// ScoreRejected is the sentinel composite for a candidate that failed a
// gate. It must never enter a ranked list.
const ScoreRejected = -1.0

// scorer evaluates one (request, entity) pair at a time. It borrows the
// engine's similarity cache and the batch's alias index.
type scorer struct {
	opts    Options
	sim     *Similarity
	aliases *AliasIndex
	generic map[string]bool
}

func newScorer(opts Options, sim *Similarity, aliases *AliasIndex) *scorer {
	g := make(map[string]bool, len(genericNameVocab))
	for _, name := range genericNameVocab {
		g[sim.norm.Normalize(name)] = true
	}
	return &scorer{opts: opts, sim: sim, aliases: aliases, generic: g}
}

// score computes the gated composite for one candidate. A rejected
// candidate returns ScoreRejected with its evidence retained so callers
// can report why it failed. Warnings record non-fatal anomalies.
func (sc *scorer) score(req DeviceRequest, e Entity) (float64, Evidence, []string) {
	floorQ := req.Floor()
	roomQ := req.Room()
	nameQ := req.Name()
	typeQ := sc.effectiveType(req, nameQ)

	var warnings []string

	floorScore, floorHit := sc.fieldScore(floorQ, e.floorCandidates())
	roomScore, roomHit := sc.fieldScore(roomQ, e.roomCandidates())
	nameScore, nameHit := sc.fieldScore(nameQ, e.nameCandidates())
	typeScore, typeHit := sc.typeScore(typeQ, e)

	ev := Evidence{
		Floor:      fieldEvidence(floorQ, floorHit, floorScore),
		Room:       fieldEvidence(roomQ, roomHit, roomScore),
		DeviceName: fieldEvidence(nameQ, nameHit, nameScore),
		DeviceType: fieldEvidence(typeQ, typeHit, typeScore),
	}

	isGeneric := nameQ != "" && sc.generic[sc.sim.norm.Normalize(nameQ)]

	roomThreshold := sc.opts.Thresholds.Room
	if sc.opts.StrictRoomMatch {
		roomThreshold = strictRoomMin
	}

	floorPass := floorQ == "" || floorScore >= sc.opts.Thresholds.Floor
	roomPass := roomQ == "" || roomScore >= roomThreshold
	typePass := typeQ == "" || typeScore >= sc.opts.Thresholds.Type
	namePass := nameQ == "" || isGeneric || nameScore >= sc.opts.Thresholds.Name

	if !(floorPass && roomPass && typePass && namePass) {
		return ScoreRejected, ev, warnings
	}

	w := sc.opts.Weights

	floorWeighted := floorScore
	if floorQ == "" {
		floorWeighted = neutralFloorScore
	}
	nameWeighted := nameScore
	if nameQ == "" || isGeneric {
		nameWeighted = neutralNameScore
	}

	composite := w.Floor*floorWeighted + w.Room*roomScore + w.Name*nameWeighted + w.Type*typeScore

	if roomQ != "" && roomScore >= nearExact {
		composite += bonusNearExactRoom
	}
	if nameQ != "" && !isGeneric && nameScore >= nearExact {
		composite += bonusNearExactName
	}
	if floorQ != "" && floorScore >= nearExact {
		composite += bonusNearExactFloor
	}

	if svcDomain := req.ServiceDomain(); svcDomain != "" {
		if sc.aliases.Resolve(AliasDeviceTypes, svcDomain) == sc.aliases.Resolve(AliasDeviceTypes, e.Domain()) {
			composite += bonusDomainMatch
		} else {
			warnings = append(warnings, fmt.Sprintf("service domain mismatch for %s", e.EntityID))
		}
	}

	if nameQ != "" {
		if room := sc.aliases.RoomMentionedIn(nameQ); room != "" {
			if room == sc.sim.norm.Normalize(e.Room()) {
				composite += bonusRoomInName
			}
		}
	}

	return composite, ev, warnings
}

// looseScore computes the ungated default-weighted composite used by the
// suggestion generator. No gates, no bonuses, no neutral substitutes.
func (sc *scorer) looseScore(req DeviceRequest, e Entity) float64 {
	w := DefaultWeights()
	return w.Floor*sc.sim.Score(req.Floor(), e.floorCandidates()) +
		w.Room*sc.sim.Score(req.Room(), e.roomCandidates()) +
		w.Name*sc.sim.Score(req.Name(), e.nameCandidates()) +
		w.Type*sc.sim.Score(req.Type(), e.typeCandidates())
}

// effectiveType resolves the type query: explicit type, then the service
// domain, then a type lexically implied by the name text (a request named
// "温度传感器" with no type slot still means a temperature sensor).
func (sc *scorer) effectiveType(req DeviceRequest, nameQ string) string {
	if t := req.Type(); t != "" {
		return t
	}
	if nameQ != "" {
		n := sc.sim.norm.Normalize(nameQ)
		switch {
		case strings.Contains(n, "temperature") || strings.Contains(n, "wendu") || strings.Contains(n, "温度"):
			return "temperature"
		case strings.Contains(n, "humidity") || strings.Contains(n, "shidu") || strings.Contains(n, "湿度"):
			return "humidity"
		}
	}
	return req.ServiceDomain()
}

func (sc *scorer) fieldScore(query string, candidates []string) (float64, string) {
	if query == "" {
		return 0, ""
	}
	return sc.sim.Best(query, candidates)
}

// typeScore compares the canonicalised type query against the entity's
// explicit type and domain. Independent categories require an exact
// explicit-type match; the domain alone is insufficient for them.
func (sc *scorer) typeScore(typeQ string, e Entity) (float64, string) {
	if typeQ == "" {
		return 0, ""
	}

	canonical := sc.aliases.Resolve(AliasDeviceTypes, typeQ)
	eType := sc.aliases.Resolve(AliasDeviceTypes, strings.ToLower(e.DeviceType))
	eDomain := sc.aliases.Resolve(AliasDeviceTypes, e.Domain())

	if eType != "" && canonical == eType {
		return 1.0, e.DeviceType
	}
	if independentTypes[canonical] {
		return 0, ""
	}
	if eDomain != "" && canonical == eDomain {
		return 1.0, e.Domain()
	}

	return sc.sim.Best(canonical, []string{eType, eDomain})
}

func fieldEvidence(text, hit string, score float64) FieldEvidence {
	ev := FieldEvidence{Text: text, Score: score}
	if text == "" {
		ev.Score = ScoreNotApplicable
		return ev
	}
	if score >= confidentHit {
		ev.Hit = hit
	}
	return ev
}
