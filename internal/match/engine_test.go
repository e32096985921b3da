package match

import (
	"math"
	"testing"
)

func livingRoomPool() []Entity {
	return []Entity{
		{EntityID: "light.living_lamp", RoomName: "living_room", FloorName: "1"},
		{EntityID: "light.bedroom_lamp", RoomName: "bedroom", FloorName: "1"},
	}
}

func TestMatchSingleTarget(t *testing.T) {
	engine := New(DefaultOptions())

	result := engine.Match(Batch{
		Requests: []DeviceRequest{{RoomName: "living_room", DeviceType: "light"}},
		Entities: livingRoomPool(),
	})

	if len(result.Actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(result.Actions))
	}
	action := result.Actions[0]
	if len(action.Targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(action.Targets))
	}

	target := action.Targets[0]
	if target.EntityID != "light.living_lamp" {
		t.Errorf("target = %s, want light.living_lamp", target.EntityID)
	}

	// room=1.0 and type=1.0 exact, floor and name neutral, plus the
	// near-exact room bonus.
	want := round3(0.15*0.90 + 0.40*1.0 + 0.30*0.85 + 0.15*1.0 + bonusNearExactRoom)
	if math.Abs(target.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", target.Score, want)
	}

	if action.DisambiguationRequired {
		t.Error("single target must not require disambiguation")
	}
	if len(action.SuggestionsIfEmpty) != 0 {
		t.Errorf("suggestions = %v, want none when targets exist", action.SuggestionsIfEmpty)
	}
}

func TestMatchServiceDomainBonus(t *testing.T) {
	engine := New(DefaultOptions())

	withService := engine.Match(Batch{
		Requests: []DeviceRequest{{RoomName: "living_room", DeviceType: "light", Service: "light.turn_on"}},
		Entities: livingRoomPool(),
	})
	withoutService := engine.Match(Batch{
		Requests: []DeviceRequest{{RoomName: "living_room", DeviceType: "light"}},
		Entities: livingRoomPool(),
	})

	delta := withService.Actions[0].Targets[0].Score - withoutService.Actions[0].Targets[0].Score
	if math.Abs(delta-bonusDomainMatch) > 1e-3 {
		t.Errorf("service domain delta = %v, want %v", delta, bonusDomainMatch)
	}
}

func TestMatchEmptyResultWithScopedSuggestions(t *testing.T) {
	engine := New(DefaultOptions())

	// No entity is in the garage: the room gate rejects both candidates
	// and the suggestion generator's room scope removes them too.
	result := engine.Match(Batch{
		Requests: []DeviceRequest{{RoomName: "garage", DeviceType: "light"}},
		Entities: livingRoomPool(),
	})

	action := result.Actions[0]
	if len(action.Targets) != 0 {
		t.Fatalf("targets = %d, want 0", len(action.Targets))
	}
	if len(action.SuggestionsIfEmpty) != 0 {
		t.Errorf("suggestions = %v, want none outside the requested room scope", action.SuggestionsIfEmpty)
	}
	if len(result.MatchedDevices) != 0 {
		t.Errorf("matched devices = %v, want none", result.MatchedDevices)
	}
}

func TestMatchEmptyResultUnconstrainedLocationSuggests(t *testing.T) {
	engine := New(DefaultOptions())

	// The name gate rejects everything, but with no floor or room
	// constraint the whole pool remains eligible for relaxed suggestions.
	result := engine.Match(Batch{
		Requests: []DeviceRequest{{DeviceName: "disco ball", DeviceType: "light"}},
		Entities: livingRoomPool(),
	})

	action := result.Actions[0]
	if len(action.Targets) != 0 {
		t.Fatalf("targets = %d, want 0", len(action.Targets))
	}
	if len(action.SuggestionsIfEmpty) != 2 {
		t.Errorf("suggestions = %d, want 2", len(action.SuggestionsIfEmpty))
	}
}

func TestMatchCrossFloorSuggestionsNeverGuessed(t *testing.T) {
	engine := New(DefaultOptions())

	pool := []Entity{
		{EntityID: "light.a", RoomName: "living_room"},
		{EntityID: "light.b", RoomName: "bedroom"},
	}
	result := engine.Match(Batch{
		Requests: []DeviceRequest{{FloorName: "2", DeviceType: "light"}},
		Entities: pool,
	})

	action := result.Actions[0]
	if len(action.Targets) != 0 {
		t.Fatalf("targets = %d, want 0", len(action.Targets))
	}
	if len(action.SuggestionsIfEmpty) != 0 {
		t.Errorf("suggestions = %v, want none when no entity has floor information", action.SuggestionsIfEmpty)
	}
}

func TestMatchDisambiguationFlag(t *testing.T) {
	engine := New(DefaultOptions())

	// Two identical lights in the same room score identically: gap zero.
	pool := []Entity{
		{EntityID: "light.left", RoomName: "study", FloorName: "1"},
		{EntityID: "light.right", RoomName: "study", FloorName: "1"},
	}
	result := engine.Match(Batch{
		Requests: []DeviceRequest{{RoomName: "study", DeviceType: "light"}},
		Entities: pool,
	})

	action := result.Actions[0]
	if len(action.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(action.Targets))
	}
	if !action.DisambiguationRequired {
		t.Error("identical scores must set the disambiguation flag")
	}
}

func TestMatchOrderPreservedAcrossRequests(t *testing.T) {
	engine := New(DefaultOptions())

	result := engine.Match(Batch{
		Requests: []DeviceRequest{
			{RoomName: "bedroom", DeviceType: "light"},
			{RoomName: "living_room", DeviceType: "light"},
		},
		Entities: livingRoomPool(),
	})

	if len(result.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(result.Actions))
	}
	if got := *result.Actions[0].Request.Room; got != "bedroom" {
		t.Errorf("actions[0] room = %q, want bedroom", got)
	}
	if got := *result.Actions[1].Request.Room; got != "living_room" {
		t.Errorf("actions[1] room = %q, want living_room", got)
	}
}

func TestMatchMatchedDevicesFlattened(t *testing.T) {
	engine := New(DefaultOptions())

	result := engine.Match(Batch{
		Requests: []DeviceRequest{
			{RoomName: "living_room", DeviceType: "light", Service: "light.turn_on",
				ServiceData: map[string]any{"brightness": 200},
				Automation:  map[string]any{"trigger": "sunset"}},
			{RoomName: "bedroom", DeviceType: "light", Service: "light.turn_off"},
		},
		Entities: livingRoomPool(),
	})

	if len(result.MatchedDevices) != 2 {
		t.Fatalf("matched devices = %d, want 2", len(result.MatchedDevices))
	}

	first := result.MatchedDevices[0]
	if first.EntityID != "light.living_lamp" {
		t.Errorf("matched[0] = %s, want light.living_lamp", first.EntityID)
	}
	if first.Service == nil || *first.Service != "light.turn_on" {
		t.Errorf("matched[0] service = %v, want light.turn_on", first.Service)
	}
	if first.ServiceData["brightness"] != 200 {
		t.Errorf("matched[0] service data = %v, want brightness 200", first.ServiceData)
	}
	if first.Automation["trigger"] != "sunset" {
		t.Errorf("matched[0] automation = %v, want trigger sunset", first.Automation)
	}

	if result.MatchedDevices[1].EntityID != "light.bedroom_lamp" {
		t.Errorf("matched[1] = %s, want light.bedroom_lamp", result.MatchedDevices[1].EntityID)
	}
}

func TestMatchOverrides(t *testing.T) {
	engine := New(DefaultOptions())

	strictName := Thresholds{Floor: 0.70, Room: 0.70, Type: 0.65, Name: 0.99}
	topK := 1

	pool := []Entity{
		{EntityID: "light.left", RoomName: "study", FloorName: "1"},
		{EntityID: "light.right", RoomName: "study", FloorName: "1"},
	}

	result := engine.Match(Batch{
		Requests:  []DeviceRequest{{RoomName: "study", DeviceType: "light"}},
		Entities:  pool,
		Overrides: &Overrides{Thresholds: &strictName, TopK: &topK},
	})

	if got := len(result.Actions[0].Targets); got != 1 {
		t.Errorf("targets with topK=1 override = %d, want 1", got)
	}

	// The engine's own options stay untouched.
	if engine.opts.TopK != 100 {
		t.Errorf("engine TopK mutated to %d", engine.opts.TopK)
	}
}

func TestMatchIntentDefaulting(t *testing.T) {
	engine := New(DefaultOptions())

	if got := engine.Match(Batch{}).Intent; got != "Best Match" {
		t.Errorf("default intent = %q, want %q", got, "Best Match")
	}
	if got := engine.Match(Batch{Intent: "TurnOn", UserInput: "turn on the lamp"}); got.Intent != "TurnOn" || got.UserInput != "turn on the lamp" {
		t.Errorf("intent/user input not echoed: %+v", got)
	}
}

func TestMatchEmptyBatch(t *testing.T) {
	engine := New(DefaultOptions())

	result := engine.Match(Batch{})
	if len(result.Actions) != 0 || len(result.MatchedDevices) != 0 {
		t.Errorf("empty batch produced %+v", result)
	}
}

func TestMatchRankedScoresNonIncreasing(t *testing.T) {
	engine := New(DefaultOptions())

	pool := []Entity{
		{EntityID: "light.a", DeviceName: "corner lamp", RoomName: "study", FloorName: "1"},
		{EntityID: "light.b", DeviceName: "desk lamp", RoomName: "study", FloorName: "1"},
		{EntityID: "light.c", DeviceName: "desk lamp", RoomName: "study", FloorName: "2"},
	}
	result := engine.Match(Batch{
		Requests: []DeviceRequest{{RoomName: "study", DeviceName: "desk lamp", DeviceType: "light", FloorName: "1"}},
		Entities: pool,
	})

	targets := result.Actions[0].Targets
	for i := 1; i < len(targets); i++ {
		if targets[i-1].Score < targets[i].Score {
			t.Fatalf("targets not sorted: %v then %v", targets[i-1].Score, targets[i].Score)
		}
	}
	if len(targets) == 0 || targets[0].EntityID != "light.b" {
		t.Errorf("top target = %v, want light.b", targets)
	}
}
