package envelope

import (
	"errors"
	"testing"
)

const wrappedPayload = `{
	"intention_data": {
		"data": {
			"intent": "TurnOn",
			"user_input": "turn on the living room light",
			"devices": [{"room_name": "living_room", "device_type": "light", "service": "light.turn_on"}]
		}
	},
	"entities_data": {
		"data": {
			"entities": [{"entity_id": "light.living_lamp", "room_name": "living_room"}]
		}
	},
	"aliases": {"rooms": {"living_room": ["客厅", "lounge"]}},
	"config": {"topK": 5, "disambiguationGap": 0.1}
}`

func TestDecodeWrapped(t *testing.T) {
	batch, err := Decode([]byte(wrappedPayload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if batch.Intent != "TurnOn" {
		t.Errorf("intent = %q, want TurnOn", batch.Intent)
	}
	if batch.UserInput != "turn on the living room light" {
		t.Errorf("user input = %q", batch.UserInput)
	}
	if len(batch.Requests) != 1 || batch.Requests[0].RoomName != "living_room" {
		t.Errorf("requests = %+v", batch.Requests)
	}
	if len(batch.Entities) != 1 || batch.Entities[0].EntityID != "light.living_lamp" {
		t.Errorf("entities = %+v", batch.Entities)
	}
	if len(batch.Aliases.Rooms["living_room"]) != 2 {
		t.Errorf("aliases = %+v", batch.Aliases)
	}
	if batch.Overrides == nil || batch.Overrides.TopK == nil || *batch.Overrides.TopK != 5 {
		t.Errorf("overrides = %+v", batch.Overrides)
	}
	if batch.Overrides.DisambiguationGap == nil || *batch.Overrides.DisambiguationGap != 0.1 {
		t.Errorf("gap override = %+v", batch.Overrides.DisambiguationGap)
	}
}

func TestDecodeLegacy(t *testing.T) {
	payload := `{
		"intent": "TurnOff",
		"user_query": "lights off",
		"intent_devices": [{"device_type": "light"}],
		"entities": [{"entity_id": "light.a"}, {"entity_id": "light.b"}]
	}`

	batch, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if batch.Intent != "TurnOff" {
		t.Errorf("intent = %q, want TurnOff", batch.Intent)
	}
	if batch.UserInput != "lights off" {
		t.Errorf("user input = %q", batch.UserInput)
	}
	if len(batch.Requests) != 1 || len(batch.Entities) != 2 {
		t.Errorf("requests=%d entities=%d, want 1 and 2", len(batch.Requests), len(batch.Entities))
	}
}

func TestDecodeDirect(t *testing.T) {
	payload := `{
		"intent": {
			"intent": "Query",
			"user_input": "is the heater on",
			"devices": [{"device_type": "climate"}]
		},
		"entities": [{"entity_id": "climate.main"}]
	}`

	batch, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if batch.Intent != "Query" || batch.UserInput != "is the heater on" {
		t.Errorf("batch = %+v", batch)
	}
	if len(batch.Requests) != 1 || len(batch.Entities) != 1 {
		t.Errorf("requests=%d entities=%d, want 1 and 1", len(batch.Requests), len(batch.Entities))
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{{`, ErrInvalidJSON},
		{"not an object", `[1,2,3]`, ErrInvalidJSON},
		{"no recognised keys", `{"hello": "world"}`, ErrInvalidShape},
		{"wrapped missing devices", `{"intention_data": {"data": {"user_input": "x"}}, "entities_data": {"data": {"entities": []}}}`, ErrInvalidShape},
		{"wrapped missing entities_data", `{"intention_data": {"data": {"devices": []}}}`, ErrInvalidShape},
		{"wrapped missing data", `{"intention_data": {}, "entities_data": {"data": {"entities": []}}}`, ErrInvalidShape},
		{"wrapped devices wrong type", `{"intention_data": {"data": {"devices": "nope"}}, "entities_data": {"data": {"entities": []}}}`, ErrInvalidShape},
		{"wrapped entities wrong type", `{"intention_data": {"data": {"devices": []}}, "entities_data": {"data": {"entities": {}}}}`, ErrInvalidShape},
		{"legacy missing entities", `{"intent_devices": []}`, ErrInvalidShape},
		{"legacy devices wrong type", `{"intent_devices": 7, "entities": []}`, ErrInvalidShape},
		{"direct missing entities", `{"intent": {"devices": []}}`, ErrInvalidShape},
		{"direct missing devices", `{"intent": {"user_input": "x"}, "entities": []}`, ErrInvalidShape},
		{"bad aliases", `{"intent_devices": [], "entities": [], "aliases": 5}`, ErrInvalidShape},
		{"bad config", `{"intent_devices": [], "entities": [], "config": "fast"}`, ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Decode([]byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
			if len(batch.Requests) != 0 || len(batch.Entities) != 0 {
				t.Errorf("rejected payload produced partial batch: %+v", batch)
			}
		})
	}
}

func TestDecodeEmptySequencesAreValid(t *testing.T) {
	// Present-but-empty sequences are legitimate: a batch with nothing to
	// match is not malformed.
	batch, err := Decode([]byte(`{"intent_devices": [], "entities": []}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if batch.Requests == nil && batch.Entities == nil {
		// Decoded empty slices may be nil; the engine treats both the same.
		t.Log("empty sequences decoded as nil slices")
	}
}
