package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/hearthwise/voicematch/internal/match"
)

// intentPayload is the shared inner intent structure: the parsed device
// requests plus the free-text query they came from.
type intentPayload struct {
	Intent    string                `json:"intent"`
	UserInput string                `json:"user_input"`
	Devices   []match.DeviceRequest `json:"devices"`
}

// dataSection is the {"data": {...}} wrapper used by the wrapped shape.
type dataSection struct {
	Data json.RawMessage `json:"data"`
}

// Decode parses raw JSON in any accepted envelope shape and returns the
// canonical batch. On failure the batch is zero and the error describes
// the first problem found; there is never a partial result.
func Decode(raw []byte) (match.Batch, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return match.Batch{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var batch match.Batch
	var err error

	switch {
	case hasKey(probe, "intention_data") || hasKey(probe, "entities_data"):
		batch, err = decodeWrapped(probe)
	case hasKey(probe, "intent_devices"):
		batch, err = decodeLegacy(probe)
	case hasKey(probe, "intent"):
		batch, err = decodeDirect(probe)
	default:
		return match.Batch{}, fmt.Errorf("%w: no recognised envelope keys", ErrInvalidShape)
	}
	if err != nil {
		return match.Batch{}, err
	}

	if err := decodeCommon(probe, &batch); err != nil {
		return match.Batch{}, err
	}
	return batch, nil
}

// decodeWrapped handles {"intention_data": {"data": {...}}, "entities_data": {"data": {...}}}.
func decodeWrapped(probe map[string]json.RawMessage) (match.Batch, error) {
	intentRaw, ok := probe["intention_data"]
	if !ok {
		return match.Batch{}, fmt.Errorf("%w: missing 'intention_data'", ErrInvalidShape)
	}
	entitiesRaw, ok := probe["entities_data"]
	if !ok {
		return match.Batch{}, fmt.Errorf("%w: missing 'entities_data'", ErrInvalidShape)
	}

	var intentSection dataSection
	if err := json.Unmarshal(intentRaw, &intentSection); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'intention_data' must be an object: %v", ErrInvalidShape, err)
	}
	if intentSection.Data == nil {
		return match.Batch{}, fmt.Errorf("%w: missing 'intention_data.data'", ErrInvalidShape)
	}

	var intent intentPayload
	if err := json.Unmarshal(intentSection.Data, &intent); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'intention_data.data' malformed: %v", ErrInvalidShape, err)
	}
	if err := requireField(intentSection.Data, "devices", "intention_data.data.devices"); err != nil {
		return match.Batch{}, err
	}

	var entitiesSection dataSection
	if err := json.Unmarshal(entitiesRaw, &entitiesSection); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'entities_data' must be an object: %v", ErrInvalidShape, err)
	}
	if entitiesSection.Data == nil {
		return match.Batch{}, fmt.Errorf("%w: missing 'entities_data.data'", ErrInvalidShape)
	}

	var entitiesBody struct {
		Entities []match.Entity `json:"entities"`
	}
	if err := json.Unmarshal(entitiesSection.Data, &entitiesBody); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'entities_data.data' malformed: %v", ErrInvalidShape, err)
	}
	if err := requireField(entitiesSection.Data, "entities", "entities_data.data.entities"); err != nil {
		return match.Batch{}, err
	}

	return match.Batch{
		Intent:    intent.Intent,
		UserInput: intent.UserInput,
		Requests:  intent.Devices,
		Entities:  entitiesBody.Entities,
	}, nil
}

// decodeLegacy handles {"intent_devices": [...], "entities": [...], "user_query": "..."}.
func decodeLegacy(probe map[string]json.RawMessage) (match.Batch, error) {
	var requests []match.DeviceRequest
	if err := json.Unmarshal(probe["intent_devices"], &requests); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'intent_devices' must be a list: %v", ErrInvalidShape, err)
	}

	entitiesRaw, ok := probe["entities"]
	if !ok {
		return match.Batch{}, fmt.Errorf("%w: missing 'entities' field", ErrInvalidShape)
	}
	var entities []match.Entity
	if err := json.Unmarshal(entitiesRaw, &entities); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'entities' must be a list: %v", ErrInvalidShape, err)
	}

	batch := match.Batch{Requests: requests, Entities: entities}

	if raw, ok := probe["user_query"]; ok {
		if err := json.Unmarshal(raw, &batch.UserInput); err != nil {
			return match.Batch{}, fmt.Errorf("%w: 'user_query' must be a string: %v", ErrInvalidShape, err)
		}
	}
	if raw, ok := probe["intent"]; ok {
		if err := json.Unmarshal(raw, &batch.Intent); err != nil {
			return match.Batch{}, fmt.Errorf("%w: 'intent' must be a string: %v", ErrInvalidShape, err)
		}
	}
	return batch, nil
}

// decodeDirect handles {"intent": {"devices": [...]}, "entities": [...]}.
func decodeDirect(probe map[string]json.RawMessage) (match.Batch, error) {
	var intent intentPayload
	if err := json.Unmarshal(probe["intent"], &intent); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'intent' must be an object: %v", ErrInvalidShape, err)
	}
	if err := requireField(probe["intent"], "devices", "intent.devices"); err != nil {
		return match.Batch{}, err
	}

	entitiesRaw, ok := probe["entities"]
	if !ok {
		return match.Batch{}, fmt.Errorf("%w: missing 'entities' field", ErrInvalidShape)
	}
	var entities []match.Entity
	if err := json.Unmarshal(entitiesRaw, &entities); err != nil {
		return match.Batch{}, fmt.Errorf("%w: 'entities' must be a list: %v", ErrInvalidShape, err)
	}

	batch := match.Batch{
		Intent:    intent.Intent,
		UserInput: intent.UserInput,
		Requests:  intent.Devices,
		Entities:  entities,
	}

	if raw, ok := probe["user_query"]; ok && batch.UserInput == "" {
		if err := json.Unmarshal(raw, &batch.UserInput); err != nil {
			return match.Batch{}, fmt.Errorf("%w: 'user_query' must be a string: %v", ErrInvalidShape, err)
		}
	}
	return batch, nil
}

// decodeCommon extracts the shape-independent sections: alias tables and
// configuration overrides.
func decodeCommon(probe map[string]json.RawMessage, batch *match.Batch) error {
	if raw, ok := probe["aliases"]; ok {
		if err := json.Unmarshal(raw, &batch.Aliases); err != nil {
			return fmt.Errorf("%w: 'aliases' malformed: %v", ErrInvalidShape, err)
		}
	}
	if raw, ok := probe["config"]; ok {
		var overrides match.Overrides
		if err := json.Unmarshal(raw, &overrides); err != nil {
			return fmt.Errorf("%w: 'config' malformed: %v", ErrInvalidShape, err)
		}
		batch.Overrides = &overrides
	}
	return nil
}

// requireField checks that an object literally contains a key. Decoding
// alone cannot tell a missing list from an empty one, and a missing
// devices/entities sequence must be a validation error.
func requireField(objectRaw json.RawMessage, key, path string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(objectRaw, &fields); err != nil {
		return fmt.Errorf("%w: '%s' must be an object: %v", ErrInvalidShape, path, err)
	}
	if _, ok := fields[key]; !ok {
		return fmt.Errorf("%w: missing '%s' field", ErrInvalidShape, path)
	}
	return nil
}

func hasKey(probe map[string]json.RawMessage, key string) bool {
	_, ok := probe[key]
	return ok
}
