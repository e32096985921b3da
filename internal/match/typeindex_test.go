package match

import (
	"fmt"
	"testing"
)

func testEntities() []Entity {
	return []Entity{
		{EntityID: "light.living_main", RoomName: "living_room", FloorName: "1"},
		{EntityID: "light.bedroom_main", RoomName: "bedroom", FloorName: "2"},
		{EntityID: "switch.kettle", RoomName: "kitchen", FloorName: "1"},
		{EntityID: "sensor.hall_temp", DeviceType: "temperature", RoomName: "hall", FloorName: "1"},
		{EntityID: "binary_sensor.porch", DeviceType: "motion", RoomName: "porch", FloorName: "1"},
	}
}

func TestTypeIndexLookup(t *testing.T) {
	idx := newTypeIndex(newNormalizer(100), testEntities())

	if got := len(idx.Lookup("light")); got != 2 {
		t.Errorf("Lookup(light) returned %d entities, want 2", got)
	}

	// Explicit device_type distinct from the domain gets its own key.
	if got := len(idx.Lookup("temperature")); got != 1 {
		t.Errorf("Lookup(temperature) returned %d entities, want 1", got)
	}
	if got := len(idx.Lookup("motion")); got != 1 {
		t.Errorf("Lookup(motion) returned %d entities, want 1", got)
	}
	if got := len(idx.Lookup("binary_sensor")); got != 1 {
		t.Errorf("Lookup(binary_sensor) returned %d entities, want 1", got)
	}

	if got := len(idx.Lookup("nonexistent")); got != 0 {
		t.Errorf("Lookup(nonexistent) returned %d entities, want 0", got)
	}
}

func TestCandidatesTypeResolution(t *testing.T) {
	entities := testEntities()
	idx := newTypeIndex(newNormalizer(100), entities)

	tests := []struct {
		name string
		req  DeviceRequest
		want int
	}{
		{"explicit type", DeviceRequest{DeviceType: "light"}, 2},
		{"service domain fallback", DeviceRequest{Service: "switch.turn_on"}, 1},
		{"unknown type falls back to full pool", DeviceRequest{DeviceType: "vacuum"}, len(entities)},
		{"no constraints full pool", DeviceRequest{}, len(entities)},
		{"unknown type with known service domain", DeviceRequest{DeviceType: "bulb", Service: "light.turn_on"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(idx.Candidates(tt.req)); got != tt.want {
				t.Errorf("Candidates() returned %d entities, want %d", got, tt.want)
			}
		})
	}
}

// largePool builds a pool big enough to trigger the staged room and floor
// narrowing.
func largePool(n int) []Entity {
	var pool []Entity
	for i := 0; i < n; i++ {
		room := "hallway"
		floor := "1"
		if i%4 == 0 {
			room = "living_room"
		}
		if i%2 == 0 {
			floor = "2"
		}
		pool = append(pool, Entity{
			EntityID:  fmt.Sprintf("light.unit_%03d", i),
			RoomName:  room,
			FloorName: floor,
		})
	}
	return pool
}

func TestCandidatesNarrowsByRoom(t *testing.T) {
	pool := largePool(80)
	idx := newTypeIndex(newNormalizer(1000), pool)

	got := idx.Candidates(DeviceRequest{DeviceType: "light", RoomName: "living_room"})
	if len(got) != 20 {
		t.Fatalf("narrowed pool = %d entities, want 20", len(got))
	}
	for _, e := range got {
		if e.RoomName != "living_room" {
			t.Errorf("entity %s has room %q after room narrowing", e.EntityID, e.RoomName)
		}
	}
}

func TestCandidatesNarrowsByFloorAfterRoom(t *testing.T) {
	// 200 entities, half in the living room: room narrowing leaves 100,
	// still above the floor limit, so floor narrowing applies too.
	var pool []Entity
	for i := 0; i < 200; i++ {
		room := "hallway"
		if i%2 == 0 {
			room = "living_room"
		}
		floor := "1"
		if i%4 == 0 {
			floor = "2"
		}
		pool = append(pool, Entity{
			EntityID:  fmt.Sprintf("light.unit_%03d", i),
			RoomName:  room,
			FloorName: floor,
		})
	}
	idx := newTypeIndex(newNormalizer(1000), pool)

	got := idx.Candidates(DeviceRequest{DeviceType: "light", RoomName: "living_room", FloorName: "2"})
	if len(got) != 50 {
		t.Fatalf("narrowed pool = %d entities, want 50", len(got))
	}
	for _, e := range got {
		if e.RoomName != "living_room" || e.FloorName != "2" {
			t.Errorf("entity %s room=%q floor=%q escaped narrowing", e.EntityID, e.RoomName, e.FloorName)
		}
	}
}

func TestCandidatesNeverNarrowsToEmpty(t *testing.T) {
	pool := largePool(80)
	idx := newTypeIndex(newNormalizer(1000), pool)

	// No entity is in the garage: room narrowing would empty the pool, so
	// it must be skipped.
	got := idx.Candidates(DeviceRequest{DeviceType: "light", RoomName: "garage"})
	if len(got) == 0 {
		t.Fatal("narrowing produced an empty pool")
	}
	if len(got) != len(pool) {
		t.Errorf("pool = %d entities, want full %d when narrowing cannot apply", len(got), len(pool))
	}
}

func TestCandidatesSmallPoolNotNarrowed(t *testing.T) {
	idx := newTypeIndex(newNormalizer(100), testEntities())

	// Pool of two lights is under every limit; the room mismatch must not
	// shrink it.
	got := idx.Candidates(DeviceRequest{DeviceType: "light", RoomName: "garage"})
	if len(got) != 2 {
		t.Errorf("small pool = %d entities, want 2 (no narrowing below limits)", len(got))
	}
}
