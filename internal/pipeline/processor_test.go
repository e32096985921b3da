package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hearthwise/voicematch/internal/advisor"
	"github.com/hearthwise/voicematch/internal/audit"
	"github.com/hearthwise/voicematch/internal/infrastructure/influxdb"
	"github.com/hearthwise/voicematch/internal/match"
)

type stubAdviser struct {
	enabled bool
	advice  advisor.Advice
	err     error
	calls   int
}

func (s *stubAdviser) Enabled() bool { return s.enabled }

func (s *stubAdviser) Advise(_ context.Context, _ string, _ []match.DeviceRequest, _ []match.Entity) (advisor.Advice, error) {
	s.calls++
	return s.advice, s.err
}

type stubAuditor struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (s *stubAuditor) Create(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *stubAuditor) Recent(_ context.Context, _ int) ([]audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, nil
}

type stubTelemetry struct {
	metrics []influxdb.BatchMetrics
}

func (s *stubTelemetry) WriteBatchMetrics(m influxdb.BatchMetrics) {
	s.metrics = append(s.metrics, m)
}

type stubBroadcaster struct {
	payloads [][]byte
}

func (s *stubBroadcaster) Broadcast(payload []byte) {
	s.payloads = append(s.payloads, payload)
}

func testPool() []match.Entity {
	return []match.Entity{
		{
			EntityID:   "light.living_lamp",
			DeviceType: "light",
			DeviceName: "lamp",
			RoomName:   "living_room",
			FloorName:  "1",
		},
		{
			EntityID:   "light.bedroom_lamp",
			DeviceType: "light",
			DeviceName: "lamp",
			RoomName:   "bedroom",
			FloorName:  "1",
		},
	}
}

func matchingBatch() match.Batch {
	return match.Batch{
		Intent:    "Best Match",
		UserInput: "turn on the living room lamp",
		Requests: []match.DeviceRequest{
			{RoomName: "living_room", DeviceName: "lamp", DeviceType: "light"},
		},
		Entities: testPool(),
	}
}

func missBatch() match.Batch {
	return match.Batch{
		Intent:    "Best Match",
		UserInput: "turn on the salon lamp",
		Requests: []match.DeviceRequest{
			{RoomName: "garage", DeviceName: "disco ball", DeviceType: "light"},
		},
		Entities: testPool(),
	}
}

func TestProcessDecodesAndMatches(t *testing.T) {
	p := NewProcessor(match.New(match.DefaultOptions()))

	raw := []byte(`{
		"intent": "Best Match",
		"user_input": "turn on the living room lamp",
		"devices": [{"room_name": "living_room", "device_name": "lamp", "device_type": "light"}],
		"entities": [
			{"entity_id": "light.living_lamp", "device_type": "light", "device_name": "lamp", "room_name": "living_room", "floor_name": "1"}
		]
	}`)

	result, err := p.Process(context.Background(), "http", raw)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(result.Actions))
	}
	if len(result.Actions[0].Targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(result.Actions[0].Targets))
	}
	if got := result.Actions[0].Targets[0].EntityID; got != "light.living_lamp" {
		t.Errorf("target = %q, want light.living_lamp", got)
	}
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	p := NewProcessor(match.New(match.DefaultOptions()))

	_, err := p.Process(context.Background(), "http", []byte(`{"unrelated": true}`))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Process() error = %v, want ErrDecode", err)
	}
}

func TestEscalationOnlyForEmptyActions(t *testing.T) {
	adv := &stubAdviser{
		enabled: true,
		advice: advisor.Advice{
			Reason:      "no entity in the garage",
			Suggestions: []string{"living room lamp"},
		},
	}
	p := NewProcessor(match.New(match.DefaultOptions()), WithAdviser(adv))

	// A resolving batch must not trigger the advisor.
	result := p.ProcessBatch(context.Background(), "cli", matchingBatch())
	if adv.calls != 0 {
		t.Errorf("advisor called %d times for a resolving batch, want 0", adv.calls)
	}
	if result.Actions[0].AdvisorReason != "" {
		t.Error("resolving action should carry no advisor reason")
	}

	// A miss escalates and attaches the advice.
	result = p.ProcessBatch(context.Background(), "cli", missBatch())
	if adv.calls != 1 {
		t.Fatalf("advisor called %d times for a miss, want 1", adv.calls)
	}
	action := result.Actions[0]
	if action.AdvisorReason != "no entity in the garage" {
		t.Errorf("AdvisorReason = %q", action.AdvisorReason)
	}
	if len(action.AdvisorSuggestions) != 1 || action.AdvisorSuggestions[0] != "living room lamp" {
		t.Errorf("AdvisorSuggestions = %v", action.AdvisorSuggestions)
	}
}

func TestEscalationSkippedWithoutUserInput(t *testing.T) {
	adv := &stubAdviser{enabled: true}
	p := NewProcessor(match.New(match.DefaultOptions()), WithAdviser(adv))

	batch := missBatch()
	batch.UserInput = ""
	p.ProcessBatch(context.Background(), "cli", batch)

	if adv.calls != 0 {
		t.Errorf("advisor called %d times without user input, want 0", adv.calls)
	}
}

func TestAdvisorFailureDoesNotFailBatch(t *testing.T) {
	adv := &stubAdviser{enabled: true, err: errors.New("rate limited")}
	p := NewProcessor(match.New(match.DefaultOptions()), WithAdviser(adv))

	result := p.ProcessBatch(context.Background(), "cli", missBatch())
	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(result.Actions))
	}
	if result.Actions[0].AdvisorReason != "" {
		t.Error("failed escalation should leave the action untouched")
	}
}

func TestLearnedAliasesApplyToLaterBatches(t *testing.T) {
	adv := &stubAdviser{
		enabled: true,
		advice: advisor.Advice{
			Reason: "salon is the living room",
			NewAliases: map[match.AliasClass]map[string]string{
				match.AliasRooms: {"salon": "living_room"},
			},
		},
	}
	p := NewProcessor(match.New(match.DefaultOptions()), WithAdviser(adv))

	// First batch misses; the advisor teaches salon -> living_room.
	first := missBatch()
	first.Aliases = match.Aliases{Rooms: map[string][]string{"living_room": {"lounge"}}}
	p.ProcessBatch(context.Background(), "cli", first)

	if p.LearnedAliasCount() != 1 {
		t.Fatalf("LearnedAliasCount() = %d, want 1", p.LearnedAliasCount())
	}

	// Second batch asks for the salon and now resolves.
	second := match.Batch{
		UserInput: "turn on the salon lamp",
		Requests: []match.DeviceRequest{
			{RoomName: "salon", DeviceName: "lamp", DeviceType: "light"},
		},
		Entities: testPool(),
		Aliases:  match.Aliases{Rooms: map[string][]string{"living_room": {"lounge"}}},
	}
	result := p.ProcessBatch(context.Background(), "cli", second)

	targets := result.Actions[0].Targets
	if len(targets) != 1 || targets[0].EntityID != "light.living_lamp" {
		t.Fatalf("learned alias did not resolve: targets = %+v", targets)
	}

	// The caller's alias table must not be mutated.
	if _, ok := second.Aliases.Rooms["salon"]; ok {
		t.Error("caller alias table was mutated")
	}
}

func TestAuditAndTelemetryRecorded(t *testing.T) {
	auditor := &stubAuditor{}
	telemetry := &stubTelemetry{}
	p := NewProcessor(match.New(match.DefaultOptions()),
		WithAuditor(auditor),
		WithTelemetry(telemetry),
	)

	p.ProcessBatch(context.Background(), "mqtt", matchingBatch())

	if len(auditor.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(auditor.records))
	}
	rec := auditor.records[0]
	if rec.Intent != "Best Match" || rec.RequestCount != 1 || rec.TargetCount != 1 {
		t.Errorf("audit record = %+v", rec)
	}

	if len(telemetry.metrics) != 1 {
		t.Fatalf("got %d metrics, want 1", len(telemetry.metrics))
	}
	m := telemetry.metrics[0]
	if m.Source != "mqtt" || m.TargetCount != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if m.TopScore <= 0 || m.TopScore > 2 {
		t.Errorf("TopScore = %v, want a positive score", m.TopScore)
	}
}

func TestAuditFailureDoesNotFailBatch(t *testing.T) {
	auditor := &stubAuditor{err: errors.New("disk full")}
	p := NewProcessor(match.New(match.DefaultOptions()), WithAuditor(auditor))

	result := p.ProcessBatch(context.Background(), "http", matchingBatch())
	if len(result.Actions) != 1 {
		t.Error("audit failure must not affect the result")
	}
}

func TestBroadcastCarriesResult(t *testing.T) {
	b := &stubBroadcaster{}
	p := NewProcessor(match.New(match.DefaultOptions()), WithBroadcaster(b))

	p.ProcessBatch(context.Background(), "http", matchingBatch())

	if len(b.payloads) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(b.payloads))
	}
	var decoded match.Result
	if err := json.Unmarshal(b.payloads[0], &decoded); err != nil {
		t.Fatalf("broadcast payload is not valid JSON: %v", err)
	}
	if decoded.Intent != "Best Match" {
		t.Errorf("broadcast intent = %q", decoded.Intent)
	}
}
