package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hearthwise/voicematch/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "voicematch-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// newDisconnectedClient builds a Client that has never connected.
// Lets validation paths be tested without a running broker.
func newDisconnectedClient() *Client {
	cfg := testConfig()
	opts := buildClientOptions(cfg)
	return &Client{
		cfg:           cfg,
		options:       opts,
		client:        pahomqtt.NewClient(opts),
		subscriptions: make(map[string]subscription),
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"match request", Topics{}.MatchRequest(), "voicematch/match/request"},
		{"match result", Topics{}.MatchResult(), "voicematch/match/result"},
		{"system status", Topics{}.SystemStatus(), "voicematch/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayload(t *testing.T) {
	var msg struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason"`
		Timestamp string `json:"timestamp"`
	}

	payload := statusPayload("offline", "voicematch-test", "graceful_shutdown")
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("statusPayload produced invalid JSON: %v", err)
	}
	if msg.Status != "offline" || msg.ClientID != "voicematch-test" || msg.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("payload missing timestamp")
	}

	// Online payloads carry no reason field.
	online := statusPayload("online", "voicematch-test", "")
	if strings.Contains(online, "reason") {
		t.Errorf("online payload should omit reason: %s", online)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", Topics{}.MatchResult(), []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", Topics{}.MatchResult(), make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", Topics{}.MatchResult(), []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()
	handler := func(topic string, payload []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe(Topics{}.MatchRequest(), 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe(Topics{}.MatchRequest(), 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe(Topics{}.MatchRequest(), 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := newDisconnectedClient()
	topic := Topics{}.MatchRequest()

	c.subscriptions[topic] = subscription{topic: topic, qos: 1}
	if !c.HasSubscription(topic) {
		t.Error("HasSubscription() = false after tracking")
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}

	c.dropSubscription(topic)
	if c.HasSubscription(topic) {
		t.Error("HasSubscription() = true after drop")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := newDisconnectedClient()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelledContext(t *testing.T) {
	c := newDisconnectedClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}
