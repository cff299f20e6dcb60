package mqtt

import (
	"strings"
	"testing"

	"github.com/verdantops/canopy-core/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"poll outcome", topics.PollOutcome("ctl-a1b2"), "canopy/controller/ctl-a1b2/poll"},
		{"workflow run", topics.WorkflowRun("wf-9f8e"), "canopy/workflow/wf-9f8e/run"},
		{"sunlight run", topics.SunlightRun(), "canopy/sunlight/run"},
		{"job summary", topics.JobSummary("poll"), "canopy/job/poll/summary"},
		{"system status", topics.SystemStatus(), "canopy/system/status"},
		{"all topics", topics.AllTopics(), "canopy/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			TLS:      true,
			ClientID: "canopy-test",
		},
		Auth: config.MQTTAuthConfig{Username: "user", Password: "pass"},
		QoS:  1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("broker URL = %q, want ssl://broker.local:8883", got)
	}
	if opts.ClientID != "canopy-test" {
		t.Errorf("client ID = %q", opts.ClientID)
	}
	if opts.Username != "user" {
		t.Errorf("username = %q", opts.Username)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config not set despite TLS enabled")
	}
}

func TestBuildClientOptions_NoTLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "c"},
	}

	opts := buildClientOptions(cfg)
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("broker URL = %q, want tcp://localhost:1883", got)
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "canopy-test"},
	}
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if opts.WillTopic != "canopy/system/status" {
		t.Errorf("will topic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("will message should be retained")
	}
	payload := string(opts.WillPayload)
	if !strings.Contains(payload, `"status":"offline"`) {
		t.Errorf("will payload missing offline status: %s", payload)
	}
	if !strings.Contains(payload, "unexpected_disconnect") {
		t.Errorf("will payload missing reason: %s", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("canopy-test")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "canopy-test") {
		t.Errorf("online payload malformed: %s", online)
	}

	offline := buildOfflinePayload("canopy-test")
	if !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload malformed: %s", offline)
	}
}

func TestPublish_Validation(t *testing.T) {
	// A zero-value client is never connected; validation errors fire
	// before any network access.
	c := &Client{}

	if err := c.Publish("", []byte("x"), 0, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("canopy/test", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("bad QoS: got %v, want ErrInvalidQoS", err)
	}
}
