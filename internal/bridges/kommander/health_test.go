package kommander

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type staticStats Stats

func (s staticStats) Stats() Stats { return Stats(s) }

func TestHealthReporter_Current(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		device     DeviceStats
		wantStatus HealthStatus
		wantReason string
	}{
		{
			name:       "healthy",
			connected:  true,
			device:     staticStats{Status: StatusConnected},
			wantStatus: HealthHealthy,
		},
		{
			name:       "mqtt down",
			connected:  false,
			device:     staticStats{Status: StatusConnected},
			wantStatus: HealthDegraded,
			wantReason: "MQTT disconnected",
		},
		{
			name:       "no device",
			connected:  true,
			wantStatus: HealthDegraded,
			wantReason: "no device connection",
		},
		{
			name:       "device closed",
			connected:  true,
			device:     staticStats{Status: StatusDisconnected, StatusMessage: "Connection closed with code 1006"},
			wantStatus: HealthDegraded,
			wantReason: "device disconnected: Connection closed with code 1006",
		},
		{
			name:       "bad config",
			connected:  true,
			device:     staticStats{Status: StatusBadConfig},
			wantStatus: HealthDegraded,
			wantReason: "device bad_config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := newMockMQTT()
			pub.connected = tt.connected

			h := NewHealthReporter(HealthReporterConfig{
				InstanceID: testInstance,
				Topic:      "kommander/test-01/health",
				Publisher:  pub,
				Device:     tt.device,
			})

			status, reason := h.Current()
			if status != tt.wantStatus || reason != tt.wantReason {
				t.Errorf("Current() = %s %q, want %s %q", status, reason, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func TestHealthReporter_PublishLoop(t *testing.T) {
	pub := newMockMQTT()
	h := NewHealthReporter(HealthReporterConfig{
		InstanceID: testInstance,
		Version:    "1.2.3",
		Interval:   10 * time.Millisecond,
		Topic:      "kommander/test-01/health",
		Publisher:  pub,
		Device:     staticStats{Status: StatusConnected, Address: "ws://10.0.0.1"},
	})

	h.Start(context.Background())
	h.Start(context.Background())
	waitUntil(t, "periodic health", func() bool {
		return len(pub.onTopic("kommander/test-01/health")) >= 3
	})
	h.Stop()
	h.Stop()

	msgs := pub.onTopic("kommander/test-01/health")
	for _, m := range msgs {
		if m.qos != 1 || !m.retained {
			t.Fatalf("health published qos=%d retained=%v", m.qos, m.retained)
		}
	}

	var first, last HealthMessage
	if err := json.Unmarshal(msgs[0].payload, &first); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if err := json.Unmarshal(msgs[len(msgs)-1].payload, &last); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if first.Status != HealthHealthy || first.Version != "1.2.3" || first.Connection.Address != "ws://10.0.0.1" {
		t.Errorf("first health = %+v", first)
	}
	if last.Status != HealthStopping {
		t.Errorf("last health = %s, want stopping", last.Status)
	}

	// Nothing more is published once stopped.
	count := len(pub.onTopic("kommander/test-01/health"))
	time.Sleep(30 * time.Millisecond)
	if after := len(pub.onTopic("kommander/test-01/health")); after != count {
		t.Errorf("published %d messages after Stop", after-count)
	}
}

func TestHealthReporter_WithoutPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{InstanceID: testInstance})

	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() error = %v", err)
	}
	if err := h.PublishStarting(); err != nil {
		t.Errorf("PublishStarting() error = %v", err)
	}
	msg := h.Message(HealthDegraded, "testing")
	if msg.Instance != testInstance || msg.Reason != "testing" || msg.Timestamp.IsZero() {
		t.Errorf("Message() = %+v", msg)
	}
}
