package kommander

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthStatus is the overall bridge health.
type HealthStatus string

// Health states.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published on the health topic.
type HealthMessage struct {
	Instance      string       `json:"instance"`
	Version       string       `json:"version"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Connection    Stats        `json:"connection"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Timestamp     time.Time    `json:"timestamp"`
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// DeviceStats supplies connection statistics. *Manager implements it.
type DeviceStats interface {
	Stats() Stats
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	InstanceID string
	Version    string

	// Interval is how often to publish health status. Default: 30 seconds.
	Interval time.Duration

	// Topic receives the retained health messages.
	Topic string

	// Publisher is optional; without one, health is only computed.
	Publisher HealthPublisher

	// Device provides connection statistics.
	Device DeviceStats
}

// HealthReporter publishes bridge health at regular intervals.
type HealthReporter struct {
	instanceID string
	version    string
	topic      string
	startTime  time.Time
	interval   time.Duration
	publisher  HealthPublisher
	device     DeviceStats

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	started  bool
	startMu  sync.Mutex
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		instanceID: cfg.InstanceID,
		version:    cfg.Version,
		topic:      cfg.Topic,
		startTime:  time.Now(),
		interval:   interval,
		publisher:  cfg.Publisher,
		device:     cfg.Device,
		done:       make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.started {
		return
	}
	h.started = true

	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publish(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.Current()
	return h.publish(status, reason)
}

// Current evaluates bridge health.
func (h *HealthReporter) Current() (HealthStatus, string) {
	if h.publisher != nil && !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.device == nil {
		return HealthDegraded, "no device connection"
	}
	stats := h.device.Stats()
	if stats.Status != StatusConnected {
		reason := "device " + stats.Status.String()
		if stats.StatusMessage != "" {
			reason += ": " + stats.StatusMessage
		}
		return HealthDegraded, reason
	}
	return HealthHealthy, ""
}

// Message builds the health message for a status.
func (h *HealthReporter) Message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Instance:      h.instanceID,
		Version:       h.version,
		Status:        status,
		Reason:        reason,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now().UTC(),
	}
	if h.device != nil {
		msg.Connection = h.device.Stats()
	}
	return msg
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.Message(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
