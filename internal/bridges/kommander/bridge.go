package kommander

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/kommander-bridge/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// actionTimeout bounds handing an MQTT action to the reactor.
	actionTimeout = 5 * time.Second

	// stopTimeout bounds the manager shutdown during Stop.
	stopTimeout = 5 * time.Second
)

// Broadcast channels used for push clients.
const (
	ChannelStatus    = "status"
	ChannelState     = "state"
	ChannelFeedbacks = "feedbacks"
	ChannelVariables = "variables"
)

// Action sources recorded in the audit trail.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// MQTTClient is the interface for MQTT operations.
// This is satisfied by *mqtt.Client and mocked in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	IsConnected() bool
}

// Broadcaster pushes events to connected API clients. It is satisfied by
// the API websocket hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// SubscriptionStore persists subscriptions across restarts.
// This interface is satisfied by *store.Store.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	SaveSubscription(ctx context.Context, sub Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
}

// StatusMessage is published on the status topic and pushed to clients.
type StatusMessage struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackMessage carries the current facet behind one feedback kind.
type FeedbackMessage struct {
	Kind      string    `json:"kind"`
	Facet     Facet     `json:"facet"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// BridgeOptions holds configuration for creating a Bridge.
type BridgeOptions struct {
	// InstanceID names this bridge in MQTT topics and health messages.
	InstanceID string

	// Version is reported in health messages.
	Version string

	// Settings is the initial device connection configuration.
	Settings Settings

	// ToggleEncoding selects how toggle actions are encoded.
	ToggleEncoding ToggleEncoding

	// Dialer opens device transports. Default: &WebsocketDialer{}.
	Dialer Dialer

	// MQTT publishes status, variables and feedbacks and receives actions.
	// Optional.
	MQTT MQTTClient

	// QoS is used for every MQTT publish and subscribe.
	QoS byte

	// Variables stores exported variables. Optional.
	Variables VariableExporter

	// Store persists subscriptions. Optional.
	Store SubscriptionStore

	// Observers are told about every facet change. Optional.
	Observers []StateObserver

	// Metrics records session counters. Optional.
	Metrics MetricsRecorder

	// Audit records every action invocation. Optional.
	Audit ActionRecorder

	// Broadcaster pushes status, state and feedback events. Optional.
	Broadcaster Broadcaster

	// HealthInterval is how often health is published. Default: 30 seconds.
	HealthInterval time.Duration

	// Clock schedules reconnects. Default: the system clock.
	Clock Clock

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge runs one Kommander device connection and adapts it to MQTT, the
// API and persistence.
//
// It handles:
//   - Connection status reporting to MQTT and push clients
//   - Exporting variables and feedback states to MQTT
//   - Translating MQTT action messages into device commands
//   - Persisting subscriptions and fanning out facet changes
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	instanceID  string
	settings    Settings
	qos         byte
	topics      mqtt.Topics
	catalog     *Catalog
	cache       *StateCache
	registry    *Registry
	router      *Router
	manager     *Manager
	health      *HealthReporter
	mqtt        MQTTClient
	publisher   *publisher
	variables   VariableExporter
	store       SubscriptionStore
	observers   []StateObserver
	broadcaster Broadcaster
	audit       ActionRecorder

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	runErr    chan error
	startOnce sync.Once
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to connect.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.InstanceID == "" {
		return nil, fmt.Errorf("instance id is required")
	}

	enc := opts.ToggleEncoding
	if enc == "" {
		enc = ToggleImplicit
	}

	b := &Bridge{
		instanceID:  opts.InstanceID,
		settings:    opts.Settings,
		qos:         opts.QoS,
		topics:      mqtt.Topics{Instance: opts.InstanceID},
		catalog:     NewCatalog(enc),
		cache:       NewStateCache(),
		registry:    NewRegistry(),
		mqtt:        opts.MQTT,
		variables:   opts.Variables,
		store:       opts.Store,
		observers:   opts.Observers,
		broadcaster: opts.Broadcaster,
		audit:       opts.Audit,
		runErr:      make(chan error, 1),
		logger:      opts.Logger,
	}

	router, err := NewRouter(RouterOptions{
		Cache:     b.cache,
		Registry:  b.registry,
		Variables: b,
		Feedbacks: b,
		Observer:  b,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	b.router = router

	if opts.MQTT != nil {
		b.publisher = newPublisher(opts.MQTT, opts.QoS)
		b.publisher.logDebug = b.logDebug
		b.publisher.logWarn = b.logWarn
	}

	manager, err := NewManager(ManagerOptions{
		Dialer:    opts.Dialer,
		Router:    router,
		Registry:  b.registry,
		Status:    b,
		Variables: b,
		Metrics:   opts.Metrics,
		Clock:     opts.Clock,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	b.manager = manager

	var publisher HealthPublisher
	if opts.MQTT != nil {
		publisher = opts.MQTT
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		InstanceID: opts.InstanceID,
		Version:    opts.Version,
		Interval:   opts.HealthInterval,
		Topic:      b.topics.Health(),
		Publisher:  publisher,
		Device:     manager,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start loads persisted subscriptions, starts the connection manager,
// subscribes to MQTT actions and applies the initial settings.
func (b *Bridge) Start(ctx context.Context) error {
	started := false
	b.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("bridge already started")
	}

	b.ctx, b.ctxCancel = context.WithCancel(context.Background())

	b.loadSubscriptions(ctx)

	go func() {
		b.runErr <- b.manager.Run(b.ctx)
	}()

	if b.mqtt != nil {
		b.publisher.start()
		if err := b.health.PublishStarting(); err != nil {
			b.logError("failed to publish starting status", err)
		}
		topic := b.topics.AllActions()
		if err := b.mqtt.Subscribe(topic, b.qos, b.handleAction); err != nil {
			b.ctxCancel()
			return fmt.Errorf("subscribe to actions: %w", err)
		}
		b.logInfo("subscribed to actions", "topic", topic)
	}

	if err := b.manager.Configure(ctx, b.settings); err != nil {
		b.ctxCancel()
		return fmt.Errorf("configuring connection: %w", err)
	}

	b.health.Start(b.ctx)

	b.logInfo("bridge started",
		"instance_id", b.instanceID,
		"subscriptions", b.registry.Len())
	return nil
}

// Stop closes the device connection and stops health reporting. Safe to
// call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.ctxCancel == nil {
			return
		}

		b.health.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := b.manager.Shutdown(ctx); err != nil {
			b.logError("manager shutdown", err)
		}
		b.ctxCancel()

		select {
		case <-b.manager.Done():
		case <-ctx.Done():
			b.logError("manager did not stop", ctx.Err())
		}
		if b.publisher != nil {
			b.publisher.close()
		}

		b.logInfo("bridge stopped")
	})
}

// Wait returns the connection manager's exit error once it has stopped.
func (b *Bridge) Wait() error {
	return <-b.runErr
}

// loadSubscriptions seeds the registry from the store. Invalid rows are
// logged and skipped.
func (b *Bridge) loadSubscriptions(ctx context.Context) {
	if b.store == nil {
		return
	}
	subs, err := b.store.ListSubscriptions(ctx)
	if err != nil {
		b.logError("failed to load subscriptions", err)
		return
	}
	for _, sub := range subs {
		if err := b.registry.Add(sub); err != nil {
			b.logError("skipping stored subscription", fmt.Errorf("%s: %w", sub.ID, err))
		}
	}
}

// Configure applies new connection settings.
func (b *Bridge) Configure(ctx context.Context, s Settings) error {
	return b.manager.Configure(ctx, s)
}

// Send writes a command to the device. See Manager.Send.
func (b *Bridge) Send(ctx context.Context, cmd Command) error {
	return b.manager.Send(ctx, cmd)
}

// ExecuteAction encodes a catalog action and sends it. The invocation is
// audited with SourceAPI.
func (b *Bridge) ExecuteAction(ctx context.Context, id string, opts Options) (Command, error) {
	return b.execute(ctx, SourceAPI, id, opts)
}

func (b *Bridge) execute(ctx context.Context, source, id string, opts Options) (Command, error) {
	cmd, err := b.catalog.Encode(id, opts)
	if err == nil {
		err = b.manager.Send(ctx, cmd)
	}
	b.recordAction(ctx, ActionRecord{Source: source, Action: id, Options: opts, Command: cmd, Err: err})
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (b *Bridge) recordAction(ctx context.Context, rec ActionRecord) {
	if b.audit == nil {
		return
	}
	if rec.Err != nil {
		rec.Command = Command{}
	}
	rec.At = time.Now()
	b.audit.ActionExecuted(ctx, rec)
}

// AddSubscription registers and persists a subscription. An empty ID is
// replaced with a generated one. When the store rejects it the registry
// is restored to what it held before the call.
func (b *Bridge) AddSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	prev, replaced := b.registry.Get(sub.ID)
	if err := b.manager.Subscribe(ctx, sub); err != nil {
		return Subscription{}, err
	}
	if b.store != nil {
		if err := b.store.SaveSubscription(ctx, sub); err != nil {
			b.rollbackSubscription(ctx, sub.ID, prev, replaced)
			return Subscription{}, fmt.Errorf("persisting subscription: %w", err)
		}
	}
	return sub, nil
}

func (b *Bridge) rollbackSubscription(ctx context.Context, id string, prev Subscription, replaced bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), actionTimeout)
	defer cancel()

	var err error
	if replaced {
		err = b.manager.Subscribe(ctx, prev)
	} else {
		err = b.manager.Unsubscribe(ctx, id)
	}
	if err != nil {
		b.logError("rolling back subscription", fmt.Errorf("%s: %w", id, err))
	}
}

// RemoveSubscription unregisters and forgets a subscription.
func (b *Bridge) RemoveSubscription(ctx context.Context, id string) error {
	if err := b.manager.Unsubscribe(ctx, id); err != nil {
		return err
	}
	if b.store != nil {
		if err := b.store.DeleteSubscription(ctx, id); err != nil {
			return fmt.Errorf("forgetting subscription: %w", err)
		}
	}
	return nil
}

// Subscriptions returns the registered subscriptions in ID order.
func (b *Bridge) Subscriptions() []Subscription {
	return b.registry.List()
}

// Evaluate answers a feedback predicate from cached state.
func (b *Bridge) Evaluate(kind, option string) (bool, error) {
	return b.cache.Evaluate(kind, option)
}

// State returns a copy of every cached facet.
func (b *Bridge) State() map[Facet]any {
	return b.cache.Snapshot()
}

// Catalog returns the action catalog.
func (b *Bridge) Catalog() *Catalog {
	return b.catalog
}

// Status returns the connection status and its message.
func (b *Bridge) Status() (Status, string) {
	return b.manager.Status()
}

// Stats returns connection statistics.
func (b *Bridge) Stats() Stats {
	return b.manager.Stats()
}

// Settings returns the last applied connection settings.
func (b *Bridge) Settings() Settings {
	return b.manager.Settings()
}

// Health returns the current health message.
func (b *Bridge) Health() HealthMessage {
	status, reason := b.health.Current()
	return b.health.Message(status, reason)
}

// UpdateStatus implements StatusReporter.
func (b *Bridge) UpdateStatus(status Status, message string) {
	b.logInfo("connection status", "status", status.String(), "message", message)

	msg := StatusMessage{
		Status:    status,
		Message:   message,
		Address:   b.manager.Settings().URL,
		Timestamp: time.Now().UTC(),
	}
	b.publishJSON(b.topics.Status(), msg)
	if b.broadcaster != nil {
		b.broadcaster.Broadcast(ChannelStatus, msg)
	}
}

// SetVariableDefinitions implements VariableExporter.
func (b *Bridge) SetVariableDefinitions(names []string) {
	if b.variables != nil {
		b.variables.SetVariableDefinitions(names)
	}
}

// SetVariableValues implements VariableExporter. Values are stored and
// republished as retained text on their variable topics.
func (b *Bridge) SetVariableValues(values map[string]string) {
	if b.variables != nil {
		b.variables.SetVariableValues(values)
	}
	if b.publisher == nil {
		return
	}
	for name, value := range values {
		b.publisher.enqueue(b.topics.Variable(name), []byte(value))
	}
}

// CheckFeedbacks implements FeedbackChecker by publishing the facet behind
// each kind.
func (b *Bridge) CheckFeedbacks(kinds ...string) {
	now := time.Now().UTC()
	for _, kind := range kinds {
		def, ok := LookupFeedback(kind)
		if !ok {
			continue
		}
		msg := FeedbackMessage{
			Kind:      kind,
			Facet:     def.Facet,
			Value:     b.cache.Get(def.Facet),
			Timestamp: now,
		}
		b.publishJSON(b.topics.Feedback(kind), msg)
		if b.broadcaster != nil {
			b.broadcaster.Broadcast(ChannelFeedbacks, msg)
		}
	}
}

// FacetChanged implements StateObserver by forwarding to the configured
// observers and push clients.
func (b *Bridge) FacetChanged(change FacetChange) {
	for _, o := range b.observers {
		o.FacetChanged(change)
	}
	if b.broadcaster != nil {
		b.broadcaster.Broadcast(ChannelState, change)
	}
}

// handleAction runs an action received on kommander/{instance}/action/{id}.
// The payload is a JSON object of option values; an empty payload uses
// the defaults.
func (b *Bridge) handleAction(topic string, payload []byte) error {
	id, ok := b.topics.ActionFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownAction, topic)
	}

	opts := Options{}
	if len(bytes.TrimSpace(payload)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&opts); err != nil {
			err = fmt.Errorf("%w: action %s options: %w", ErrInvalidParameter, id, err)
			b.recordAction(b.ctx, ActionRecord{Source: SourceMQTT, Action: id, Err: err})
			return err
		}
	}

	ctx, cancel := context.WithTimeout(b.ctx, actionTimeout)
	defer cancel()

	cmd, err := b.execute(ctx, SourceMQTT, id, opts)
	if err != nil {
		return err
	}
	b.logDebug("action executed", "action", id, "command", cmd.Tag)
	return nil
}

// publishJSON queues a retained JSON message if MQTT is configured.
func (b *Bridge) publishJSON(topic string, v any) {
	if b.publisher == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return
	}
	b.publisher.enqueue(topic, payload)
}

// SetLogger sets the logger for the bridge and its components.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.router.SetLogger(logger)
	b.manager.SetLogger(logger)
	b.health.SetLogger(logger)
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
