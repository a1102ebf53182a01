package kommander

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ReconnectDelay is the fixed delay between a lost connection and the next
// attempt. There is no backoff and no retry limit.
const ReconnectDelay = 5 * time.Second

// eventQueueSize is the buffer of the reactor's event channel.
const eventQueueSize = 64

// Status is the connection status shown to the operator.
type Status int

// Connection statuses.
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusBadConfig
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusBadConfig:
		return "bad_config"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disconnected":
		*s = StatusDisconnected
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	case "bad_config":
		*s = StatusBadConfig
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidParameter, text)
	}
	return nil
}

// Settings is the operator configuration of the device connection.
type Settings struct {
	// URL is the device websocket address (ws:// or wss://).
	URL string `json:"url"`

	// Reconnect enables the 5 second reconnect timer.
	Reconnect bool `json:"reconnect"`

	// DebugMessages logs every frame sent and received.
	DebugMessages bool `json:"debug_messages"`

	// ResetVariables clears exported variables on connect and when a
	// subscription is added.
	ResetVariables bool `json:"reset_variables"`
}

// Stats holds operational statistics.
type Stats struct {
	MessagesTx          uint64    `json:"messages_tx"`
	MessagesRx          uint64    `json:"messages_rx"`
	CommandsDropped     uint64    `json:"commands_dropped"`
	ErrorsTotal         uint64    `json:"errors_total"`
	ReconnectsScheduled uint64    `json:"reconnects_scheduled"`
	ConnectsTotal       uint64    `json:"connects_total"`
	LastActivity        time.Time `json:"last_activity"`
	Status              Status    `json:"status"`
	StatusMessage       string    `json:"status_message,omitempty"`
	Address             string    `json:"address"`
}

// ManagerOptions holds the collaborators of a Manager.
type ManagerOptions struct {
	// Dialer opens transports. Default: &WebsocketDialer{}.
	Dialer Dialer

	// Router handles inbound messages. Required.
	Router *Router

	// Registry holds subscriptions. Required; normally the router's registry.
	Registry *Registry

	// Status receives status changes. Optional.
	Status StatusReporter

	// Variables receives variable definitions and resets. Optional.
	Variables VariableExporter

	// Metrics records session counters. Optional.
	Metrics MetricsRecorder

	// Clock schedules reconnects. Default: the system clock.
	Clock Clock

	// Logger is optional structured logger.
	Logger Logger
}

type eventKind int

const (
	evCall eventKind = iota
	evOpened
	evDialFailed
	evMessage
	evReadError
	evTimer
)

// event is one unit of work for the reactor. Transport events carry the
// connection generation they belong to; events from older generations are
// ignored.
type event struct {
	kind  eventKind
	gen   uint64
	conn  Conn
	data  []byte
	err   error
	fn    func() error
	reply chan error
}

// Manager owns the single device connection.
//
// All connection state lives on one reactor goroutine started by Run.
// Public methods post work to the reactor and wait for it, so the
// connection, the reconnect timer and subscription resyncs never race.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	dialer    Dialer
	router    *Router
	registry  *Registry
	reporter  StatusReporter
	variables VariableExporter
	metrics   MetricsRecorder
	clock     Clock

	events  chan event
	done    chan struct{}
	started atomic.Bool

	// Reactor-owned state.
	runCtx     context.Context
	settings   Settings
	active     bool
	stopping   bool
	conn       Conn
	connGen    uint64
	dialCancel context.CancelFunc
	timer      Timer
	timerGen   uint64

	// Snapshot for readers outside the reactor.
	snapMu    sync.RWMutex
	status    Status
	statusMsg string
	snapshot  Settings

	messagesTx   atomic.Uint64
	messagesRx   atomic.Uint64
	dropped      atomic.Uint64
	errorsTotal  atomic.Uint64
	reconnects   atomic.Uint64
	connects     atomic.Uint64
	lastActivity atomic.Int64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewManager creates a connection manager. Call Run to start its reactor,
// then Configure to connect.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("subscription registry is required")
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &WebsocketDialer{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}

	return &Manager{
		dialer:    dialer,
		router:    opts.Router,
		registry:  opts.Registry,
		reporter:  opts.Status,
		variables: opts.Variables,
		metrics:   opts.Metrics,
		clock:     clock,
		events:    make(chan event, eventQueueSize),
		done:      make(chan struct{}),
		status:    StatusDisconnected,
		logger:    opts.Logger,
	}, nil
}

// Run processes events until Shutdown is called or ctx is cancelled. On
// return the transport is closed and no reconnect is pending.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("connection manager already running")
	}
	defer close(m.done)

	m.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case ev := <-m.events:
			m.handle(ev)
			if m.stopping {
				return nil
			}
		}
	}
}

// Configure applies new settings. An address that does not match the
// ws/wss pattern tears down any connection and leaves the manager in
// StatusBadConfig until it is reconfigured; this is reported through the
// status, not as an error.
func (m *Manager) Configure(ctx context.Context, s Settings) error {
	return m.call(ctx, func() error {
		m.configure(s)
		return nil
	})
}

// Send writes a command on the live transport. While disconnected the
// command is dropped and nil is returned; write failures are logged, not
// returned. Errors are only returned when the manager has stopped or ctx
// ends before the reactor accepts the command.
func (m *Manager) Send(ctx context.Context, cmd Command) error {
	return m.call(ctx, func() error {
		m.send(cmd)
		return nil
	})
}

// Subscribe registers a subscription. Once configured, the variable
// definitions are refreshed and, with ResetVariables, the new
// subscription's variable is cleared.
func (m *Manager) Subscribe(ctx context.Context, sub Subscription) error {
	return m.call(ctx, func() error {
		if err := m.registry.Add(sub); err != nil {
			return err
		}
		if m.active {
			m.updateVariables(sub.ID)
		}
		return nil
	})
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(ctx context.Context, id string) error {
	return m.call(ctx, func() error {
		if !m.registry.Remove(id) {
			return fmt.Errorf("%w: %q", ErrSubscriptionNotFound, id)
		}
		return nil
	})
}

// Shutdown deactivates the manager, cancels any pending reconnect, closes
// the transport with a normal-closure code and stops the reactor.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.call(ctx, func() error {
		m.shutdown()
		return nil
	})
	if errors.Is(err, ErrManagerStopped) {
		return nil
	}
	return err
}

// Done is closed when the reactor has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Status returns the current status and its message.
func (m *Manager) Status() (Status, string) {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.status, m.statusMsg
}

// IsConnected returns true while the device transport is open.
func (m *Manager) IsConnected() bool {
	s, _ := m.Status()
	return s == StatusConnected
}

// Settings returns the last applied settings.
func (m *Manager) Settings() Settings {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapshot
}

// Stats returns current operational statistics.
func (m *Manager) Stats() Stats {
	status, msg := m.Status()
	var last time.Time
	if ts := m.lastActivity.Load(); ts != 0 {
		last = time.Unix(0, ts)
	}
	return Stats{
		MessagesTx:          m.messagesTx.Load(),
		MessagesRx:          m.messagesRx.Load(),
		CommandsDropped:     m.dropped.Load(),
		ErrorsTotal:         m.errorsTotal.Load(),
		ReconnectsScheduled: m.reconnects.Load(),
		ConnectsTotal:       m.connects.Load(),
		LastActivity:        last,
		Status:              status,
		StatusMessage:       msg,
		Address:             m.Settings().URL,
	}
}

// SetLogger sets the logger for this manager.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// call runs fn on the reactor and waits for its result.
func (m *Manager) call(ctx context.Context, fn func() error) error {
	ev := event{kind: evCall, fn: fn, reply: make(chan error, 1)}

	select {
	case m.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrManagerStopped
	}

	select {
	case err := <-ev.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		select {
		case err := <-ev.reply:
			return err
		default:
			return ErrManagerStopped
		}
	}
}

// post hands an event from a transport or timer goroutine to the reactor.
// It reports false if the reactor has exited.
func (m *Manager) post(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

// handle dispatches one event on the reactor.
func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evCall:
		ev.reply <- ev.fn()

	case evOpened:
		m.handleOpened(ev)

	case evDialFailed:
		if ev.gen != m.connGen {
			return
		}
		if m.dialCancel != nil {
			m.dialCancel()
			m.dialCancel = nil
		}
		m.errorsTotal.Add(1)
		m.logError("websocket error", ev.err)
		m.handleClosed(ev.gen, CloseAbnormal)

	case evMessage:
		if ev.gen != m.connGen {
			return
		}
		m.handleMessage(ev.data)

	case evReadError:
		if ev.gen != m.connGen {
			return
		}
		code := closeCode(ev.err)
		if code == CloseAbnormal {
			m.errorsTotal.Add(1)
			m.logError("websocket error", fmt.Errorf("%w: %w", ErrTransport, ev.err))
		}
		m.handleClosed(ev.gen, code)

	case evTimer:
		if ev.gen != m.timerGen || m.timer == nil || !m.active {
			return
		}
		m.timer = nil
		m.open()
	}
}

// configure stores settings and (re)opens the connection.
func (m *Manager) configure(s Settings) {
	m.settings = s
	m.active = true

	m.snapMu.Lock()
	m.snapshot = s
	m.snapMu.Unlock()

	if err := ValidateAddress(s.URL); err != nil {
		m.teardown()
		m.logWarn("invalid device address", "url", s.URL, "error", err)
		m.setStatus(StatusBadConfig, badAddressMessage)
		return
	}

	m.open()
}

// open starts a new connection attempt, releasing any previous transport
// and pending timer first.
func (m *Manager) open() {
	m.stopTimer()
	m.setStatus(StatusConnecting, "")
	m.closeTransport()

	gen := m.connGen
	ctx, cancel := context.WithCancel(m.runCtx)
	m.dialCancel = cancel
	url := m.settings.URL

	go func() {
		conn, err := m.dialer.Dial(ctx, url, deviceHeader())
		if err != nil {
			m.post(event{kind: evDialFailed, gen: gen, err: err})
			return
		}
		if !m.post(event{kind: evOpened, gen: gen, conn: conn}) {
			conn.Close(CloseNormal, "") //nolint:errcheck // manager is gone
		}
	}()
}

// handleOpened adopts a freshly dialled transport and authenticates.
func (m *Manager) handleOpened(ev event) {
	if ev.gen != m.connGen || !m.active {
		ev.conn.Close(CloseNormal, "") //nolint:errcheck // stale attempt
		return
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}

	m.conn = ev.conn
	m.connects.Add(1)
	go m.readLoop(ev.gen, ev.conn)

	m.logDebug("connection opened", "url", m.settings.URL)
	m.write(Authenticate())
	m.setStatus(StatusConnected, "")

	if m.settings.ResetVariables {
		m.updateVariables("")
	}
}

// readLoop forwards inbound frames until the transport fails.
func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.post(event{kind: evReadError, gen: gen, err: err})
			return
		}
		if !m.post(event{kind: evMessage, gen: gen, data: data}) {
			return
		}
	}
}

// handleClosed records a lost transport and schedules a reconnect.
func (m *Manager) handleClosed(gen uint64, code int) {
	m.closeTransport()

	msg := fmt.Sprintf("Connection closed with code %d", code)
	m.logDebug(msg, "generation", gen)
	m.setStatus(StatusDisconnected, msg)
	m.scheduleReconnect()
}

// handleMessage routes one inbound frame.
func (m *Manager) handleMessage(data []byte) {
	m.messagesRx.Add(1)
	m.lastActivity.Store(time.Now().UnixNano())

	if m.settings.DebugMessages {
		m.logDebug("message received", "payload", string(data))
	}
	m.router.Route(data)
}

// scheduleReconnect arms the single reconnect timer, replacing any pending
// one. It is a no-op while inactive or with reconnect disabled.
func (m *Manager) scheduleReconnect() {
	if !m.active || !m.settings.Reconnect {
		return
	}

	m.stopTimer()
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(ReconnectDelay, func() {
		m.post(event{kind: evTimer, gen: gen})
	})

	m.reconnects.Add(1)
	if m.metrics != nil {
		m.metrics.ReconnectScheduled()
	}
}

// stopTimer cancels the pending reconnect. Bumping the generation turns a
// callback that already fired into a no-op.
func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

// closeTransport cancels any dial in flight and closes the live transport
// with a normal-closure code. Events from it are ignored afterwards.
func (m *Manager) closeTransport() {
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(CloseNormal, ""); err != nil {
			m.logDebug("closing transport", "error", err)
		}
		m.conn = nil
	}
	m.connGen++
}

// teardown releases the transport and the timer.
func (m *Manager) teardown() {
	m.stopTimer()
	m.closeTransport()
}

// shutdown deactivates the manager and stops the reactor.
func (m *Manager) shutdown() {
	m.active = false
	m.teardown()
	m.stopping = true
	m.logInfo("connection manager stopped")
}

// send writes cmd or drops it when there is no transport.
func (m *Manager) send(cmd Command) {
	if m.conn == nil {
		m.dropped.Add(1)
		if m.metrics != nil {
			m.metrics.CommandDropped(cmd.Tag)
		}
		m.logDebug("dropping command while disconnected", "command", cmd.Tag)
		return
	}
	m.write(cmd)
}

// write serialises and writes one command on the live transport.
func (m *Manager) write(cmd Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		m.logError("encoding command", err)
		return
	}

	if m.settings.DebugMessages {
		m.logDebug("message sent", "payload", string(data))
	}

	if err := m.conn.WriteMessage(data); err != nil {
		m.errorsTotal.Add(1)
		m.logError("websocket error", fmt.Errorf("%w: write %s: %w", ErrTransport, cmd.Tag, err))
		return
	}

	m.messagesTx.Add(1)
	m.lastActivity.Store(time.Now().UnixNano())
	if m.metrics != nil {
		m.metrics.CommandSent(cmd.Tag)
	}
}

// updateVariables publishes the variable definitions and, with
// ResetVariables, clears values. An empty callerID clears every variable,
// otherwise only the variable of that subscription.
func (m *Manager) updateVariables(callerID string) {
	if m.variables == nil {
		return
	}

	defaults := make(map[string]string)
	for _, sub := range m.registry.List() {
		if sub.Variable == "" {
			continue
		}
		if callerID == "" || callerID == sub.ID {
			defaults[sub.Variable] = ""
		}
	}

	m.variables.SetVariableDefinitions(m.registry.Variables())
	if m.settings.ResetVariables && len(defaults) > 0 {
		m.variables.SetVariableValues(defaults)
	}
}

// setStatus records and reports a status change.
func (m *Manager) setStatus(s Status, msg string) {
	m.snapMu.Lock()
	changed := m.status != s || m.statusMsg != msg
	m.status = s
	m.statusMsg = msg
	m.snapMu.Unlock()

	if !changed {
		return
	}
	if m.metrics != nil {
		m.metrics.StatusChanged(s.String())
	}
	if m.reporter != nil {
		m.reporter.UpdateStatus(s, msg)
	}
}

// logDebug logs a debug message if logger is set.
func (m *Manager) logDebug(msg string, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if logger is set.
func (m *Manager) logInfo(msg string, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (m *Manager) logWarn(msg string, keysAndValues ...any) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (m *Manager) logError(msg string, err error) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
