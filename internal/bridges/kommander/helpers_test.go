package kommander

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const waitTimeout = 2 * time.Second

// waitUntil polls cond until it holds or the test times out.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// Transport fakes
// =============================================================================

type fakeConn struct {
	mu        sync.Mutex
	writes    [][]byte
	closed    bool
	closeCode int

	inbound chan []byte
	readErr chan error
	done    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case err := <-c.readErr:
		return nil, err
	case <-c.done:
		return nil, &websocket.CloseError{Code: CloseNormal}
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrTransportClosed
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.closeCode = code
		close(c.done)
	}
	return nil
}

// deliver simulates an inbound frame.
func (c *fakeConn) deliver(data string) {
	c.inbound <- []byte(data)
}

// fail simulates the peer dropping the connection.
func (c *fakeConn) fail(err error) {
	c.readErr <- err
}

func (c *fakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) Closed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	urls    []string
	headers []http.Header
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) Header(i int) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers[i]
}

// Last returns the most recently opened connection.
func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// =============================================================================
// Manual clock
// =============================================================================

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Pending returns timers that are neither stopped nor fired.
func (c *fakeClock) Pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// Created returns how many timers were ever armed.
func (c *fakeClock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Fire runs a timer callback as if its delay elapsed.
func (c *fakeClock) Fire(t *fakeTimer) {
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.fn()
}

// =============================================================================
// Recording collaborators
// =============================================================================

type statusUpdate struct {
	status  Status
	message string
}

type statusRecorder struct {
	mu      sync.Mutex
	updates []statusUpdate
}

func (r *statusRecorder) UpdateStatus(status Status, message string) {
	r.mu.Lock()
	r.updates = append(r.updates, statusUpdate{status, message})
	r.mu.Unlock()
}

func (r *statusRecorder) Updates() []statusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]statusUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

func (r *statusRecorder) Seen(s Status) bool {
	for _, u := range r.Updates() {
		if u.status == s {
			return true
		}
	}
	return false
}

type variableRecorder struct {
	mu          sync.Mutex
	definitions [][]string
	calls       []map[string]string
	values      map[string]string
}

func (r *variableRecorder) SetVariableDefinitions(names []string) {
	r.mu.Lock()
	r.definitions = append(r.definitions, append([]string(nil), names...))
	r.mu.Unlock()
}

func (r *variableRecorder) SetVariableValues(values map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string]string)
	}
	call := make(map[string]string, len(values))
	for k, v := range values {
		call[k] = v
		r.values[k] = v
	}
	r.calls = append(r.calls, call)
}

func (r *variableRecorder) Get(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[name]
	return v, ok
}

func (r *variableRecorder) Calls() []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *variableRecorder) LastDefinitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.definitions) == 0 {
		return nil
	}
	return r.definitions[len(r.definitions)-1]
}

func (r *variableRecorder) reset() {
	r.mu.Lock()
	r.definitions = nil
	r.calls = nil
	r.values = nil
	r.mu.Unlock()
}

type feedbackRecorder struct {
	mu    sync.Mutex
	kinds []string
	calls int
}

func (r *feedbackRecorder) CheckFeedbacks(kinds ...string) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kinds...)
	r.calls++
	r.mu.Unlock()
}

func (r *feedbackRecorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.kinds...)
	sort.Strings(out)
	return out
}

func (r *feedbackRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type observerRecorder struct {
	mu      sync.Mutex
	changes []FacetChange
}

func (r *observerRecorder) FacetChanged(c FacetChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *observerRecorder) Changes() []FacetChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FacetChange(nil), r.changes...)
}

type metricsRecorder struct {
	mu       sync.Mutex
	sent     []string
	dropped  []string
	received []string
	rejected []string
	statuses []string
	rearms   int
}

func (m *metricsRecorder) CommandSent(tag string) {
	m.mu.Lock()
	m.sent = append(m.sent, tag)
	m.mu.Unlock()
}

func (m *metricsRecorder) CommandDropped(tag string) {
	m.mu.Lock()
	m.dropped = append(m.dropped, tag)
	m.mu.Unlock()
}

func (m *metricsRecorder) NotificationReceived(kind string) {
	m.mu.Lock()
	m.received = append(m.received, kind)
	m.mu.Unlock()
}

func (m *metricsRecorder) NotificationRejected(kind string) {
	m.mu.Lock()
	m.rejected = append(m.rejected, kind)
	m.mu.Unlock()
}

func (m *metricsRecorder) StatusChanged(status string) {
	m.mu.Lock()
	m.statuses = append(m.statuses, status)
	m.mu.Unlock()
}

func (m *metricsRecorder) ReconnectScheduled() {
	m.mu.Lock()
	m.rearms++
	m.mu.Unlock()
}

// =============================================================================
// Manager harness
// =============================================================================

type managerHarness struct {
	m        *Manager
	dialer   *fakeDialer
	clock    *fakeClock
	status   *statusRecorder
	vars     *variableRecorder
	registry *Registry
	cache    *StateCache
	metrics  *metricsRecorder
}

// newManagerHarness starts a manager with fakes. The reactor is stopped
// when the test ends.
func newManagerHarness(t *testing.T) *managerHarness {
	t.Helper()

	h := &managerHarness{
		dialer:   &fakeDialer{},
		clock:    &fakeClock{},
		status:   &statusRecorder{},
		vars:     &variableRecorder{},
		registry: NewRegistry(),
		cache:    NewStateCache(),
		metrics:  &metricsRecorder{},
	}

	router, err := NewRouter(RouterOptions{
		Cache:     h.cache,
		Registry:  h.registry,
		Variables: h.vars,
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	h.m, err = NewManager(ManagerOptions{
		Dialer:    h.dialer,
		Router:    router,
		Registry:  h.registry,
		Status:    h.status,
		Variables: h.vars,
		Metrics:   h.metrics,
		Clock:     h.clock,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go h.m.Run(ctx) //nolint:errcheck // exit checked through Done
	t.Cleanup(func() {
		cancel()
		<-h.m.Done()
	})
	return h
}

func (h *managerHarness) configure(t *testing.T, s Settings) {
	t.Helper()
	if err := h.m.Configure(context.Background(), s); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
}

// connect configures a valid address and waits for the open.
func (h *managerHarness) connect(t *testing.T, s Settings) *fakeConn {
	t.Helper()
	before := h.dialer.Dials()
	h.configure(t, s)
	waitUntil(t, "dial", func() bool { return h.dialer.Dials() > before })
	waitUntil(t, "connected", h.m.IsConnected)
	h.sync(t)
	return h.dialer.Last()
}

// sync waits until the reactor has finished the event it is handling.
func (h *managerHarness) sync(t *testing.T) {
	t.Helper()
	h.onReactor(t, func() {})
}

// onReactor runs fn on the reactor goroutine and waits for it.
func (h *managerHarness) onReactor(t *testing.T, fn func()) {
	t.Helper()
	err := h.m.call(context.Background(), func() error {
		fn()
		return nil
	})
	if err != nil {
		t.Fatalf("reactor call error = %v", err)
	}
}

var errPeerGone = errors.New("connection reset by peer")

func validSettings() Settings {
	return Settings{
		URL:            "ws://192.168.0.50:8089/",
		Reconnect:      true,
		ResetVariables: true,
	}
}
