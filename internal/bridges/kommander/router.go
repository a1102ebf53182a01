package kommander

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// RouterOptions holds the collaborators of a Router.
type RouterOptions struct {
	// Cache receives facet updates. Required.
	Cache *StateCache

	// Registry supplies subscriptions. Required.
	Registry *Registry

	// Variables receives fanned-out values. Optional.
	Variables VariableExporter

	// Feedbacks is asked to re-check feedbacks after facet changes. Optional.
	Feedbacks FeedbackChecker

	// Observer is told about every facet change. Optional.
	Observer StateObserver

	// Metrics records notification counters. Optional.
	Metrics MetricsRecorder

	// Logger is optional structured logger.
	Logger Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// RouteResult summarises what one notification did.
type RouteResult struct {
	Kind      NotificationKind
	Tag       string
	Changes   []FacetChange
	Variables map[string]string
	Skipped   int
	Rejected  error
}

// Router classifies inbound messages, updates the state cache and fans
// payloads out to subscriptions.
//
// Thread Safety: Route may be called from any goroutine; the Manager calls
// it from its reactor only.
type Router struct {
	cache     *StateCache
	registry  *Registry
	variables VariableExporter
	feedbacks FeedbackChecker
	observer  StateObserver
	metrics   MetricsRecorder
	schemas   *notificationSchemas
	now       func() time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRouter creates a router and compiles the notification schemas.
func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("state cache is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("subscription registry is required")
	}

	schemas, err := loadNotificationSchemas()
	if err != nil {
		return nil, fmt.Errorf("loading notification schemas: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Router{
		cache:     opts.Cache,
		registry:  opts.Registry,
		variables: opts.Variables,
		feedbacks: opts.Feedbacks,
		observer:  opts.Observer,
		metrics:   opts.Metrics,
		schemas:   schemas,
		now:       now,
		logger:    opts.Logger,
	}, nil
}

// SetLogger sets the logger for this router.
func (r *Router) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// Route handles one inbound payload. It never fails; rejected bodies and
// extraction misses are reported in the result.
func (r *Router) Route(raw []byte) RouteResult {
	n := DecodeNotification(raw)
	res := RouteResult{Kind: n.Kind, Tag: n.Tag}

	if r.metrics != nil {
		r.metrics.NotificationReceived(n.Kind.String())
	}

	if n.Kind != NotificationOpaque && n.Kind != NotificationUnrecognized {
		changes, err := r.updateState(n)
		if err != nil {
			res.Rejected = err
			if r.metrics != nil {
				r.metrics.NotificationRejected(n.Kind.String())
			}
			r.logDebug("notification rejected", "tag", n.Tag, "error", err)
		}
		res.Changes = changes
	}

	res.Variables, res.Skipped = r.fanOut(n)
	return res
}

// updateState validates a recognised notification and applies its facets.
func (r *Router) updateState(n Notification) ([]FacetChange, error) {
	if err := r.schemas.validate(n); err != nil {
		return nil, err
	}
	updates, err := facetUpdates(n)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, nil
	}

	changes := r.cache.Apply(updates, r.now())
	if len(changes) == 0 {
		return nil, nil
	}

	if r.observer != nil {
		for _, c := range changes {
			r.observer.FacetChanged(c)
		}
	}

	if r.feedbacks != nil {
		facets := make([]Facet, len(changes))
		for i, c := range changes {
			facets[i] = c.Facet
		}
		if kinds := feedbackKindsFor(facets); len(kinds) > 0 {
			r.feedbacks.CheckFeedbacks(kinds...)
		}
	}
	return changes, nil
}

// fanOut computes the variable values for every subscription and writes
// them in one call. Subscriptions are visited in ID order, so when two
// subscriptions share a variable the result does not depend on the order
// they were registered in.
func (r *Router) fanOut(n Notification) (map[string]string, int) {
	values := make(map[string]string)
	skipped := 0

	for _, sub := range r.registry.List() {
		if sub.Variable == "" {
			continue
		}
		if sub.Path == "" {
			values[sub.Variable] = messageText(n)
			continue
		}
		if n.Opaque() {
			skipped++
			continue
		}
		v, err := extractPath(n.Value, sub.Path)
		if err != nil {
			if !errors.Is(err, ErrExtractionMiss) {
				r.logDebug("bad subscription path", "subscription", sub.ID, "path", sub.Path, "error", err)
			}
			skipped++
			continue
		}
		values[sub.Variable] = extractedText(n, sub.Path, v)
	}

	if len(values) > 0 && r.variables != nil {
		r.variables.SetVariableValues(values)
	}
	return values, skipped
}

// logDebug logs a debug message if logger is set.
func (r *Router) logDebug(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
