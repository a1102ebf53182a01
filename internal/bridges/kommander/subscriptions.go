package kommander

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// variableNamePattern restricts exported variable names.
var variableNamePattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Subscription binds an extraction path in inbound notifications to an
// exported variable.
type Subscription struct {
	// ID is the framework-assigned identity of the binding.
	ID string `json:"id"`

	// Path is a dot/bracket path into the notification. Empty selects the
	// whole message.
	Path string `json:"path"`

	// Variable is the destination variable. Empty means the subscription has
	// no variable effect.
	Variable string `json:"variable"`
}

// ValidateVariableName checks a destination variable name. The empty name is
// valid and disables the variable effect.
func ValidateVariableName(name string) error {
	if name == "" || variableNamePattern.MatchString(name) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidVariableName, name)
}

// Registry holds subscriptions keyed by ID.
//
// Thread Safety: all methods are safe for concurrent use. Returned values are
// copies; callers cannot alias registry state.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Subscription)}
}

// Add inserts or replaces a subscription.
func (r *Registry) Add(sub Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("%w: empty subscription id", ErrInvalidParameter)
	}
	if err := ValidateVariableName(sub.Variable); err != nil {
		return err
	}
	if sub.Path != "" {
		if _, err := parsePath(sub.Path); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.subs[sub.ID] = sub
	r.mu.Unlock()
	return nil
}

// Remove deletes a subscription and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.subs[id]
	delete(r.subs, id)
	return ok
}

// Get returns one subscription.
func (r *Registry) Get(id string) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[id]
	return sub, ok
}

// List returns every subscription ordered by ID.
func (r *Registry) List() []Subscription {
	r.mu.RLock()
	out := make([]Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Variables returns the distinct non-empty destination names in name order.
func (r *Registry) Variables() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.subs))
	for _, sub := range r.subs {
		if sub.Variable != "" {
			seen[sub.Variable] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
