package variables

import (
	"sort"
	"sync"
	"time"
)

// Variable is one exported variable.
type Variable struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Defined   bool      `json:"defined"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Change describes one value update passed to listeners.
type Change struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Previous string    `json:"previous"`
	At       time.Time `json:"at"`
}

// Listener receives changed values. It is called outside the store lock
// and must not block.
type Listener func(changes []Change)

// Store is a thread-safe variable table.
type Store struct {
	mu        sync.RWMutex
	defined   map[string]bool
	values    map[string]string
	updated   map[string]time.Time
	listeners []Listener
	now       func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		defined: make(map[string]bool),
		values:  make(map[string]string),
		updated: make(map[string]time.Time),
		now:     time.Now,
	}
}

// OnChange registers a listener.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// SetVariableDefinitions replaces the defined set. Values of names that
// are no longer defined are kept so a later redefinition sees them.
func (s *Store) SetVariableDefinitions(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defined = make(map[string]bool, len(names))
	for _, n := range names {
		s.defined[n] = true
	}
}

// SetVariableValues stores values and notifies listeners of those that
// differ from what was held.
func (s *Store) SetVariableValues(values map[string]string) {
	if len(values) == 0 {
		return
	}
	at := s.now().UTC()

	s.mu.Lock()
	var changes []Change
	for name, value := range values {
		prev, had := s.values[name]
		s.values[name] = value
		s.updated[name] = at
		if had && prev == value {
			continue
		}
		changes = append(changes, Change{Name: name, Value: value, Previous: prev, At: at})
	}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	for _, l := range listeners {
		l(changes)
	}
}

// Get returns a variable's value.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Definitions returns the defined names in order.
func (s *Store) Definitions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.defined))
	for n := range s.defined {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot lists every defined or valued variable in name order.
func (s *Store) Snapshot() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(s.defined)+len(s.values))
	var out []Variable
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, Variable{
			Name:      name,
			Value:     s.values[name],
			Defined:   s.defined[name],
			UpdatedAt: s.updated[name],
		})
	}
	for n := range s.defined {
		add(n)
	}
	for n := range s.values {
		add(n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
