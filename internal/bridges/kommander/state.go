package kommander

import (
	"sort"
	"sync"
	"time"
)

// Facet names a piece of cached device status.
type Facet string

// Device state facets.
const (
	FacetPlayStatus      Facet = "play_status"
	FacetMute            Facet = "mute"
	FacetBlackScreen     Facet = "black_screen"
	FacetOutput          Facet = "output"
	FacetLock            Facet = "lock"
	FacetGroupIndex      Facet = "group_index"
	FacetPlanIndex       Facet = "plan_index"
	FacetPlanName        Facet = "plan_name"
	FacetOutputGroup     Facet = "output_group"
	FacetOutputGroupName Facet = "output_group_name"
	FacetAuthCode        Facet = "auth_code"
	FacetMediaLibrary    Facet = "media_library"
)

// facetDefaults holds the value of every facet before its first
// notification. Indexes are 0-based, so -1 means "none selected".
var facetDefaults = map[Facet]any{
	FacetPlayStatus:      PlayStopped,
	FacetMute:            false,
	FacetBlackScreen:     false,
	FacetOutput:          false,
	FacetLock:            false,
	FacetGroupIndex:      -1,
	FacetPlanIndex:       -1,
	FacetPlanName:        "",
	FacetOutputGroup:     -1,
	FacetOutputGroupName: "",
	FacetAuthCode:        -1,
	FacetMediaLibrary:    "",
}

// Facets returns every known facet in name order.
func Facets() []Facet {
	out := make([]Facet, 0, len(facetDefaults))
	for f := range facetDefaults {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FacetDefault returns the default value of a facet.
func FacetDefault(f Facet) (any, bool) {
	v, ok := facetDefaults[f]
	return v, ok
}

// FacetChange describes one facet update applied to the cache.
type FacetChange struct {
	Facet    Facet     `json:"facet"`
	Value    any       `json:"value"`
	Previous any       `json:"previous"`
	At       time.Time `json:"at"`
}

// StateCache holds the last-known value of every device facet.
//
// Values are PlayState, bool, int or string depending on the facet. Unset
// facets read as their default.
//
// Thread Safety: all methods are safe for concurrent use. The router is the
// only writer.
type StateCache struct {
	mu      sync.RWMutex
	values  map[Facet]any
	updated map[Facet]time.Time
}

// NewStateCache creates a cache holding only defaults.
func NewStateCache() *StateCache {
	return &StateCache{
		values:  make(map[Facet]any),
		updated: make(map[Facet]time.Time),
	}
}

// Get returns the cached value of a facet, or its default if never set.
func (c *StateCache) Get(f Facet) any {
	c.mu.RLock()
	v, ok := c.values[f]
	c.mu.RUnlock()
	if ok {
		return v
	}
	return facetDefaults[f]
}

// Apply stores the given facet values and reports the ones that changed.
// Unknown facets are ignored.
func (c *StateCache) Apply(values map[Facet]any, at time.Time) []FacetChange {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changes []FacetChange
	for f, v := range values {
		def, known := facetDefaults[f]
		if !known {
			continue
		}
		prev, ok := c.values[f]
		if !ok {
			prev = def
		}
		c.values[f] = v
		c.updated[f] = at
		if prev != v {
			changes = append(changes, FacetChange{Facet: f, Value: v, Previous: prev, At: at})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Facet < changes[j].Facet })
	return changes
}

// Snapshot returns every facet with its current value.
func (c *StateCache) Snapshot() map[Facet]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[Facet]any, len(facetDefaults))
	for f, def := range facetDefaults {
		if v, ok := c.values[f]; ok {
			out[f] = v
		} else {
			out[f] = def
		}
	}
	return out
}

// UpdatedAt returns when a facet was last written. The zero time means the
// facet still holds its default.
func (c *StateCache) UpdatedAt(f Facet) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated[f]
}

// Reset drops every cached value.
func (c *StateCache) Reset() {
	c.mu.Lock()
	c.values = make(map[Facet]any)
	c.updated = make(map[Facet]time.Time)
	c.mu.Unlock()
}
