package variables

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

var _ kommander.VariableExporter = (*Store)(nil)

func TestStore_DefinitionsAndValues(t *testing.T) {
	s := New()
	s.SetVariableDefinitions([]string{"state", "mute"})

	if got := s.Definitions(); !reflect.DeepEqual(got, []string{"mute", "state"}) {
		t.Errorf("Definitions() = %v", got)
	}
	if _, ok := s.Get("state"); ok {
		t.Error("Get() found a value before any write")
	}

	s.SetVariableValues(map[string]string{"state": "1", "orphan": "x"})
	if v, ok := s.Get("state"); !ok || v != "1" {
		t.Errorf("Get(state) = %q, %v", v, ok)
	}

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap[0].Name != "mute" || !snap[0].Defined || snap[0].Value != "" || !snap[0].UpdatedAt.IsZero() {
		t.Errorf("snap[0] = %+v", snap[0])
	}
	if snap[1].Name != "orphan" || snap[1].Defined || snap[1].Value != "x" {
		t.Errorf("snap[1] = %+v", snap[1])
	}

	// Redefinition keeps stored values.
	s.SetVariableDefinitions([]string{"orphan"})
	if v, _ := s.Get("state"); v != "1" {
		t.Errorf("value lost on redefinition: %q", v)
	}
}

func TestStore_OnChange(t *testing.T) {
	s := New()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	var (
		mu  sync.Mutex
		got [][]Change
	)
	s.OnChange(func(c []Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})

	s.SetVariableValues(map[string]string{"b": "2", "a": "1"})
	s.SetVariableValues(map[string]string{"a": "1"})
	s.SetVariableValues(map[string]string{"a": "3", "b": "2"})
	s.SetVariableValues(nil)

	want := [][]Change{
		{{Name: "a", Value: "1", At: at}, {Name: "b", Value: "2", At: at}},
		{{Name: "a", Value: "3", Previous: "1", At: at}},
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("changes = %+v, want %+v", got, want)
	}
}

func TestStore_EmptyValueIsAChange(t *testing.T) {
	s := New()
	calls := 0
	s.OnChange(func([]Change) { calls++ })

	s.SetVariableValues(map[string]string{"v": ""})
	s.SetVariableValues(map[string]string{"v": ""})
	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}
