package kommander

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestCatalog_Encode(t *testing.T) {
	must := func(cmd Command, err error) Command {
		t.Helper()
		if err != nil {
			t.Fatalf("constructor error = %v", err)
		}
		return cmd
	}

	tests := []struct {
		name string
		enc  ToggleEncoding
		id   string
		opts Options
		want Command
	}{
		{"call plan default", ToggleImplicit, ActionCallPlan, nil, NavigatePlan(false)},
		{"call plan next", ToggleImplicit, ActionCallPlan, Options{"callPlan": "NextPlan"}, NavigatePlan(true)},
		{"call plan int", ToggleImplicit, ActionCallPlan, Options{"callPlan": 5}, must(InvokePlan(5))},
		{"call plan json number", ToggleImplicit, ActionCallPlan, Options{"callPlan": json.Number("7")}, must(InvokePlan(7))},
		{"call plan float", ToggleImplicit, ActionCallPlan, Options{"callPlan": float64(32)}, must(InvokePlan(32))},
		{"call plan numeric string", ToggleImplicit, ActionCallPlan, Options{"callPlan": "12"}, must(InvokePlan(12))},
		{"group default", ToggleImplicit, ActionChangePlanGroup, nil, StepGroup(true)},
		{"group pre", ToggleImplicit, ActionChangePlanGroup, Options{"changePlanGroup": "pre"}, StepGroup(false)},
		{"group index", ToggleImplicit, ActionChangePlanGroup, Options{"changePlanGroup": 2}, must(SwitchGroup(2))},
		{"play status default", ToggleImplicit, ActionChangePlayStatus, nil, must(SetPlayState(PlayPlaying))},
		{"pause", ToggleImplicit, ActionChangePlayStatus, Options{"changePlayStatus": "Pause"}, must(SetPlayState(PlayPaused))},
		{"sound default", ToggleImplicit, ActionSoundControl, nil, must(SetVolume(StepIncrease))},
		{"volume down", ToggleImplicit, ActionSoundControl, Options{"soundControl": -2}, must(SetVolume(StepDecrease))},
		{"mute implicit", ToggleImplicit, ActionSoundControl, Options{"soundControl": 0, "target": "on"}, ToggleMute(ToggleImplicit, ToggleOn)},
		{"mute explicit", ToggleExplicit, ActionSoundControl, Options{"soundControl": 0, "target": "on"}, ToggleMute(ToggleExplicit, ToggleOn)},
		{"set volume", ToggleImplicit, ActionSetVolume, Options{"volume": 75}, must(SetVolume(75))},
		{"set volume default", ToggleImplicit, ActionSetVolume, nil, must(SetVolume(50))},
		{"page default", ToggleImplicit, ActionPageTurn, nil, TurnPage(true)},
		{"page back", ToggleImplicit, ActionPageTurn, Options{"pageTurn": "PrevPage"}, TurnPage(false)},
		{"screen explicit off", ToggleExplicit, ActionScreenOnOff, Options{"target": "off"}, ToggleBlackScreen(ToggleExplicit, ToggleOff)},
		{"contrast down", ToggleImplicit, ActionBrightContrast, Options{"brightContrast": "Contrast-"}, must(SetContrast(StepDecrease))},
		{"brightness default", ToggleImplicit, ActionBrightContrast, nil, must(SetBrightness(StepIncrease))},
		{"set brightness", ToggleImplicit, ActionSetBrightness, Options{"light": -20}, must(SetBrightness(-20))},
		{"set contrast", ToggleImplicit, ActionSetContrast, Options{"contrast": 60}, must(SetContrast(60))},
		{"output off", ToggleImplicit, ActionOutputOnOff, Options{"outputOnOff": 0}, SetOutput(false)},
		{"output default", ToggleImplicit, ActionOutputOnOff, nil, SetOutput(true)},
		{"master switch", ToggleImplicit, ActionMasterSwitch, nil, SwitchRole(ToggleImplicit, ToggleFlip)},
		{"lock explicit", ToggleExplicit, ActionLock, Options{"target": "On"}, ToggleLock(ToggleExplicit, ToggleOn)},
		{"plan by name", ToggleImplicit, ActionCallPlanByName, Options{"name": "Finale"}, must(CallPlanByName("Finale"))},
		{"timeline", ToggleImplicit, ActionCallTimeline, Options{"timeline": 2, "status": 5}, must(CallTimeline(2, TimelineNext))},
		{"timeline default", ToggleImplicit, ActionCallTimeline, nil, must(CallTimeline(1, TimelinePlay))},
		{"media library", ToggleImplicit, ActionMediaLibrary, nil, QueryMediaLibrary()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCatalog(tt.enc).Encode(tt.id, tt.opts)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Encode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCatalog_EncodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		opts    Options
		wantErr error
	}{
		{"unknown action", "teleport", nil, ErrUnknownAction},
		{"plan out of range", ActionCallPlan, Options{"callPlan": 40}, ErrInvalidParameter},
		{"fractional plan", ActionCallPlan, Options{"callPlan": 1.5}, ErrInvalidParameter},
		{"plan garbage", ActionCallPlan, Options{"callPlan": "soon"}, ErrInvalidParameter},
		{"plan wrong type", ActionCallPlan, Options{"callPlan": true}, ErrInvalidParameter},
		{"bad target", ActionLock, Options{"target": "sideways"}, ErrInvalidParameter},
		{"bad sound control", ActionSoundControl, Options{"soundControl": 7}, ErrInvalidParameter},
		{"bad page", ActionPageTurn, Options{"pageTurn": "Home"}, ErrInvalidParameter},
		{"bad play status", ActionChangePlayStatus, Options{"changePlayStatus": "Rewind"}, ErrInvalidParameter},
		{"missing plan name", ActionCallPlanByName, nil, ErrInvalidParameter},
		{"volume too loud", ActionSetVolume, Options{"volume": 120}, ErrInvalidParameter},
	}

	cat := NewCatalog(ToggleImplicit)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cat.Encode(tt.id, tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("Encode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_Definitions(t *testing.T) {
	cat := NewCatalog(ToggleExplicit)

	if cat.Encoding() != ToggleExplicit {
		t.Errorf("Encoding() = %q", cat.Encoding())
	}

	actions := cat.Actions()
	if len(actions) != 16 {
		t.Fatalf("Actions() = %d entries, want 16", len(actions))
	}
	seen := make(map[string]bool)
	for _, a := range actions {
		if seen[a.ID] {
			t.Errorf("duplicate action %q", a.ID)
		}
		seen[a.ID] = true
		if a.Name == "" {
			t.Errorf("action %q has no name", a.ID)
		}
	}

	plan, ok := cat.Lookup(ActionCallPlan)
	if !ok {
		t.Fatal("Lookup(callPlan) not found")
	}
	if n := len(plan.Options[0].Choices); n != MaxPlanIndex+2 {
		t.Errorf("callPlan choices = %d, want %d", n, MaxPlanIndex+2)
	}
	if _, ok := cat.Lookup("nope"); ok {
		t.Error("Lookup(nope) found an action")
	}

	// Callers cannot modify the catalog through the returned slice.
	actions[0].ID = "mutated"
	if _, ok := cat.Lookup(ActionCallPlan); !ok {
		t.Error("catalog changed through Actions() result")
	}
	if cat.Actions()[0].ID != ActionCallPlan {
		t.Error("Actions() returned shared storage")
	}
}

func TestCatalog_ActionsMarshal(t *testing.T) {
	data, err := json.Marshal(NewCatalog(ToggleImplicit).Actions()[0])
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if got["id"] != ActionCallPlan {
		t.Errorf("id = %v", got["id"])
	}
	if _, ok := got["build"]; ok {
		t.Error("builder leaked into JSON")
	}
}
