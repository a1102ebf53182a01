package kommander

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustJSON(t *testing.T, cmd Command) string {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal(%s) error = %v", cmd.Tag, err)
	}
	return string(data)
}

func TestInvokePlan_IndexRoundTrip(t *testing.T) {
	for n := 1; n <= MaxPlanIndex; n++ {
		cmd, err := InvokePlan(n)
		if err != nil {
			t.Fatalf("InvokePlan(%d) error = %v", n, err)
		}

		var env struct {
			KommanderMsg string `json:"KommanderMsg"`
			Params       struct {
				Index       int  `json:"index"`
				OnlySetReal bool `json:"onlySetReal"`
			} `json:"params"`
		}
		if err := json.Unmarshal([]byte(mustJSON(t, cmd)), &env); err != nil {
			t.Fatalf("Unmarshal error = %v", err)
		}
		if env.KommanderMsg != TagIndexInvokePlan {
			t.Errorf("InvokePlan(%d) tag = %q", n, env.KommanderMsg)
		}
		if env.Params.Index != n-1 {
			t.Errorf("InvokePlan(%d) index = %d, want %d", n, env.Params.Index, n-1)
		}
		if !env.Params.OnlySetReal {
			t.Errorf("InvokePlan(%d) onlySetReal = false", n)
		}
	}
}

func TestAuthenticate_Wire(t *testing.T) {
	want := `{"KommanderMsg":"KommanderMsg_Authentication","identificationID":"10",` +
		`"params":{"connetType":5,"deviceId":"103291","ip":"192.168.0.129","password":"streamDeck","username":"streamDeck"}}`

	if got := mustJSON(t, Authenticate()); got != want {
		t.Errorf("Authenticate() = %s\nwant %s", got, want)
	}
}

func TestCommand_Wire(t *testing.T) {
	must := func(cmd Command, err error) Command {
		t.Helper()
		if err != nil {
			t.Fatalf("constructor error = %v", err)
		}
		return cmd
	}

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"media library omits params", QueryMediaLibrary(), `{"KommanderMsg":"KommanderMsg_GetMediaLibrary"}`},
		{"next plan", NavigatePlan(true), `{"KommanderMsg":"KommanderMsg_PrePlanNextOrPre","params":{"next":true}}`},
		{"previous plan", NavigatePlan(false), `{"KommanderMsg":"KommanderMsg_PrePlanNextOrPre","params":{"next":false}}`},
		{"switch group", must(SwitchGroup(4)), `{"KommanderMsg":"KommanderMsg_SwitchPlanPreGroup","params":{"index":3}}`},
		{"next group", StepGroup(true), `{"KommanderMsg":"KommanderMsg_SwitchPlanPreGroup","params":{"type":"next"}}`},
		{"previous group", StepGroup(false), `{"KommanderMsg":"KommanderMsg_SwitchPlanPreGroup","params":{"type":"pre"}}`},
		{"play", must(SetPlayState(PlayPlaying)), `{"KommanderMsg":"KommanderMsg_Play","params":{"onlySetReal":true}}`},
		{"pause", must(SetPlayState(PlayPaused)), `{"KommanderMsg":"KommanderMsg_Pause","params":{"onlySetReal":true}}`},
		{"stop", must(SetPlayState(PlayStopped)), `{"KommanderMsg":"KommanderMsg_Stop","params":{"onlySetReal":true}}`},
		{"volume up", must(SetVolume(StepIncrease)), `{"KommanderMsg":"KommanderMsg_Volume","params":{"volume":-1}}`},
		{"next page", TurnPage(true), `{"KommanderMsg":"KommanderMsg_NextPage","params":{"isGlobalTurnPage":true,"onlySetReal":true}}`},
		{"previous page", TurnPage(false), `{"KommanderMsg":"KommanderMsg_PrevPage","params":{"isGlobalTurnPage":true,"onlySetReal":true}}`},
		{"brightness", must(SetBrightness(-40)), `{"KommanderMsg":"KommanderMsg_SetScreenLight","params":{"light":-40}}`},
		{"contrast down", must(SetContrast(StepDecrease)), `{"KommanderMsg":"KommanderMsg_SetScreenContrast","params":{"contrast":-2}}`},
		{"output off", SetOutput(false), `{"KommanderMsg":"KommanderMsg_EnableAllMonitor","params":{"bOpen":false}}`},
		{"plan by name", must(CallPlanByName("Finale")), `{"KommanderMsg":"KommanderMsg_CallPrePlanByName","params":{"select":"Finale"}}`},
		{"timeline stop", must(CallTimeline(3, TimelineStop)), `{"KommanderMsg":"KommanderMsg_CallTimeLine","params":{"index":2,"status":3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustJSON(t, tt.cmd); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestToggleEncodings(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"implicit mute", ToggleMute(ToggleImplicit, ToggleOn), `{"KommanderMsg":"KommanderMsg_Mute"}`},
		{"explicit mute on", ToggleMute(ToggleExplicit, ToggleOn), `{"KommanderMsg":"KommanderMsg_Mute","params":{"mute":true}}`},
		{"explicit mute off", ToggleMute(ToggleExplicit, ToggleOff), `{"KommanderMsg":"KommanderMsg_Mute","params":{"mute":false}}`},
		{"explicit mute flip", ToggleMute(ToggleExplicit, ToggleFlip), `{"KommanderMsg":"KommanderMsg_Mute"}`},
		{"implicit black screen", ToggleBlackScreen(ToggleImplicit, ToggleFlip), `{"KommanderMsg":"KommanderMsg_UpdateBlackScreen"}`},
		{"explicit black screen", ToggleBlackScreen(ToggleExplicit, ToggleOn), `{"KommanderMsg":"KommanderMsg_UpdateBlackScreen","params":{"blackscreen":true}}`},
		{"implicit role change", SwitchRole(ToggleImplicit, ToggleOff), `{"KommanderMsg":"KommanderMsg_RoleChange","params":{"bSwitch":true}}`},
		{"explicit role change off", SwitchRole(ToggleExplicit, ToggleOff), `{"KommanderMsg":"KommanderMsg_RoleChange","params":{"bSwitch":false}}`},
		{"implicit lock", ToggleLock(ToggleImplicit, ToggleFlip), `{"KommanderMsg":"KommanderMsg_SetKommanderLock"}`},
		{"explicit lock on", ToggleLock(ToggleExplicit, ToggleOn), `{"KommanderMsg":"KommanderMsg_SetKommanderLock","params":{"lock":true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustJSON(t, tt.cmd); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestCommand_OutOfRange(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (Command, error)
	}{
		{"plan 0", func() (Command, error) { return InvokePlan(0) }},
		{"plan 33", func() (Command, error) { return InvokePlan(33) }},
		{"group 0", func() (Command, error) { return SwitchGroup(0) }},
		{"group 33", func() (Command, error) { return SwitchGroup(33) }},
		{"volume 101", func() (Command, error) { return SetVolume(101) }},
		{"volume -3", func() (Command, error) { return SetVolume(-3) }},
		{"brightness 101", func() (Command, error) { return SetBrightness(101) }},
		{"contrast -101", func() (Command, error) { return SetContrast(-101) }},
		{"play state 5", func() (Command, error) { return SetPlayState(PlayState(5)) }},
		{"blank plan name", func() (Command, error) { return CallPlanByName("  ") }},
		{"timeline 0", func() (Command, error) { return CallTimeline(0, TimelinePlay) }},
		{"timeline status 0", func() (Command, error) { return CallTimeline(1, TimelineStatus(0)) }},
		{"timeline status 7", func() (Command, error) { return CallTimeline(1, TimelineStatus(7)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestLevelBounds(t *testing.T) {
	for _, v := range []int{StepIncrease, StepDecrease, 0, 100} {
		if _, err := SetVolume(v); err != nil {
			t.Errorf("SetVolume(%d) error = %v", v, err)
		}
	}
	for _, v := range []int{-100, StepIncrease, StepDecrease, 0, 100} {
		if _, err := SetBrightness(v); err != nil {
			t.Errorf("SetBrightness(%d) error = %v", v, err)
		}
		if _, err := SetContrast(v); err != nil {
			t.Errorf("SetContrast(%d) error = %v", v, err)
		}
	}
}

func TestParsePlayState(t *testing.T) {
	tests := []struct {
		in      string
		want    PlayState
		wantErr bool
	}{
		{"play", PlayPlaying, false},
		{"Pause", PlayPaused, false},
		{"STOP", PlayStopped, false},
		{"playing", PlayPlaying, false},
		{"rewind", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePlayState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePlayState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePlayState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for s, want := range map[PlayState]string{PlayPlaying: "play", PlayPaused: "pause", PlayStopped: "stop"} {
		if got := s.String(); got != want {
			t.Errorf("PlayState(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestParseToggleEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    ToggleEncoding
		wantErr bool
	}{
		{"", ToggleImplicit, false},
		{"implicit", ToggleImplicit, false},
		{"Explicit", ToggleExplicit, false},
		{"both", "", true},
	}

	for _, tt := range tests {
		got, err := ParseToggleEncoding(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseToggleEncoding(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseToggleEncoding(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommand_String(t *testing.T) {
	if got := QueryMediaLibrary().String(); got != TagMediaLibrary {
		t.Errorf("String() = %q, want bare tag", got)
	}
	if got := SetOutput(true).String(); got != "KommanderMsg_EnableAllMonitor map[bOpen:true]" {
		t.Errorf("String() = %q", got)
	}
}

func TestPlayState_TextRoundTrip(t *testing.T) {
	for _, state := range []PlayState{PlayPlaying, PlayPaused, PlayStopped} {
		b, err := json.Marshal(map[string]PlayState{"state": state})
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", state, err)
		}
		var out map[string]PlayState
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", b, err)
		}
		if out["state"] != state {
			t.Errorf("round trip %s = %v, want %v", b, out["state"], state)
		}
	}

	var s PlayState
	if err := s.UnmarshalText([]byte("rewind")); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("UnmarshalText(rewind) error = %v, want ErrInvalidParameter", err)
	}
}
