package kommander

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outbound command discriminators.
const (
	TagAuthentication     = "KommanderMsg_Authentication"
	TagIndexInvokePlan    = "KommanderMsg_IndexInvokePrePlan"
	TagPlanNextOrPrevious = "KommanderMsg_PrePlanNextOrPre"
	TagSwitchGroup        = "KommanderMsg_SwitchPlanPreGroup"
	TagPlay               = "KommanderMsg_Play"
	TagPause              = "KommanderMsg_Pause"
	TagStop               = "KommanderMsg_Stop"
	TagMute               = "KommanderMsg_Mute"
	TagVolume             = "KommanderMsg_Volume"
	TagPreviousPage       = "KommanderMsg_PrevPage"
	TagNextPage           = "KommanderMsg_NextPage"
	TagBlackScreen        = "KommanderMsg_UpdateBlackScreen"
	TagScreenLight        = "KommanderMsg_SetScreenLight"
	TagScreenContrast     = "KommanderMsg_SetScreenContrast"
	TagEnableAllMonitor   = "KommanderMsg_EnableAllMonitor"
	TagRoleChange         = "KommanderMsg_RoleChange"
	TagLock               = "KommanderMsg_SetKommanderLock"
	TagCallPlanByName     = "KommanderMsg_CallPrePlanByName"
	TagCallTimeline       = "KommanderMsg_CallTimeLine"
	TagMediaLibrary       = "KommanderMsg_GetMediaLibrary"
)

// Static identity sent in the authentication handshake.
const (
	authIdentificationID = "10"
	authUsername         = "streamDeck"
	authPassword         = "streamDeck"
	authIP               = "192.168.0.129"
	authDeviceID         = "103291"
	authConnectionType   = 5
)

// Relative step sentinels understood by the device for volume, screen light
// and screen contrast.
const (
	StepIncrease = -1
	StepDecrease = -2
)

// Command limits.
const (
	MaxPlanIndex  = 32
	MaxGroupIndex = 32
	minVolume     = 0
	maxVolume     = 100
	minScreen     = -100
	maxScreen     = 100
)

// Command is one outbound request envelope.
//
// Commands are value objects built by the constructors in this file. They
// carry no transport state and are not retained after sending.
type Command struct {
	// Tag is the KommanderMsg discriminator.
	Tag string

	// Params is the params sub-object. Nil omits the field on the wire.
	Params map[string]any

	// IdentificationID is only set on the authentication command.
	IdentificationID string
}

// commandEnvelope is the wire form of a Command.
type commandEnvelope struct {
	KommanderMsg     string         `json:"KommanderMsg"`
	IdentificationID string         `json:"identificationID,omitempty"`
	Params           map[string]any `json:"params,omitempty"`
}

// MarshalJSON encodes the command as a KommanderMsg envelope.
func (c Command) MarshalJSON() ([]byte, error) {
	return json.Marshal(commandEnvelope{
		KommanderMsg:     c.Tag,
		IdentificationID: c.IdentificationID,
		Params:           c.Params,
	})
}

// String returns a short description for logs.
func (c Command) String() string {
	if len(c.Params) == 0 {
		return c.Tag
	}
	return fmt.Sprintf("%s %v", c.Tag, c.Params)
}

// ToggleEncoding selects how toggle-style commands are encoded for a
// deployment. Some device firmwares only accept the bare trigger, others
// accept an explicit target state.
type ToggleEncoding string

// Toggle encodings.
const (
	// ToggleImplicit sends the fixed trigger and lets the device flip state.
	ToggleImplicit ToggleEncoding = "implicit"

	// ToggleExplicit adds the target state when one is requested.
	ToggleExplicit ToggleEncoding = "explicit"
)

// ParseToggleEncoding parses a configured toggle encoding. Empty selects
// ToggleImplicit.
func ParseToggleEncoding(s string) (ToggleEncoding, error) {
	switch ToggleEncoding(strings.ToLower(s)) {
	case "", ToggleImplicit:
		return ToggleImplicit, nil
	case ToggleExplicit:
		return ToggleExplicit, nil
	default:
		return "", fmt.Errorf("%w: toggle encoding %q", ErrInvalidParameter, s)
	}
}

// Toggle is the requested outcome of a toggle command.
type Toggle int

// Toggle targets.
const (
	ToggleFlip Toggle = iota
	ToggleOn
	ToggleOff
)

// PlayState is a transport state of the global player.
type PlayState int

// Play states as reported by KommanderMsg_GlobalPlayState.
const (
	PlayStopped PlayState = 0
	PlayPlaying PlayState = 1
	PlayPaused  PlayState = 2
)

// String returns the option name of the play state.
func (s PlayState) String() string {
	switch s {
	case PlayPlaying:
		return "play"
	case PlayPaused:
		return "pause"
	case PlayStopped:
		return "stop"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText encodes the play state by name.
func (s PlayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a play state name.
func (s *PlayState) UnmarshalText(text []byte) error {
	state, err := ParsePlayState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// ParsePlayState parses "play", "pause" or "stop" (case insensitive).
func ParsePlayState(s string) (PlayState, error) {
	switch strings.ToLower(s) {
	case "play", "playing":
		return PlayPlaying, nil
	case "pause", "paused":
		return PlayPaused, nil
	case "stop", "stopped":
		return PlayStopped, nil
	default:
		return 0, fmt.Errorf("%w: play state %q", ErrInvalidParameter, s)
	}
}

// Authenticate returns the fixed handshake command sent on every open.
func Authenticate() Command {
	return Command{
		Tag:              TagAuthentication,
		IdentificationID: authIdentificationID,
		Params: map[string]any{
			"username":   authUsername,
			"password":   authPassword,
			"ip":         authIP,
			"deviceId":   authDeviceID,
			"connetType": authConnectionType,
		},
	}
}

// InvokePlan invokes the plan with the given 1-based index.
func InvokePlan(plan int) (Command, error) {
	if plan < 1 || plan > MaxPlanIndex {
		return Command{}, fmt.Errorf("%w: plan %d not in 1..%d", ErrInvalidParameter, plan, MaxPlanIndex)
	}
	return Command{
		Tag:    TagIndexInvokePlan,
		Params: map[string]any{"index": plan - 1, "onlySetReal": true},
	}, nil
}

// NavigatePlan moves to the next (true) or previous (false) plan.
func NavigatePlan(next bool) Command {
	return Command{
		Tag:    TagPlanNextOrPrevious,
		Params: map[string]any{"next": next},
	}
}

// SwitchGroup selects the plan group with the given 1-based index.
func SwitchGroup(group int) (Command, error) {
	if group < 1 || group > MaxGroupIndex {
		return Command{}, fmt.Errorf("%w: group %d not in 1..%d", ErrInvalidParameter, group, MaxGroupIndex)
	}
	return Command{
		Tag:    TagSwitchGroup,
		Params: map[string]any{"index": group - 1},
	}, nil
}

// StepGroup moves to the next (true) or previous (false) plan group.
func StepGroup(next bool) Command {
	direction := "pre"
	if next {
		direction = "next"
	}
	return Command{
		Tag:    TagSwitchGroup,
		Params: map[string]any{"type": direction},
	}
}

// SetPlayState changes the global play state.
func SetPlayState(state PlayState) (Command, error) {
	var tag string
	switch state {
	case PlayPlaying:
		tag = TagPlay
	case PlayPaused:
		tag = TagPause
	case PlayStopped:
		tag = TagStop
	default:
		return Command{}, fmt.Errorf("%w: play state %d", ErrInvalidParameter, int(state))
	}
	return Command{
		Tag:    tag,
		Params: map[string]any{"onlySetReal": true},
	}, nil
}

// ToggleMute toggles audio mute.
func ToggleMute(enc ToggleEncoding, target Toggle) Command {
	return toggleCommand(TagMute, "mute", enc, target, nil)
}

// SetVolume sets the volume to an absolute 0..100 value or steps it with
// StepIncrease / StepDecrease.
func SetVolume(volume int) (Command, error) {
	if !validLevel(volume, minVolume, maxVolume) {
		return Command{}, fmt.Errorf("%w: volume %d", ErrInvalidParameter, volume)
	}
	return Command{
		Tag:    TagVolume,
		Params: map[string]any{"volume": volume},
	}, nil
}

// TurnPage turns the global page forward (true) or back (false).
func TurnPage(next bool) Command {
	tag := TagPreviousPage
	if next {
		tag = TagNextPage
	}
	return Command{
		Tag:    tag,
		Params: map[string]any{"isGlobalTurnPage": true, "onlySetReal": true},
	}
}

// ToggleBlackScreen blanks or restores every output screen.
func ToggleBlackScreen(enc ToggleEncoding, target Toggle) Command {
	return toggleCommand(TagBlackScreen, "blackscreen", enc, target, nil)
}

// SetBrightness sets screen light to -100..100 or steps it. The device
// always reads -1 and -2 as step sentinels.
func SetBrightness(light int) (Command, error) {
	if !validLevel(light, minScreen, maxScreen) {
		return Command{}, fmt.Errorf("%w: brightness %d", ErrInvalidParameter, light)
	}
	return Command{
		Tag:    TagScreenLight,
		Params: map[string]any{"light": light},
	}, nil
}

// SetContrast sets screen contrast to -100..100 or steps it.
func SetContrast(contrast int) (Command, error) {
	if !validLevel(contrast, minScreen, maxScreen) {
		return Command{}, fmt.Errorf("%w: contrast %d", ErrInvalidParameter, contrast)
	}
	return Command{
		Tag:    TagScreenContrast,
		Params: map[string]any{"contrast": contrast},
	}, nil
}

// SetOutput enables or disables all monitor outputs.
func SetOutput(on bool) Command {
	return Command{
		Tag:    TagEnableAllMonitor,
		Params: map[string]any{"bOpen": on},
	}
}

// SwitchRole hands over master control. The implicit form always sends
// bSwitch:true.
func SwitchRole(enc ToggleEncoding, target Toggle) Command {
	return toggleCommand(TagRoleChange, "bSwitch", enc, target, map[string]any{"bSwitch": true})
}

// ToggleLock toggles the operator lock.
func ToggleLock(enc ToggleEncoding, target Toggle) Command {
	return toggleCommand(TagLock, "lock", enc, target, nil)
}

// CallPlanByName invokes a plan by its display name.
func CallPlanByName(name string) (Command, error) {
	if strings.TrimSpace(name) == "" {
		return Command{}, fmt.Errorf("%w: empty plan name", ErrInvalidParameter)
	}
	return Command{
		Tag:    TagCallPlanByName,
		Params: map[string]any{"select": name},
	}, nil
}

// TimelineStatus is the timeline transport request for CallTimeline.
type TimelineStatus int

// Timeline statuses accepted by KommanderMsg_CallTimeLine.
const (
	TimelinePlay TimelineStatus = iota + 1
	TimelinePause
	TimelineStop
	TimelinePrevious
	TimelineNext
	TimelineLoop
)

// CallTimeline drives the timeline with the given 1-based index.
func CallTimeline(timeline int, status TimelineStatus) (Command, error) {
	if timeline < 1 {
		return Command{}, fmt.Errorf("%w: timeline %d", ErrInvalidParameter, timeline)
	}
	if status < TimelinePlay || status > TimelineLoop {
		return Command{}, fmt.Errorf("%w: timeline status %d not in 1..6", ErrInvalidParameter, int(status))
	}
	return Command{
		Tag:    TagCallTimeline,
		Params: map[string]any{"index": timeline - 1, "status": int(status)},
	}, nil
}

// QueryMediaLibrary requests the grouped plan listing.
func QueryMediaLibrary() Command {
	return Command{Tag: TagMediaLibrary}
}

// toggleCommand builds a toggle-style command. The implicit params are used
// for ToggleImplicit or ToggleFlip.
func toggleCommand(tag, key string, enc ToggleEncoding, target Toggle, implicit map[string]any) Command {
	if enc != ToggleExplicit || target == ToggleFlip {
		return Command{Tag: tag, Params: implicit}
	}
	return Command{
		Tag:    tag,
		Params: map[string]any{key: target == ToggleOn},
	}
}

// validLevel accepts an absolute level in [lo, hi] or a step sentinel.
func validLevel(v, lo, hi int) bool {
	if v == StepIncrease || v == StepDecrease {
		return true
	}
	return v >= lo && v <= hi
}
