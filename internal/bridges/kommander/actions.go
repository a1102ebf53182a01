package kommander

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Action ids. These match the option ids used by existing control-surface
// button profiles, so saved layouts keep working.
const (
	ActionCallPlan         = "callPlan"
	ActionChangePlanGroup  = "changePlanGroup"
	ActionChangePlayStatus = "changePlayStatus"
	ActionSoundControl     = "soundControl"
	ActionSetVolume        = "setVolume"
	ActionPageTurn         = "pageTurn"
	ActionScreenOnOff      = "screenOnOff"
	ActionBrightContrast   = "brightContrast"
	ActionSetBrightness    = "setBrightness"
	ActionSetContrast      = "setContrast"
	ActionOutputOnOff      = "outputOnOff"
	ActionMasterSwitch     = "masterSwitch"
	ActionLock             = "lock"
	ActionCallPlanByName   = "callPlanByName"
	ActionCallTimeline     = "callTimeline"
	ActionMediaLibrary     = "mediaLibrary"
)

// Options is the option set of one action invocation, as decoded from JSON.
type Options map[string]any

// Choice is one entry of a dropdown option.
type Choice struct {
	ID    any    `json:"id"`
	Label string `json:"label"`
}

// ActionOption describes one configurable option of an action.
type ActionOption struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Default any      `json:"default,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// Action is a catalog entry: a user-facing operation and its options.
type Action struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Options []ActionOption `json:"options"`

	build func(opts Options, enc ToggleEncoding) (Command, error)
}

// Catalog maps action invocations onto commands for one deployment.
//
// Thread Safety: a Catalog is immutable after construction.
type Catalog struct {
	encoding ToggleEncoding
	actions  []Action
	byID     map[string]int
}

// NewCatalog builds the action catalog using the given toggle encoding.
func NewCatalog(enc ToggleEncoding) *Catalog {
	c := &Catalog{
		encoding: enc,
		actions:  defaultActions(),
		byID:     make(map[string]int),
	}
	for i, a := range c.actions {
		c.byID[a.ID] = i
	}
	return c
}

// Encoding returns the toggle encoding of the catalog.
func (c *Catalog) Encoding() ToggleEncoding {
	return c.encoding
}

// Actions returns the action definitions in display order.
func (c *Catalog) Actions() []Action {
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Lookup returns the definition of an action.
func (c *Catalog) Lookup(id string) (Action, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Action{}, false
	}
	return c.actions[i], true
}

// Encode turns an action invocation into a command. Missing options take
// their defaults.
//
// Returns:
//   - Command: ready to hand to Manager.Send
//   - error: ErrUnknownAction or ErrInvalidParameter (wrapped)
func (c *Catalog) Encode(id string, opts Options) (Command, error) {
	a, ok := c.Lookup(id)
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}

	merged := make(Options, len(a.Options))
	for _, o := range a.Options {
		if o.Default != nil {
			merged[o.ID] = o.Default
		}
	}
	for k, v := range opts {
		merged[k] = v
	}

	cmd, err := a.build(merged, c.encoding)
	if err != nil {
		return Command{}, fmt.Errorf("action %s: %w", id, err)
	}
	return cmd, nil
}

func defaultActions() []Action {
	planChoices := []Choice{
		{ID: "PreviousPlan", Label: "Previous Plan"},
		{ID: "NextPlan", Label: "Next Plan"},
	}
	groupChoices := []Choice{
		{ID: "pre", Label: "Previous Group"},
		{ID: "next", Label: "Next Group"},
	}
	for i := 1; i <= MaxPlanIndex; i++ {
		planChoices = append(planChoices, Choice{ID: i, Label: fmt.Sprintf("Plan_%d", i)})
		groupChoices = append(groupChoices, Choice{ID: i, Label: fmt.Sprintf("Group_%d", i)})
	}

	targetOption := ActionOption{
		ID:    "target",
		Label: "Target",
		Type:  "dropdown",
		Choices: []Choice{
			{ID: "toggle", Label: "Toggle"},
			{ID: "on", Label: "On"},
			{ID: "off", Label: "Off"},
		},
		Default: "toggle",
	}

	return []Action{
		{
			ID:   ActionCallPlan,
			Name: "Call Plan",
			Options: []ActionOption{{
				ID: "callPlan", Label: "Plan", Type: "dropdown",
				Choices: planChoices, Default: "PreviousPlan",
			}},
			build: buildCallPlan,
		},
		{
			ID:   ActionChangePlanGroup,
			Name: "Change Plan Group",
			Options: []ActionOption{{
				ID: "changePlanGroup", Label: "Group", Type: "dropdown",
				Choices: groupChoices, Default: "next",
			}},
			build: buildChangePlanGroup,
		},
		{
			ID:   ActionChangePlayStatus,
			Name: "Change Play Status",
			Options: []ActionOption{{
				ID: "changePlayStatus", Label: "ChangePlayStatus", Type: "dropdown",
				Choices: []Choice{{ID: "Play", Label: "Play"}, {ID: "Pause", Label: "Pause"}, {ID: "Stop", Label: "Stop"}},
				Default: "Play",
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				state, err := ParsePlayState(optionString(opts, "changePlayStatus"))
				if err != nil {
					return Command{}, err
				}
				return SetPlayState(state)
			},
		},
		{
			ID:   ActionSoundControl,
			Name: "Sound Control",
			Options: []ActionOption{{
				ID: "soundControl", Label: "SoundControl", Type: "dropdown",
				Choices: []Choice{{ID: 0, Label: "Mute/Unmute"}, {ID: StepIncrease, Label: "Volume+"}, {ID: StepDecrease, Label: "Volume-"}},
				Default: StepIncrease,
			}, targetOption},
			build: buildSoundControl,
		},
		{
			ID:   ActionSetVolume,
			Name: "Set Volume",
			Options: []ActionOption{{
				ID: "volume", Label: "Volume (0-100)", Type: "number", Default: 50,
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				v, err := optionInt(opts, "volume")
				if err != nil {
					return Command{}, err
				}
				return SetVolume(v)
			},
		},
		{
			ID:   ActionPageTurn,
			Name: "Page Turn",
			Options: []ActionOption{{
				ID: "pageTurn", Label: "PageTurn", Type: "dropdown",
				Choices: []Choice{{ID: "PrevPage", Label: "PageUP"}, {ID: "NextPage", Label: "PageDown"}},
				Default: "NextPage",
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				switch optionString(opts, "pageTurn") {
				case "PrevPage":
					return TurnPage(false), nil
				case "NextPage":
					return TurnPage(true), nil
				default:
					return Command{}, fmt.Errorf("%w: pageTurn %v", ErrInvalidParameter, opts["pageTurn"])
				}
			},
		},
		{
			ID:      ActionScreenOnOff,
			Name:    "Screen On/Off",
			Options: []ActionOption{targetOption},
			build: func(opts Options, enc ToggleEncoding) (Command, error) {
				t, err := optionToggle(opts)
				if err != nil {
					return Command{}, err
				}
				return ToggleBlackScreen(enc, t), nil
			},
		},
		{
			ID:   ActionBrightContrast,
			Name: "Bright&Contrast",
			Options: []ActionOption{{
				ID: "brightContrast", Label: "Bright&Contrast", Type: "dropdown",
				Choices: []Choice{
					{ID: "Brightness+", Label: "Brightness+"},
					{ID: "Brightness-", Label: "Brightness-"},
					{ID: "Contrast+", Label: "Contrast+"},
					{ID: "Contrast-", Label: "Contrast-"},
				},
				Default: "Brightness+",
			}},
			build: buildBrightContrast,
		},
		{
			ID:   ActionSetBrightness,
			Name: "Set Brightness",
			Options: []ActionOption{{
				ID: "light", Label: "Brightness (-100-100)", Type: "number", Default: 0,
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				v, err := optionInt(opts, "light")
				if err != nil {
					return Command{}, err
				}
				return SetBrightness(v)
			},
		},
		{
			ID:   ActionSetContrast,
			Name: "Set Contrast",
			Options: []ActionOption{{
				ID: "contrast", Label: "Contrast (-100-100)", Type: "number", Default: 0,
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				v, err := optionInt(opts, "contrast")
				if err != nil {
					return Command{}, err
				}
				return SetContrast(v)
			},
		},
		{
			ID:   ActionOutputOnOff,
			Name: "Output On/Off",
			Options: []ActionOption{{
				ID: "outputOnOff", Label: "Output On/Off", Type: "dropdown",
				Choices: []Choice{{ID: 0, Label: "Off"}, {ID: 1, Label: "On"}},
				Default: 1,
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				v, err := optionInt(opts, "outputOnOff")
				if err != nil {
					return Command{}, err
				}
				return SetOutput(v != 0), nil
			},
		},
		{
			ID:      ActionMasterSwitch,
			Name:    "Master Switch",
			Options: []ActionOption{targetOption},
			build: func(opts Options, enc ToggleEncoding) (Command, error) {
				t, err := optionToggle(opts)
				if err != nil {
					return Command{}, err
				}
				return SwitchRole(enc, t), nil
			},
		},
		{
			ID:      ActionLock,
			Name:    "Lock",
			Options: []ActionOption{targetOption},
			build: func(opts Options, enc ToggleEncoding) (Command, error) {
				t, err := optionToggle(opts)
				if err != nil {
					return Command{}, err
				}
				return ToggleLock(enc, t), nil
			},
		},
		{
			ID:   ActionCallPlanByName,
			Name: "Call Plan By Name",
			Options: []ActionOption{{
				ID: "name", Label: "Plan name", Type: "textinput",
			}},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				return CallPlanByName(optionString(opts, "name"))
			},
		},
		{
			ID:   ActionCallTimeline,
			Name: "Call Timeline",
			Options: []ActionOption{
				{ID: "timeline", Label: "Timeline", Type: "number", Default: 1},
				{
					ID: "status", Label: "Status", Type: "dropdown",
					Choices: []Choice{
						{ID: int(TimelinePlay), Label: "Play"},
						{ID: int(TimelinePause), Label: "Pause"},
						{ID: int(TimelineStop), Label: "Stop"},
						{ID: int(TimelinePrevious), Label: "Previous"},
						{ID: int(TimelineNext), Label: "Next"},
						{ID: int(TimelineLoop), Label: "Loop"},
					},
					Default: int(TimelinePlay),
				},
			},
			build: func(opts Options, _ ToggleEncoding) (Command, error) {
				idx, err := optionInt(opts, "timeline")
				if err != nil {
					return Command{}, err
				}
				status, err := optionInt(opts, "status")
				if err != nil {
					return Command{}, err
				}
				return CallTimeline(idx, TimelineStatus(status))
			},
		},
		{
			ID:      ActionMediaLibrary,
			Name:    "Refresh Media Library",
			Options: []ActionOption{},
			build: func(Options, ToggleEncoding) (Command, error) {
				return QueryMediaLibrary(), nil
			},
		},
	}
}

func buildCallPlan(opts Options, _ ToggleEncoding) (Command, error) {
	switch optionString(opts, "callPlan") {
	case "PreviousPlan":
		return NavigatePlan(false), nil
	case "NextPlan":
		return NavigatePlan(true), nil
	}
	plan, err := optionInt(opts, "callPlan")
	if err != nil {
		return Command{}, err
	}
	return InvokePlan(plan)
}

func buildChangePlanGroup(opts Options, _ ToggleEncoding) (Command, error) {
	switch optionString(opts, "changePlanGroup") {
	case "pre":
		return StepGroup(false), nil
	case "next":
		return StepGroup(true), nil
	}
	group, err := optionInt(opts, "changePlanGroup")
	if err != nil {
		return Command{}, err
	}
	return SwitchGroup(group)
}

func buildSoundControl(opts Options, enc ToggleEncoding) (Command, error) {
	v, err := optionInt(opts, "soundControl")
	if err != nil {
		return Command{}, err
	}
	switch v {
	case 0:
		t, err := optionToggle(opts)
		if err != nil {
			return Command{}, err
		}
		return ToggleMute(enc, t), nil
	case StepIncrease, StepDecrease:
		return SetVolume(v)
	default:
		return Command{}, fmt.Errorf("%w: soundControl %d", ErrInvalidParameter, v)
	}
}

func buildBrightContrast(opts Options, _ ToggleEncoding) (Command, error) {
	switch optionString(opts, "brightContrast") {
	case "Brightness+":
		return SetBrightness(StepIncrease)
	case "Brightness-":
		return SetBrightness(StepDecrease)
	case "Contrast+":
		return SetContrast(StepIncrease)
	case "Contrast-":
		return SetContrast(StepDecrease)
	default:
		return Command{}, fmt.Errorf("%w: brightContrast %v", ErrInvalidParameter, opts["brightContrast"])
	}
}

// optionString returns a string option, or "" when absent or not a string.
func optionString(opts Options, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optionInt reads an integer option. Dropdown ids arrive as JSON numbers or
// as numeric strings depending on the client.
func optionInt(opts Options, key string) (int, error) {
	raw, ok := opts[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing option %q", ErrInvalidParameter, key)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: option %q is not an integer", ErrInvalidParameter, key)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: option %q: %w", ErrInvalidParameter, key, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: option %q: %w", ErrInvalidParameter, key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: option %q has type %T", ErrInvalidParameter, key, raw)
	}
}

// optionToggle reads the "target" option of toggle actions.
func optionToggle(opts Options) (Toggle, error) {
	switch strings.ToLower(optionString(opts, "target")) {
	case "", "toggle":
		return ToggleFlip, nil
	case "on":
		return ToggleOn, nil
	case "off":
		return ToggleOff, nil
	default:
		return ToggleFlip, fmt.Errorf("%w: target %v", ErrInvalidParameter, opts["target"])
	}
}
