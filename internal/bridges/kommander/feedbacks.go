package kommander

import (
	"fmt"
	"strconv"
	"strings"
)

// Feedback kinds. Each kind is an equality predicate over one facet.
const (
	FeedbackPlayStatus     = "play_status"
	FeedbackMute           = "mute"
	FeedbackBlackScreen    = "black_screen"
	FeedbackOutput         = "output"
	FeedbackLock           = "lock"
	FeedbackActiveGroup    = "active_group"
	FeedbackActivePlan     = "active_plan"
	FeedbackActivePlanName = "active_plan_name"
)

// FeedbackDefinition describes a feedback predicate.
type FeedbackDefinition struct {
	Kind        string `json:"kind"`
	Facet       Facet  `json:"facet"`
	Description string `json:"description"`
	OptionType  string `json:"option_type"`
}

var feedbackDefinitions = []FeedbackDefinition{
	{Kind: FeedbackPlayStatus, Facet: FacetPlayStatus, Description: "Global play state equals play, pause or stop", OptionType: "play_state"},
	{Kind: FeedbackMute, Facet: FacetMute, Description: "Audio mute equals option", OptionType: "boolean"},
	{Kind: FeedbackBlackScreen, Facet: FacetBlackScreen, Description: "Black screen equals option", OptionType: "boolean"},
	{Kind: FeedbackOutput, Facet: FacetOutput, Description: "Monitor output enabled equals option", OptionType: "boolean"},
	{Kind: FeedbackLock, Facet: FacetLock, Description: "Operator lock equals option", OptionType: "boolean"},
	{Kind: FeedbackActiveGroup, Facet: FacetGroupIndex, Description: "Active plan group (1-based) equals option", OptionType: "integer"},
	{Kind: FeedbackActivePlan, Facet: FacetPlanIndex, Description: "Plan in output (1-based) equals option", OptionType: "integer"},
	{Kind: FeedbackActivePlanName, Facet: FacetPlanName, Description: "Plan in output name equals option", OptionType: "string"},
}

// FeedbackDefinitions returns the feedback catalog.
func FeedbackDefinitions() []FeedbackDefinition {
	out := make([]FeedbackDefinition, len(feedbackDefinitions))
	copy(out, feedbackDefinitions)
	return out
}

// LookupFeedback returns the definition of a feedback kind.
func LookupFeedback(kind string) (FeedbackDefinition, bool) {
	for _, d := range feedbackDefinitions {
		if d.Kind == kind {
			return d, true
		}
	}
	return FeedbackDefinition{}, false
}

// feedbackKindsFor returns the feedback kinds that read the given facets.
func feedbackKindsFor(facets []Facet) []string {
	var kinds []string
	for _, d := range feedbackDefinitions {
		for _, f := range facets {
			if d.Facet == f {
				kinds = append(kinds, d.Kind)
				break
			}
		}
	}
	return kinds
}

// Evaluate answers a feedback predicate from the cache. The option is
// parsed according to the kind: play states by name, booleans, 1-based
// indexes, or a literal plan name.
//
// Evaluate never blocks on the device and has no side effects.
func (c *StateCache) Evaluate(kind, option string) (bool, error) {
	def, ok := LookupFeedback(kind)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownFeedback, kind)
	}

	want, err := parseFeedbackOption(def, option)
	if err != nil {
		return false, err
	}
	return c.Get(def.Facet) == want, nil
}

// parseFeedbackOption converts an option into the facet's value type.
func parseFeedbackOption(def FeedbackDefinition, option string) (any, error) {
	switch def.OptionType {
	case "play_state":
		return ParsePlayState(option)
	case "boolean":
		b, err := parseBoolOption(option)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "integer":
		n, err := strconv.Atoi(strings.TrimSpace(option))
		if err != nil {
			return nil, fmt.Errorf("%w: %s option %q", ErrInvalidParameter, def.Kind, option)
		}
		// Options are 1-based; the cache holds the device's 0-based index.
		return n - 1, nil
	default:
		return option, nil
	}
}

func parseBoolOption(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("%w: boolean option %q", ErrInvalidParameter, s)
	}
}
