package kommander

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// discriminatorField names the envelope field carrying the message tag.
const discriminatorField = "KommanderMsg"

// Inbound notification tags consumed for state updates.
const (
	TagGlobalPlayState = "KommanderMsg_GlobalPlayState"
	TagPlanUsageMark   = "KommanderMsg_PrePlanUsageMark"
)

// NotificationKind classifies an inbound message.
type NotificationKind int

// Notification kinds.
const (
	// NotificationOpaque is a payload that is not well-formed JSON.
	NotificationOpaque NotificationKind = iota

	// NotificationUnrecognized is JSON without a known KommanderMsg tag.
	NotificationUnrecognized

	NotificationAuthentication
	NotificationMediaLibrary
	NotificationPlayState
	NotificationMute
	NotificationBlackScreen
	NotificationMonitor
	NotificationLock
	NotificationGroupSwitch
	NotificationPlanUsage
)

var notificationNames = map[NotificationKind]string{
	NotificationOpaque:         "opaque",
	NotificationUnrecognized:   "unrecognized",
	NotificationAuthentication: "authentication",
	NotificationMediaLibrary:   "media_library",
	NotificationPlayState:      "play_state",
	NotificationMute:           "mute",
	NotificationBlackScreen:    "black_screen",
	NotificationMonitor:        "monitor",
	NotificationLock:           "lock",
	NotificationGroupSwitch:    "group_switch",
	NotificationPlanUsage:      "plan_usage",
}

// String returns the metric/log name of the kind.
func (k NotificationKind) String() string {
	if s, ok := notificationNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// notificationKinds maps recognised tags to kinds. Several tags are shared
// with the outbound catalog because the device echoes the request tag.
var notificationKinds = map[string]NotificationKind{
	TagAuthentication:   NotificationAuthentication,
	TagMediaLibrary:     NotificationMediaLibrary,
	TagGlobalPlayState:  NotificationPlayState,
	TagMute:             NotificationMute,
	TagBlackScreen:      NotificationBlackScreen,
	TagEnableAllMonitor: NotificationMonitor,
	TagLock:             NotificationLock,
	TagSwitchGroup:      NotificationGroupSwitch,
	TagPlanUsageMark:    NotificationPlanUsage,
}

// Notification is one decoded inbound message.
type Notification struct {
	Kind NotificationKind

	// Tag is the discriminator, empty for opaque payloads or when absent.
	Tag string

	// Value is the decoded JSON value (numbers as json.Number), or the raw
	// payload as a string for opaque notifications.
	Value any

	// Raw is the payload as received.
	Raw []byte
}

// Opaque reports whether the payload failed JSON decoding.
func (n Notification) Opaque() bool {
	return n.Kind == NotificationOpaque
}

// DecodeNotification classifies a raw payload. It never fails: payloads
// that are not a single JSON value become opaque string scalars.
func DecodeNotification(raw []byte) Notification {
	v, err := decodeJSON(raw)
	if err != nil {
		return Notification{Kind: NotificationOpaque, Value: string(raw), Raw: raw}
	}

	n := Notification{Kind: NotificationUnrecognized, Value: v, Raw: raw}
	obj, ok := v.(map[string]any)
	if !ok {
		return n
	}
	tag, ok := obj[discriminatorField].(string)
	if !ok {
		return n
	}
	n.Tag = tag
	if kind, known := notificationKinds[tag]; known {
		n.Kind = kind
	}
	return n
}

// decodeJSON decodes exactly one JSON value, keeping numbers exact.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedNotification)
	}
	return v, nil
}

// facetUpdates extracts the facet values carried by a recognised
// notification. The body has already passed schema validation.
func facetUpdates(n Notification) (map[Facet]any, error) {
	obj, ok := n.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s body is not an object", ErrMalformedNotification, n.Tag)
	}
	data, _ := obj["data"].(map[string]any)

	switch n.Kind {
	case NotificationAuthentication:
		code, err := intField(obj, "code")
		if err != nil {
			return nil, err
		}
		return map[Facet]any{FacetAuthCode: code}, nil

	case NotificationMediaLibrary:
		return map[Facet]any{FacetMediaLibrary: extractedText(n, "data", obj["data"])}, nil

	case NotificationPlayState:
		state, err := intField(data, "state")
		if err != nil {
			return nil, err
		}
		return map[Facet]any{FacetPlayStatus: PlayState(state)}, nil

	case NotificationMute:
		return boolFacet(data, "mute", FacetMute)
	case NotificationBlackScreen:
		return boolFacet(data, "blackscreen", FacetBlackScreen)
	case NotificationMonitor:
		return boolFacet(data, "state", FacetOutput)
	case NotificationLock:
		return boolFacet(data, "lock", FacetLock)

	case NotificationGroupSwitch:
		idx, err := intField(data, "index")
		if err != nil {
			return nil, err
		}
		return map[Facet]any{FacetGroupIndex: idx}, nil

	case NotificationPlanUsage:
		out := make(map[Facet]any)
		if _, ok := data["outPutingId"]; ok {
			id, err := intField(data, "outPutingId")
			if err != nil {
				return nil, err
			}
			out[FacetPlanIndex] = id
		}
		if _, ok := data["nOutGroupId"]; ok {
			id, err := intField(data, "nOutGroupId")
			if err != nil {
				return nil, err
			}
			out[FacetOutputGroup] = id
		}
		if s, ok := data["outGroupName"].(string); ok {
			out[FacetOutputGroupName] = s
		}
		if s, ok := data["outPutingPrePlanName"].(string); ok {
			out[FacetPlanName] = s
		}
		return out, nil

	default:
		return nil, nil
	}
}

func boolFacet(data map[string]any, key string, f Facet) (map[Facet]any, error) {
	b, err := boolField(data, key)
	if err != nil {
		return nil, err
	}
	return map[Facet]any{f: b}, nil
}

// intField reads an integral JSON number.
func intField(obj map[string]any, key string) (int, error) {
	num, ok := obj[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: field %q is not a number", ErrMalformedNotification, key)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: field %q: %w", ErrMalformedNotification, key, err)
	}
	return int(n), nil
}

// boolField reads a flag sent either as a JSON boolean or as 0/1.
func boolField(obj map[string]any, key string) (bool, error) {
	switch v := obj[key].(type) {
	case bool:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return false, fmt.Errorf("%w: field %q: %w", ErrMalformedNotification, key, err)
		}
		return n != 0, nil
	default:
		return false, fmt.Errorf("%w: field %q is not a flag", ErrMalformedNotification, key)
	}
}

// valueText renders a decoded value as a variable value: objects and arrays
// as compact JSON, strings verbatim, numbers in their received form.
func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return fmt.Sprint(x)
		}
		return string(bytes.TrimRight(buf.Bytes(), "\n"))
	}
}

// extractedText renders the value v found at path in n. Objects and arrays
// are copied from the received bytes so key order and escaping match the
// device's message.
func extractedText(n Notification, path string, v any) string {
	switch v.(type) {
	case map[string]any, []any:
		if raw, ok := rawValueAt(n.Raw, path); ok {
			var buf bytes.Buffer
			if err := json.Compact(&buf, raw); err == nil {
				return buf.String()
			}
		}
	}
	return valueText(v)
}

// messageText renders a whole notification. Object payloads keep their
// received key order.
func messageText(n Notification) string {
	if n.Opaque() {
		return n.Value.(string)
	}
	switch n.Value.(type) {
	case map[string]any, []any:
		var buf bytes.Buffer
		if err := json.Compact(&buf, n.Raw); err == nil {
			return buf.String()
		}
	}
	return valueText(n.Value)
}
