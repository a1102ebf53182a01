package mqtt

import "strings"

// TopicRoot is the first level of every bridge topic.
const TopicRoot = "kommander"

// Topics builds the MQTT topics of one bridge instance.
//
// All topics share the scheme kommander/{instance}/{category}[/{name}]:
//
//	topics := mqtt.Topics{Instance: "stage-left"}
//	topics.Variable("plan_name") // kommander/stage-left/variable/plan_name
type Topics struct {
	Instance string
}

func (t Topics) base() string {
	return TopicRoot + "/" + t.Instance
}

// Status returns the retained connection status topic.
//
// Example: kommander/stage-left/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Presence returns the bridge online/offline topic. It carries the Last
// Will and Testament.
//
// Example: kommander/stage-left/presence
func (t Topics) Presence() string {
	return t.base() + "/presence"
}

// Health returns the periodic health topic.
//
// Example: kommander/stage-left/health
func (t Topics) Health() string {
	return t.base() + "/health"
}

// Variable returns the retained topic of one exported variable.
//
// Example: kommander/stage-left/variable/plan_name
func (t Topics) Variable(name string) string {
	return t.base() + "/variable/" + name
}

// Feedback returns the retained topic of one feedback kind.
//
// Example: kommander/stage-left/feedback/mute
func (t Topics) Feedback(kind string) string {
	return t.base() + "/feedback/" + kind
}

// Action returns the command topic of one action.
//
// Example: kommander/stage-left/action/callPlan
func (t Topics) Action(actionID string) string {
	return t.base() + "/action/" + actionID
}

// AllActions returns the wildcard subscription for every action topic.
//
// Example: kommander/stage-left/action/+
func (t Topics) AllActions() string {
	return t.base() + "/action/+"
}

// ActionFromTopic extracts the action id from an action topic of this
// instance. ok is false for any other topic.
func (t Topics) ActionFromTopic(topic string) (actionID string, ok bool) {
	prefix := t.base() + "/action/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	actionID = strings.TrimPrefix(topic, prefix)
	if actionID == "" || strings.Contains(actionID, "/") {
		return "", false
	}
	return actionID, true
}
