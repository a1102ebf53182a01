package kommander

import (
	"context"
	"time"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// StatusReporter receives connection status changes.
type StatusReporter interface {
	UpdateStatus(status Status, message string)
}

// VariableExporter receives exported variable definitions and values.
// This interface is satisfied by *variables.Store.
type VariableExporter interface {
	// SetVariableDefinitions replaces the set of defined variable names.
	SetVariableDefinitions(names []string)

	// SetVariableValues writes variable values. Names not yet defined are
	// still stored.
	SetVariableValues(values map[string]string)
}

// FeedbackChecker is asked to re-evaluate feedbacks after facets change.
type FeedbackChecker interface {
	CheckFeedbacks(kinds ...string)
}

// StateObserver is told about every facet change. It is optional and is
// used for history and time-series export.
type StateObserver interface {
	FacetChanged(change FacetChange)
}

// ActionRecord describes one action invocation, accepted or rejected.
type ActionRecord struct {
	Source  string
	Action  string
	Options Options
	// Command is the zero value when Err is set.
	Command Command
	Err     error
	At      time.Time
}

// ActionRecorder is told about every action invocation. It is optional and
// is used for the audit trail.
type ActionRecorder interface {
	ActionExecuted(ctx context.Context, rec ActionRecord)
}

// MetricsRecorder receives session counters. It is optional.
type MetricsRecorder interface {
	CommandSent(tag string)
	CommandDropped(tag string)
	NotificationReceived(kind string)
	NotificationRejected(kind string)
	StatusChanged(status string)
	ReconnectScheduled()
}

// Clock schedules the reconnect timer. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// systemClock uses the time package.
type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
