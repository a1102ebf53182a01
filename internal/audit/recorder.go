package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

// recordTimeout bounds one audit insert. The insert outlives a cancelled
// request context so rejected calls are still recorded.
const recordTimeout = 2 * time.Second

// Logger is the logging surface used by Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes kommander action invocations to a Repository. It
// implements kommander.ActionRecorder.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a Recorder. logger may be nil.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// ActionExecuted stores one invocation. Failures are logged.
func (r *Recorder) ActionExecuted(ctx context.Context, rec kommander.ActionRecord) {
	entry := &AuditLog{
		Action:    rec.Action,
		Source:    rec.Source,
		Options:   map[string]any(rec.Options),
		CreatedAt: rec.At,
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	} else if rec.Command.Tag != "" {
		if b, err := json.Marshal(rec.Command); err == nil {
			entry.Command = b
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, entry); err != nil && r.logger != nil {
		r.logger.Warn("failed to record action", "action", rec.Action, "source", rec.Source, "error", err)
	}
}

// List returns recorded invocations.
func (r *Recorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return r.repo.List(ctx, filter)
}

// Prune removes invocations older than retention. A zero retention keeps
// everything.
func (r *Recorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return r.repo.Prune(ctx, time.Now().Add(-retention))
}
