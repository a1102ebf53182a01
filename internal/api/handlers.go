package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/kommander-bridge/internal/audit"
	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
	"github.com/nerrad567/kommander-bridge/internal/store"
)

// healthCheckTimeout bounds the database check in /health.
const healthCheckTimeout = 2 * time.Second

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status   kommander.Status   `json:"status"`
	Message  string             `json:"message,omitempty"`
	Settings kommander.Settings `json:"settings"`
	Stats    kommander.Stats    `json:"stats"`
}

// FeedbackResponse is returned by GET /feedbacks/{kind}.
type FeedbackResponse struct {
	Kind   string          `json:"kind"`
	Option string          `json:"option"`
	Active bool            `json:"active"`
	Facet  kommander.Facet `json:"facet"`
	Value  any             `json:"value"`
}

// ActionResponse is returned by POST /actions/{id}.
type ActionResponse struct {
	Action  string            `json:"action"`
	Command kommander.Command `json:"command"`
}

// handleHealth returns the bridge health, 503 when degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.bridge.Health()

	if s.db != nil && health.Status == kommander.HealthHealthy {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			health.Status = kommander.HealthDegraded
			health.Reason = "database unavailable"
		}
	}

	status := http.StatusOK
	if health.Status != kommander.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status, msg := s.bridge.Status()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:   status,
		Message:  msg,
		Settings: s.bridge.Settings(),
		Stats:    s.bridge.Stats(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"facets": s.bridge.State(),
	})
}

// handleStateHistory serves ?facet=&limit=&since= (RFC 3339).
func (s *Server) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "state history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := store.HistoryFilter{Facet: kommander.Facet(q.Get("facet"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}

	entries, err := s.history.History(r.Context(), filter)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleListFeedbacks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"feedbacks": kommander.FeedbackDefinitions(),
	})
}

// handleEvaluateFeedback answers whether feedback {kind} is active for
// ?option=.
func (s *Server) handleEvaluateFeedback(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	option := r.URL.Query().Get("option")

	active, err := s.bridge.Evaluate(kind, option)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	def, _ := kommander.LookupFeedback(kind)
	writeJSON(w, http.StatusOK, FeedbackResponse{
		Kind:   kind,
		Option: option,
		Active: active,
		Facet:  def.Facet,
		Value:  s.bridge.State()[def.Facet],
	})
}

func (s *Server) handleListVariables(w http.ResponseWriter, _ *http.Request) {
	vars := s.variables.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"variables": vars,
		"count":     len(vars),
	})
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := s.bridge.Subscriptions()
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var sub kommander.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.bridge.AddSubscription(r.Context(), sub)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.RemoveSubscription(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBridgeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	catalog := s.bridge.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"toggle_encoding": catalog.Encoding(),
		"actions":         catalog.Actions(),
	})
}

// handleExecuteAction runs action {id}. The body is an optional JSON object
// of option values.
func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading body failed")
		return
	}
	opts := kommander.Options{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			writeBadRequest(w, "body must be a JSON object of option values")
			return
		}
	}

	cmd, err := s.bridge.ExecuteAction(r.Context(), id, opts)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ActionResponse{Action: id, Command: cmd})
}

// handleActionLog serves the audit trail: ?action=&source=&failed=&limit=&offset=.
func (s *Server) handleActionLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "action audit log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Source: q.Get("source"),
	}
	if v := q.Get("failed"); v != "" {
		failed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "failed must be a boolean")
			return
		}
		filter.Failed = failed
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
