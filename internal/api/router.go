package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.prometheus != nil && s.metricsCfg.Enabled {
		r.Handle(s.metricsPath(), s.prometheus)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/status", s.handleStatus)

		r.Route("/state", func(r chi.Router) {
			r.Get("/", s.handleState)
			r.Get("/history", s.handleStateHistory)
		})

		r.Route("/feedbacks", func(r chi.Router) {
			r.Get("/", s.handleListFeedbacks)
			r.Get("/{kind}", s.handleEvaluateFeedback)
		})

		r.Get("/variables", s.handleListVariables)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", s.handleListSubscriptions)
			r.Post("/", s.handleCreateSubscription)
			r.Delete("/{id}", s.handleDeleteSubscription)
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", s.handleListActions)
			r.Get("/log", s.handleActionLog)
			r.Post("/{id}", s.handleExecuteAction)
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

func (s *Server) metricsPath() string {
	if s.metricsCfg.Path == "" {
		return "/metrics"
	}
	return s.metricsCfg.Path
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
