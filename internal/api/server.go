package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/kommander-bridge/internal/audit"
	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/config"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/kommander-bridge/internal/store"
	"github.com/nerrad567/kommander-bridge/internal/variables"
)

// gracefulShutdownTimeout bounds in-flight requests during Close.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the part of *kommander.Bridge the API serves.
type Bridge interface {
	Status() (kommander.Status, string)
	Stats() kommander.Stats
	Settings() kommander.Settings
	Health() kommander.HealthMessage
	State() map[kommander.Facet]any
	Evaluate(kind, option string) (bool, error)
	Catalog() *kommander.Catalog
	ExecuteAction(ctx context.Context, id string, opts kommander.Options) (kommander.Command, error)
	Subscriptions() []kommander.Subscription
	AddSubscription(ctx context.Context, sub kommander.Subscription) (kommander.Subscription, error)
	RemoveSubscription(ctx context.Context, id string) error
}

// HistoryReader serves facet history. Satisfied by *store.Store.
type HistoryReader interface {
	History(ctx context.Context, filter store.HistoryFilter) ([]store.HistoryEntry, error)
}

// AuditReader serves the action audit trail. Satisfied by *audit.Recorder.
type AuditReader interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Database is the part of *database.DB used for health and metrics.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// ConnectionChecker reports a client's connection state, e.g. MQTT.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Metrics   config.MetricsConfig
	Logger    *logging.Logger
	Bridge    Bridge
	Variables *variables.Store
	History   HistoryReader     // optional
	Audit     AuditReader       // optional
	DB        Database          // optional
	MQTT      ConnectionChecker // optional
	Hub       *Hub              // optional: shared with the bridge for broadcasts
	// Prometheus serves the exposition format at Metrics.Path. Optional.
	Prometheus http.Handler
	Version    string
}

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	metricsCfg  config.MetricsConfig
	logger      *logging.Logger
	bridge      Bridge
	variables   *variables.Store
	history     HistoryReader
	audit       AuditReader
	db          Database
	mqtt        ConnectionChecker
	prometheus  http.Handler
	version     string
	startTime   time.Time
	hub         *Hub
	externalHub bool
	server      *http.Server
	cancel      context.CancelFunc
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Variables == nil {
		deps.Variables = variables.New()
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		metricsCfg: deps.Metrics,
		logger:     deps.Logger,
		bridge:     deps.Bridge,
		variables:  deps.Variables,
		history:    deps.History,
		audit:      deps.Audit,
		db:         deps.DB,
		mqtt:       deps.MQTT,
		prometheus: deps.Prometheus,
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        deps.Hub,
	}
	if s.hub != nil {
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub used for broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start runs the hub (unless it was injected) and serves HTTP in the
// background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close shuts the listener down, waiting up to 10 seconds for in-flight
// requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
