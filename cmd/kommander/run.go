package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/kommander-bridge/internal/api"
	"github.com/nerrad567/kommander-bridge/internal/audit"
	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/config"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/database"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/kommander-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/kommander-bridge/internal/store"
	"github.com/nerrad567/kommander-bridge/internal/variables"
	"github.com/nerrad567/kommander-bridge/migrations"
)

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled or the connection manager fails.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Kommander bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("instance_id", cfg.Instance.ID)
	if cfg.Device.DebugMessages {
		log.SetLevel("debug")
	}
	log.Info("logger initialised",
		"level", log.Level().String(),
		"format", cfg.Logging.Format,
	)

	encoding, err := kommander.ParseToggleEncoding(cfg.Device.ToggleEncoding)
	if err != nil {
		return fmt.Errorf("device.toggle_encoding: %w", err)
	}

	var prom *metrics.Metrics
	if cfg.Metrics.Enabled {
		prom = metrics.New(cfg.Instance.ID)
	}

	// Persistence (optional)
	var (
		db       *database.DB
		st       *store.Store
		auditRec *audit.Recorder
	)
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx, migrations.Files); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		st = store.New(db.DB, store.Options{
			Retention: time.Duration(cfg.Database.HistoryRetention) * 24 * time.Hour,
			Logger:    log.Component("store"),
		})
		st.Start(ctx)
		defer st.Stop()

		auditRec = audit.NewRecorder(audit.NewSQLiteRepository(db.DB), log.Component("audit"))
		retention := time.Duration(cfg.Database.HistoryRetention) * 24 * time.Hour
		if n, pruneErr := auditRec.Prune(ctx, retention); pruneErr != nil {
			log.Warn("pruning audit log failed", "error", pruneErr)
		} else if n > 0 {
			log.Info("pruned audit log", "removed", n)
		}
	} else {
		log.Info("database disabled, subscriptions will not persist")
	}

	vars := variables.New()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	vars.OnChange(func(changes []variables.Change) {
		hub.Broadcast(kommander.ChannelVariables, changes)
		if prom != nil {
			prom.VariablesChanged(len(changes))
		}
	})

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	comps := components{
		log:       log.Component("kommander"),
		variables: vars,
		hub:       hub,
		mqtt:      mqttClient,
		db:        db,
		store:     st,
		audit:     auditRec,
		metrics:   prom,
		influx:    influxClient,
	}
	bridge, err := kommander.NewBridge(bridgeOptions(cfg, encoding, comps))
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if err := bridge.Start(gctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		bridge.Stop()
		return nil
	})
	g.Go(func() error {
		if err := bridge.Wait(); err != nil {
			return fmt.Errorf("connection manager: %w", err)
		}
		return nil
	})

	if cfg.API.Enabled {
		srv, err := api.New(apiDeps(cfg, log.Component("api"), bridge, comps))
		if err != nil {
			bridge.Stop()
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(gctx); err != nil {
			bridge.Stop()
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"device_url", cfg.Device.URL,
	)

	err = g.Wait()
	log.Info("Kommander bridge stopped")
	return err
}

// components are the optional collaborators handed to the bridge. Nil
// pointers stay out of the interface fields so the bridge sees them as
// absent.
type components struct {
	log       *logging.Logger
	variables *variables.Store
	hub       *api.Hub
	mqtt      *mqtt.Client
	db        *database.DB
	store     *store.Store
	audit     *audit.Recorder
	metrics   *metrics.Metrics
	influx    *influxdb.Client
}

// bridgeOptions maps configuration and components onto BridgeOptions.
func bridgeOptions(cfg *config.Config, enc kommander.ToggleEncoding, c components) kommander.BridgeOptions {
	opts := kommander.BridgeOptions{
		InstanceID: cfg.Instance.ID,
		Version:    version,
		Settings: kommander.Settings{
			URL:            cfg.Device.URL,
			Reconnect:      cfg.Device.Reconnect,
			DebugMessages:  cfg.Device.DebugMessages,
			ResetVariables: cfg.Device.ResetVariables,
		},
		ToggleEncoding: enc,
		Dialer: &kommander.WebsocketDialer{
			HandshakeTimeout: cfg.GetHandshakeTimeout(),
			ReadLimit:        cfg.Device.ReadLimit,
		},
		QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		HealthInterval: cfg.GetHealthInterval(),
	}
	if c.log != nil {
		opts.Logger = c.log
	}
	if c.variables != nil {
		opts.Variables = c.variables
	}
	if c.hub != nil {
		opts.Broadcaster = c.hub
	}
	if c.mqtt != nil {
		opts.MQTT = c.mqtt
	}
	if c.store != nil {
		opts.Store = c.store
		opts.Observers = append(opts.Observers, c.store)
	}
	if c.audit != nil {
		opts.Audit = c.audit
	}
	if c.metrics != nil {
		opts.Metrics = c.metrics
		opts.Observers = append(opts.Observers, c.metrics)
	}
	if c.influx != nil {
		opts.Observers = append(opts.Observers, c.influx)
	}
	return opts
}

// apiDeps maps configuration and components onto api.Deps.
func apiDeps(cfg *config.Config, log *logging.Logger, bridge api.Bridge, c components) api.Deps {
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Metrics:   cfg.Metrics,
		Logger:    log,
		Bridge:    bridge,
		Variables: c.variables,
		Hub:       c.hub,
		Version:   version,
	}
	if c.db != nil {
		deps.DB = c.db
	}
	if c.store != nil {
		deps.History = c.store
	}
	if c.audit != nil {
		deps.Audit = c.audit
	}
	if c.mqtt != nil {
		deps.MQTT = c.mqtt
	}
	if c.metrics != nil {
		deps.Prometheus = c.metrics.Handler()
	}
	return deps
}

// healthCheck verifies the enabled infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The device connection is not checked: an unreachable device is
	// reported through the connection status and retried.
	return nil
}
