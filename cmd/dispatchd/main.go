// Dispatch Core - Device Control Command Dispatch
//
// This is the main entry point for the dispatch daemon. It arbitrates
// command access to facility devices (lighting, HVAC, irrigation, plant
// equipment), executes commands over MQTT with confirmation tracking,
// coordinates emergency stops, and records every decision to the audit
// trail.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/veralux-systems/dispatch-core/migrations"

	"github.com/veralux-systems/dispatch-core/internal/api"
	"github.com/veralux-systems/dispatch-core/internal/audit"
	"github.com/veralux-systems/dispatch-core/internal/device"
	"github.com/veralux-systems/dispatch-core/internal/dispatch"
	"github.com/veralux-systems/dispatch-core/internal/infrastructure/config"
	"github.com/veralux-systems/dispatch-core/internal/infrastructure/database"
	"github.com/veralux-systems/dispatch-core/internal/infrastructure/logging"
	"github.com/veralux-systems/dispatch-core/internal/infrastructure/mqtt"
	"github.com/veralux-systems/dispatch-core/internal/infrastructure/tsdb"
	"github.com/veralux-systems/dispatch-core/internal/zone"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting dispatch core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Zone registry
	zoneRegistry := zone.NewRegistry(zone.NewSQLiteRepository(db.DB))
	zoneRegistry.SetLogger(log)
	if refreshErr := zoneRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading zone registry: %w", refreshErr)
	}
	log.Info("zone registry initialised", "zones", zoneRegistry.GetZoneCount())

	resolver := device.NewResolver(deviceRegistry, zoneRegistry)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Command transport over the broker
	transport, err := mqtt.NewTransport(mqttClient, byte(cfg.MQTT.QoS), log)
	if err != nil {
		return fmt.Errorf("creating command transport: %w", err)
	}

	// Audit sink: bounded queue in front of the SQLite store so audit
	// pressure never blocks dispatch.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	sink := audit.NewSink(auditRepo, cfg.Audit.BufferSize,
		time.Duration(cfg.Audit.FlushIntervalMS)*time.Millisecond)
	sink.SetLogger(log)
	sink.Start()
	defer func() {
		log.Info("draining audit sink")
		sink.Stop()
	}()

	// Recorder fan-out: audit trail always, WebSocket hub always,
	// telemetry when enabled.
	hub := api.NewHub(cfg.WebSocket, log)
	recorders := dispatch.MultiRecorder{audit.NewRecorder(sink), hub}

	var influxClient *tsdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = tsdb.Connect(cfg.InfluxDB)
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
		recorders = append(recorders, tsdb.NewRecorder(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Dispatch pipeline
	executor := dispatch.NewExecutor(deviceRegistry, transport,
		time.Duration(cfg.Dispatch.RetryBackoffMS)*time.Millisecond,
		time.Duration(cfg.Dispatch.AckTimeoutMS)*time.Millisecond,
	)
	executor.SetLogger(log)

	arbiter := dispatch.NewArbiter(executor, deviceRegistry)
	arbiter.SetLogger(log)
	arbiter.SetRecorder(recorders)

	dispatcher := dispatch.NewDispatcher(resolver, deviceRegistry, arbiter,
		time.Duration(cfg.Dispatch.ResultWaitMS)*time.Millisecond)
	dispatcher.SetLogger(log)

	coordinator := dispatch.NewCoordinator(resolver, arbiter,
		time.Duration(cfg.Dispatch.EStopCeilingMS)*time.Millisecond)
	coordinator.SetLogger(log)

	// HTTP API and WebSocket hub
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    deviceRegistry,
		Zones:       zoneRegistry,
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		Arbiter:     arbiter,
		AuditRepo:   auditRepo,
		Database:    db,
		Broker:      mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	hubCtx, hubCancel := context.WithCancel(ctx)
	defer hubCancel()
	go hub.Run(hubCtx)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting commands)
	// 2. InfluxDB (if enabled)
	// 3. Audit sink (drains the queue)
	// 4. MQTT
	// 5. Database

	log.Info("dispatch core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DISPATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DISPATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *tsdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
