// Canopy Core - Grow Space Automation Engine
//
// This is the main entry point for the Canopy Core application.
// Canopy drives cloud-connected grow controllers through three
// periodic engines:
//   - Poll: read every controller's sensors on a rate-limit-aware schedule
//   - Workflows: walk trigger/condition/action graphs against live readings
//   - Sunlight: ramp dimmable lights along sunrise/sunset curves
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	_ "github.com/verdantops/canopy-core/migrations"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/adapter"
	"github.com/verdantops/canopy-core/internal/api"
	"github.com/verdantops/canopy-core/internal/audit"
	"github.com/verdantops/canopy-core/internal/controller"
	"github.com/verdantops/canopy-core/internal/curve"
	"github.com/verdantops/canopy-core/internal/infrastructure/config"
	"github.com/verdantops/canopy-core/internal/infrastructure/database"
	"github.com/verdantops/canopy-core/internal/infrastructure/influxdb"
	"github.com/verdantops/canopy-core/internal/infrastructure/logging"
	"github.com/verdantops/canopy-core/internal/infrastructure/mqtt"
	"github.com/verdantops/canopy-core/internal/jobs"
	"github.com/verdantops/canopy-core/internal/poller"
	"github.com/verdantops/canopy-core/internal/secrets"
	"github.com/verdantops/canopy-core/internal/workflow"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Canopy Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	controllerRepo := controller.NewSQLiteRepository(db.DB)
	workflowRepo := workflow.NewSQLiteRepository(db.DB)
	dimmerRepo := curve.NewSQLiteRepository(db.DB)
	activityRepo := activity.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Credentials vault
	vault, err := secrets.NewVault(cfg.EncryptionKeyBytes())
	if err != nil {
		return fmt.Errorf("initialising vault: %w", err)
	}

	// Adapter registry and shared session cache
	registry := adapter.NewRegistry()
	registry.SetLogger(log)
	registry.Register(adapter.BrandSimulated, adapter.NewSimulated)
	log.Info("adapter registry initialised", "brands", registry.Brands())

	sessions := adapter.NewSessionStore()
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		for _, closeErr := range sessions.Close(closeCtx) {
			log.Warn("error closing adapter session", "error", closeErr)
		}
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Activity recorder (fire-and-forget)
	recorder := activity.NewRecorder(activityRepo)
	recorder.SetLogger(log)

	// Poll scheduler
	scheduler := poller.NewScheduler(poller.Config{
		Spacing:              cfg.DomainSpacing(),
		MaxConcurrentDomains: cfg.Poller.MaxConcurrentDomains,
		ControllerTimeout:    cfg.ControllerTimeout(),
		RecencyWindow:        cfg.RecencyWindow(),
	}, controllerRepo, vault, registry, sessions)
	scheduler.SetLogger(log)
	scheduler.SetRecorder(recorder)
	if influxClient != nil {
		scheduler.SetReadingSink(influxClient)
	}

	// Graph walker
	walker := workflow.NewWalker()
	walker.SetLogger(log)
	if cfg.Workflow.MaxDelaySeconds > 0 {
		walker.SetMaxDelay(time.Duration(cfg.Workflow.MaxDelaySeconds) * time.Second)
	}

	// Job runner
	runner := jobs.NewRunner(
		controllerRepo, workflowRepo, dimmerRepo,
		vault, registry, sessions, scheduler, walker,
	)
	runner.SetLogger(log)
	runner.SetRecorder(recorder)
	if mqttClient != nil {
		runner.SetEventPublisher(mqttClient)
	}
	if influxClient != nil {
		runner.SetDimmerSink(influxClient)
	}

	// API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Runner:      runner,
		Controllers: controllerRepo,
		Workflows:   workflowRepo,
		Dimmers:     dimmerRepo,
		Activity:    activityRepo,
		Audit:       auditRepo,
		Vault:       vault,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Schedule the three periodic jobs
	cronSched := cron.New()
	if err := scheduleJobs(ctx, cronSched, cfg, runner, log); err != nil {
		return fmt.Errorf("scheduling jobs: %w", err)
	}
	cronSched.Start()
	defer cronSched.Stop()
	log.Info("jobs scheduled",
		"poll_interval_s", cfg.Poller.Interval,
		"workflow_interval_s", cfg.Workflow.Interval,
		"sunlight_interval_s", cfg.Sunlight.Interval,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// cron, API server, InfluxDB, MQTT, sessions, database

	log.Info("Canopy Core stopped")
	return nil
}

// scheduleJobs registers the three periodic jobs with the cron scheduler.
//
// Each job logs its own summary; failures here are per-invocation and
// never stop the schedule.
func scheduleJobs(ctx context.Context, c *cron.Cron, cfg *config.Config, runner *jobs.Runner, log *logging.Logger) error {
	interval := func(seconds int) string {
		return fmt.Sprintf("@every %ds", seconds)
	}

	if _, err := c.AddFunc(interval(cfg.Poller.Interval), func() {
		if _, err := runner.RunPoll(ctx); err != nil {
			log.Error("scheduled poll run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("poll job: %w", err)
	}

	if _, err := c.AddFunc(interval(cfg.Workflow.Interval), func() {
		if _, err := runner.RunWorkflows(ctx); err != nil {
			log.Error("scheduled workflow run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("workflow job: %w", err)
	}

	if _, err := c.AddFunc(interval(cfg.Sunlight.Interval), func() {
		if _, err := runner.RunSunlight(ctx); err != nil {
			log.Error("scheduled sunlight run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("sunlight job: %w", err)
	}

	return nil
}

// getConfigPath returns the configuration file path.
// Uses CANOPY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CANOPY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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

	return nil
}
