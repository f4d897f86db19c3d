// mqttconnect connects one MQTT v3 client to a broker and holds the session
// until it receives SIGINT or SIGTERM.
//
// Connect options come from the connect section of the configuration file.
// Every attempt is recorded to the SQLite history and, when enabled, to
// InfluxDB. An optional read-only status API reports client state and
// history.
//
// Usage:
//
//	mqttconnect                 run until SIGINT/SIGTERM
//	mqttconnect token <subject> print a status API bearer token
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/mqttconnect/internal/api"
	"github.com/nerrad567/mqttconnect/internal/history"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/config"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/database"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/logging"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttconnect/migrations"
)

// Build metadata, overridden with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used unless MQTTCONNECT_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// tokenTTL is the lifetime of tokens printed by the token command.
const tokenTTL = 30 * 24 * time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = printToken(os.Stdout, os.Args[2:])
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "mqttconnect:", err)
		os.Exit(1)
	}
}

// run starts every configured component, connects the client and blocks
// until ctx is cancelled. Components are released in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting mqttconnect",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	log = logging.New(cfg.Logging, version)
	mqtt.RouteEngineLogs(log, log.DebugEnabled())
	log.Debug("config applied", "path", path, "log_level", cfg.Logging.Level)

	var recorders []mqtt.Recorder

	var db *database.DB
	var historyRepo history.Repository
	if cfg.Database.Enabled {
		db, err = openHistory(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer closeLogged(log, "history database", db.Close)
		historyRepo = history.NewSQLiteRepository(db.DB)
		recorders = append(recorders, historyRepo)
		log.Info("connect history enabled", "path", db.Path())
	} else {
		log.Info("connect history disabled")
	}

	var metrics *influxdb.Client
	if cfg.InfluxDB.Enabled {
		metrics, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("attempt metrics: %w", err)
		}
		defer closeLogged(log, "attempt metrics", metrics.Close)
		metrics.SetOnError(func(err error) {
			log.Warn("attempt metrics write dropped", "error", err)
		})
		recorders = append(recorders, metrics)
		log.Info("attempt metrics enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	factory := mqtt.NewFactory(
		mqtt.WithLogger(log),
		mqtt.WithRecorder(mqtt.Recorders(recorders...)),
		mqtt.WithDisconnectQuiesce(cfg.DisconnectQuiesce()),
	)
	defer closeLogged(log, "mqtt clients", factory.Close)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Factory: factory,
			History: historyRepo,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer closeLogged(log, "status api", apiServer.Close)
	}

	client, err := factory.Create(cfg.Client.ServerURI, cfg.Client.ClientID)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}

	if err := client.Connect(cfg.ConnectOptions()); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", describeConnectError(err))
	}

	if err := healthCheck(ctx, db, client, metrics, apiServer); err != nil {
		return fmt.Errorf("startup health check: %w", err)
	}
	log.Info("ready",
		"server_uri", client.ServerURI(),
		"client_id", client.ClientID(),
	)

	<-ctx.Done()

	log.Info("stopping")
	if err := client.Disconnect(); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		log.Warn("error disconnecting MQTT", "error", err)
	}

	return nil
}

// openHistory opens and migrates the attempt history database.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// describeConnectError adds the broker's return code to refusals.
func describeConnectError(err error) error {
	var refused *mqtt.ConnectError
	if errors.As(err, &refused) {
		return fmt.Errorf("%w (return code %d)", err, int(refused.Code))
	}
	return err
}

// getConfigPath honours MQTTCONNECT_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("MQTTCONNECT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck returns the first failing component. Disabled components are
// passed as nil and skipped.
func healthCheck(ctx context.Context, db *database.DB, client *mqtt.Client, metrics *influxdb.Client, apiServer *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if client != nil {
		if err := client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if metrics != nil {
		if err := metrics.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}

// printToken writes a status API bearer token for the subject in args[0],
// signed with the configured api.auth.jwt_secret.
func printToken(w io.Writer, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: mqttconnect token <subject>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.JWTSecret == "" {
		return fmt.Errorf("api.auth.jwt_secret is not set")
	}

	token, err := api.GenerateToken(args[0], cfg.API.Auth.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// closeLogged runs closeFn and logs its failure.
func closeLogged(log *logging.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Error("close failed", "component", what, "error", err)
	}
}
