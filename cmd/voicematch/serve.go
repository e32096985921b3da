package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthwise/voicematch/internal/advisor"
	"github.com/hearthwise/voicematch/internal/api"
	"github.com/hearthwise/voicematch/internal/audit"
	"github.com/hearthwise/voicematch/internal/infrastructure/config"
	"github.com/hearthwise/voicematch/internal/infrastructure/database"
	"github.com/hearthwise/voicematch/internal/infrastructure/influxdb"
	"github.com/hearthwise/voicematch/internal/infrastructure/logging"
	"github.com/hearthwise/voicematch/internal/infrastructure/mqtt"
	"github.com/hearthwise/voicematch/internal/match"
	"github.com/hearthwise/voicematch/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the matching service (HTTP API, optional MQTT)",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx)
		},
	}
}

// runServe wires the full service: config, logging, storage, transports,
// pipeline. Deferred Close calls unwind in reverse order on shutdown.
func runServe(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting voicematch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	log = logging.New(cfg.Logging, version)

	components := map[string]api.HealthChecker{}
	var processorOpts []pipeline.Option

	// SQLite audit store (optional).
	var auditor audit.Repository
	if cfg.Database.Enabled {
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

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		auditor = audit.NewSQLiteRepository(db.DB)
		components["database"] = db
		processorOpts = append(processorOpts, pipeline.WithAuditor(auditor))
	} else {
		log.Info("audit database disabled")
	}

	// InfluxDB telemetry (optional).
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		components["influxdb"] = influxClient
		processorOpts = append(processorOpts, pipeline.WithTelemetry(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// LLM advisor (optional).
	if cfg.Advisor.Enabled {
		adv := advisor.New(advisor.Config{
			APIKey:            cfg.Advisor.APIKey,
			BaseURL:           cfg.Advisor.BaseURL,
			Model:             cfg.Advisor.Model,
			Timeout:           cfg.GetAdvisorTimeout(),
			MaxEntities:       cfg.Advisor.MaxEntities,
			RequestsPerSecond: cfg.Advisor.RequestsPerSecond,
			Burst:             cfg.Advisor.Burst,
		})
		adv.SetLogger(log.With("component", "advisor"))
		log.Info("advisor enabled", "model", cfg.Advisor.Model)
		processorOpts = append(processorOpts, pipeline.WithAdviser(adv))
	} else {
		log.Info("advisor disabled")
	}

	// WebSocket hub, created first so the pipeline can broadcast into it.
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	go hub.Run(ctx)
	processorOpts = append(processorOpts, pipeline.WithBroadcaster(hub))

	// The engine and processor.
	engine := match.New(engineOptions(cfg.Matcher))
	engine.SetLogger(log.With("component", "engine"))
	processorOpts = append(processorOpts, pipeline.WithLogger(log.With("component", "pipeline")))
	processor := pipeline.NewProcessor(engine, processorOpts...)

	// MQTT transport (optional). Connected before the API server so the
	// health component map is complete when requests start arriving.
	if cfg.MQTT.Enabled {
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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		components["mqtt"] = mqttClient

		if err := subscribeMatchRequests(ctx, mqttClient, processor, byte(cfg.MQTT.QoS), log); err != nil {
			return fmt.Errorf("subscribing to match requests: %w", err)
		}
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API server sharing the hub.
	server, err := api.New(api.Deps{
		Config:      cfg.Server,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.With("component", "api"),
		Processor:   processor,
		Auditor:     auditor,
		Components:  components,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// mqttProcessTimeout bounds one MQTT-delivered batch, advisor included.
const mqttProcessTimeout = 30 * time.Second

// subscribeMatchRequests wires the MQTT request topic into the pipeline.
// Results go back out on the result topic; decode failures are published
// as error payloads so callers get feedback on the same channel.
func subscribeMatchRequests(ctx context.Context, client *mqtt.Client, processor *pipeline.Processor, qos byte, log *logging.Logger) error {
	return client.Subscribe(mqtt.Topics{}.MatchRequest(), qos, func(_ string, payload []byte) error {
		reqCtx, cancel := context.WithTimeout(ctx, mqttProcessTimeout)
		defer cancel()

		result, err := processor.Process(reqCtx, "mqtt", payload)
		if err != nil {
			log.Warn("mqtt batch rejected", "error", err)
			return client.PublishResult([]byte(fmt.Sprintf(`{"error":%q}`, err.Error())))
		}

		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		return client.PublishResult(data)
	})
}

// engineOptions converts the matcher config section into engine options.
func engineOptions(mc config.MatcherConfig) match.Options {
	return match.Options{
		Weights: match.Weights{
			Floor: mc.Weights.Floor,
			Room:  mc.Weights.Room,
			Name:  mc.Weights.Name,
			Type:  mc.Weights.Type,
		},
		Thresholds: match.Thresholds{
			Floor: mc.Thresholds.Floor,
			Room:  mc.Thresholds.Room,
			Type:  mc.Thresholds.Type,
			Name:  mc.Thresholds.Name,
		},
		TopK:                mc.TopK,
		DisambiguationGap:   mc.DisambiguationGap,
		StrictRoomMatch:     mc.StrictRoomMatch,
		NormalizeCacheSize:  mc.NormalizeCacheSize,
		SimilarityCacheSize: mc.SimilarityCacheSize,
	}
}
