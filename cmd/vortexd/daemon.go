package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/applianceimpl"
	"github.com/skyrelay/vortex/internal/auditlog"
	"github.com/skyrelay/vortex/internal/automaton"
	"github.com/skyrelay/vortex/internal/config"
	"github.com/skyrelay/vortex/internal/driver"
	"github.com/skyrelay/vortex/internal/ingress"
	"github.com/skyrelay/vortex/internal/logging"
	"github.com/skyrelay/vortex/internal/metrics"
	"github.com/skyrelay/vortex/internal/observability"
	"github.com/skyrelay/vortex/internal/queue"
	"github.com/skyrelay/vortex/internal/worker"
)

// multiSink fans one transition record out to every configured
// automaton.AuditSink: the write-only Postgres trail and the in-process
// metrics counters both want the same call.
type multiSink struct {
	sinks []automaton.AuditSink
}

func (s multiSink) RecordTransition(ctx context.Context, routerID, tenantID, fromState, action, toState, applianceState string) {
	for _, sink := range s.sinks {
		sink.RecordTransition(ctx, routerID, tenantID, fromState, action, toState, applianceState)
	}
}

func daemonCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run vortexd's ingress consumer and worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if redisAddr != "" {
				cfg.Redis.Addr = redisAddr
			}
			if redisPass != "" {
				cfg.Redis.Password = redisPass
			}
			if redisDB != 0 {
				cfg.Redis.DB = redisDB
			}
			if httpAddr != "" {
				cfg.Daemon.HTTPAddr = httpAddr
			}

			return runDaemon(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "Override the health/metrics listen address")
	return cmd
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	log := logging.Op()

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if cfg.Observability.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
	}

	reg, err := driver.NewRegistry(cfg.Driver.Enabled)
	if err != nil {
		return fmt.Errorf("driver registry: %w", err)
	}
	log.Info("drivers enabled", "drivers", reg.Enabled())

	audit, err := auditlog.New(ctx, cfg.Postgres.DSN, log)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer audit.Close()

	sink := multiSink{sinks: []automaton.AuditSink{audit, metrics.Global()}}
	tracer := observability.AutomatonTracer{}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	notifier := queue.NewRedisListNotifier(redisClient)
	defer notifier.Close()

	build := applianceFactory(cfg.Appliance, reg, log)

	pool := worker.New(cfg.Worker, log, notifier, tracer, sink, recordBandwidth, build)

	consumer := ingress.New(redisClient, pool, cfg.Ingress, log)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(runCtx)
	consumer.Start(runCtx)

	var httpServer *http.Server
	if cfg.Daemon.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.PrometheusHandler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		httpServer = &http.Server{
			Addr:    cfg.Daemon.HTTPAddr,
			Handler: observability.HTTPMiddleware(mux),
		}
		go func() {
			log.Info("http listener starting", "addr", cfg.Daemon.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http listener failed", "error", err)
			}
		}()
	}

	log.Info("vortexd started")
	<-runCtx.Done()
	log.Info("vortexd shutting down")

	consumer.Stop()
	pool.Stop()

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", "error", err)
		}
	}

	return nil
}

// applianceFactory builds the worker.ApplianceFactory used to lazily
// construct one Manager per router the first time an event for it
// arrives, gated through the driver registry's "router" driver.
func applianceFactory(cfg applianceimpl.Config, reg *driver.Registry, log *slog.Logger) worker.ApplianceFactory {
	return func(routerID, tenantID string) (appliance.Appliance, error) {
		if _, err := reg.Get(string(driver.Router)); err != nil {
			return nil, err
		}
		return applianceimpl.New(routerID, tenantID, cfg, log), nil
	}
}

func recordBandwidth(sample appliance.StatSample) {
	metrics.RecordPrometheusBandwidth(sample.RouterID, sample.RxBytes, sample.TxBytes)
}
