package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"instabridge/internal/activity"
	"instabridge/internal/config"
	"instabridge/internal/consul"
	"instabridge/internal/gateway"
	"instabridge/internal/instagram"
	"instabridge/internal/logger"
	"instabridge/internal/metrics"
	"instabridge/internal/session"
	"instabridge/internal/storage"
)

func main() {
	// Initialize structured logger
	log := logger.New("instabridge")
	logger.SetDefault(log)

	if err := run(log); err != nil {
		slog.Error("instabridge exited", "error", err)
		os.Exit(1)
	}
}

// run wires the bridge and blocks until SIGINT/SIGTERM. Integrations are
// closed by deferred calls on every return path.
func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("Starting instabridge",
		"port", cfg.Port,
		"instagram_api", cfg.InstagramAPIURL,
		"redis_addr", cfg.RedisAddr,
		"consul_addr", cfg.ConsulAddr,
	)

	ctx := context.Background()
	checks := map[string]gateway.HealthCheck{}

	auth := instagram.NewAuthenticator(instagram.Options{
		BaseURL:  cfg.InstagramAPIURL,
		Timeout:  cfg.UpstreamTimeout,
		RetryMax: cfg.UpstreamRetryMax,
		Logger:   log,
	})

	// Session registry, optionally mirrored to Redis
	registryOpts := []session.Option{session.WithLogger(log)}
	if cfg.RedisAddr != "" {
		store := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer store.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		registryOpts = append(registryOpts, session.WithStore(store, auth, cfg.SessionTTL))
		checks["redis"] = store.Ping
		slog.Info("Connected to Redis")
	}
	sessions := session.NewRegistry(registryOpts...)

	// Activity sinks
	var sinks activity.MultiSink
	var history activity.Store
	if cfg.KafkaBrokers != "" {
		producer, err := activity.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaActivityTopic, log)
		if err != nil {
			return fmt.Errorf("create Kafka producer: %w", err)
		}
		defer producer.Close()
		sinks = append(sinks, producer)
		slog.Info("Kafka activity sink enabled", "topic", cfg.KafkaActivityTopic)
	}
	if cfg.ActivityDatabaseURL != "" {
		pg, err := activity.NewPostgresStore(ctx, cfg.ActivityDatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to activity database: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate activity database: %w", err)
		}
		sinks = append(sinks, pg)
		history = pg
		checks["postgres"] = pg.Ping
		slog.Info("Connected to activity database")
	}

	// Object storage for post exports
	var store storage.Service
	if cfg.S3.Enabled() {
		store, err = storage.New(ctx, storage.Config{
			Endpoint:       cfg.S3.Endpoint,
			PublicEndpoint: cfg.S3.PublicEndpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Bucket:         cfg.S3.Bucket,
			UseSSL:         cfg.S3.UseSSL,
		}, log)
		if err != nil {
			return fmt.Errorf("create storage service: %w", err)
		}
		if err := store.EnsureBucketExists(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", cfg.S3.Bucket, err)
		}
		checks["storage"] = store.Health
	}

	m := metrics.New(sessions.Len)

	var sink activity.Sink = activity.Discard
	if len(sinks) > 0 {
		sink = sinks
	}

	handler := gateway.NewHandler(gateway.Deps{
		Auth:         auth,
		Sessions:     sessions,
		Activity:     sink,
		History:      history,
		Storage:      store,
		Metrics:      m,
		Checks:       checks,
		RandomTokens: cfg.IssueRandomTokens,
	})
	router := gateway.SetupRouter(handler, sessions, m, cfg.CORSOrigins)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Register with Consul
	registration := consul.NewRegistration(cfg.ServiceHost, cfg.Port)
	var registrar consul.Registrar
	if cfg.ConsulAddr != "" {
		consulClient, err := consul.NewClientWithToken(cfg.ConsulAddr, cfg.ConsulToken)
		if err != nil {
			return fmt.Errorf("create Consul client: %w", err)
		}
		if err := consulClient.Register(registration); err != nil {
			slog.Warn("Failed to register with Consul", "error", err)
		} else {
			registrar = consulClient
			slog.Info("Registered with Consul", "service_id", registration.ID)
		}
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("instabridge listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		slog.Info("Shutting down instabridge")
	case err := <-serveErr:
		runErr = fmt.Errorf("serve: %w", err)
	}

	if registrar != nil {
		if err := registrar.Deregister(registration); err != nil {
			slog.Warn("Failed to deregister from Consul", "error", err)
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if runErr == nil {
		slog.Info("instabridge stopped")
	}
	return runErr
}
