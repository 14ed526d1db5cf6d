// Command server wires the faceguard process: configuration, stores,
// domain services, HTTP transport, and graceful shutdown. Backing stores
// fall back to in-memory implementations when no URL is configured, so a
// bare `go run ./cmd/server` with an extractor is a working dev setup.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faceguard/internal/audit"
	auditmetrics "faceguard/internal/audit/metrics"
	"faceguard/internal/capture"
	"faceguard/internal/enrollment"
	"faceguard/internal/liveness"
	"faceguard/internal/lockout"
	lockoutmetrics "faceguard/internal/lockout/metrics"
	"faceguard/internal/match"
	"faceguard/internal/platform/config"
	"faceguard/internal/platform/httpserver"
	"faceguard/internal/platform/logger"
	"faceguard/internal/platform/postgres"
	"faceguard/internal/platform/redis"
	"faceguard/internal/quality"
	"faceguard/internal/search"
	searchmetrics "faceguard/internal/search/metrics"
	"faceguard/internal/token"
	httptransport "faceguard/internal/transport/http"
	"faceguard/internal/verify"
	verifymetrics "faceguard/internal/verify/metrics"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.ExtractorURL == "" {
		log.Error("FACEGUARD_EXTRACTOR_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := capture.NewRemoteProcessor(cfg.ExtractorURL, cfg.ExtractorTimeout)

	// Stores: postgres when configured, redis preferred for lockout state,
	// memory otherwise.
	var (
		enrollStore  enrollment.Store = enrollment.NewInMemoryStore()
		lockoutStore lockout.Store    = lockout.NewInMemoryStore()
		auditStore   audit.Store      = audit.NewInMemoryStore()
	)
	if cfg.PostgresURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		db, err := postgres.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		enrollStore = enrollment.NewPostgres(pool)
		lockoutStore = lockout.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
	}
	if cfg.RedisURL != "" {
		client, err := redis.New(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		lockoutStore = lockout.NewRedis(client.Client, cfg.LockoutWindow+cfg.LockoutDuration)
	}

	recorderOpts := []audit.RecorderOption{
		audit.WithMetrics(auditmetrics.New()),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := audit.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		if err != nil {
			log.Error("failed to start kafka audit publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		recorderOpts = append(recorderOpts, audit.WithPublisher(publisher))
	}
	recorder := audit.NewRecorder(auditStore, log, recorderOpts...)

	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(ctx)
	}()

	gate := quality.NewGate(cfg.BlurFloor, cfg.BrightnessMin, cfg.BrightnessMax)
	tokens := token.New(cfg.JWTSigningKey, cfg.TokenTTL)

	lockoutSvc, err := lockout.New(lockoutStore, cfg.LockoutMaxFailures, cfg.LockoutWindow, cfg.LockoutDuration,
		lockout.WithLogger(log),
		lockout.WithRecorder(recorder),
		lockout.WithMetrics(lockoutmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build lockout service", "error", err)
		os.Exit(1)
	}

	enrollSvc, err := enrollment.New(enrollStore, gate, processor, processor, cfg.EmbeddingDim,
		enrollment.WithLogger(log),
		enrollment.WithRecorder(recorder),
	)
	if err != nil {
		log.Error("failed to build enrollment service", "error", err)
		os.Exit(1)
	}

	verifySvc, err := verify.New(enrollStore, gate, processor, match.New(cfg.MatchThreshold),
		liveness.New(cfg.MotionMin, cfg.MotionMax), lockoutSvc, tokens, cfg.EmbeddingDim,
		verify.WithLogger(log),
		verify.WithRecorder(recorder),
		verify.WithMetrics(verifymetrics.New()),
	)
	if err != nil {
		log.Error("failed to build verify service", "error", err)
		os.Exit(1)
	}

	searchSvc, err := search.New(enrollStore, gate, processor, processor, cfg.SearchMaxK,
		search.WithLogger(log),
		search.WithRecorder(recorder),
		search.WithMetrics(searchmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build search service", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Handlers{
		Enroll: httptransport.NewEnrollHandler(enrollSvc, log),
		Verify: httptransport.NewVerifyHandler(verifySvc, log),
		Search: httptransport.NewSearchHandler(searchSvc, log),
		Me:     httptransport.NewMeHandler(),
		Admin:  httptransport.NewAdminHandler(auditStore, lockoutSvc, enrollSvc, recorder, log),
	}, token.NewMiddlewareAdapter(tokens), log)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("faceguard listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Let the recorder flush buffered audit events.
	select {
	case <-recorderDone:
	case <-time.After(5 * time.Second):
		log.Warn("audit recorder did not drain in time")
	}
}
