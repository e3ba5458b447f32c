package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	activityhandler "rollcall/internal/activity/handler"
	activityservice "rollcall/internal/activity/service"
	activitystore "rollcall/internal/activity/store"
	"rollcall/internal/attendance/gate"
	attendancehandler "rollcall/internal/attendance/handler"
	attendancemetrics "rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/ports"
	"rollcall/internal/attendance/query"
	attendanceservice "rollcall/internal/attendance/service"
	counterstore "rollcall/internal/attendance/store/counter"
	recordstore "rollcall/internal/attendance/store/record"
	"rollcall/internal/notify"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/postgres"
	platformredis "rollcall/internal/platform/redis"
	subjecthandler "rollcall/internal/subject/handler"
	subjectservice "rollcall/internal/subject/service"
	subjectstore "rollcall/internal/subject/store"
	httptransport "rollcall/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal feature packages. Store backends are
// selected by configuration: in-memory by default, Postgres when
// DATABASE_URL is set, with Redis optionally backing the occupancy counters.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		activities activityservice.Store = activitystore.NewInMemory()
		subjects   subjectservice.Store  = subjectstore.NewInMemory()
		records    ports.RecordStore     = recordstore.NewInMemory()
		counters   ports.CounterStore    = counterstore.NewInMemory()
		health     httptransport.HealthChecker
	)

	if cfg.Postgres.URL != "" {
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			log.Error("postgres connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()
		activities = activitystore.NewPostgres(pool)
		subjects = subjectstore.NewPostgres(pool)
		records = recordstore.NewPostgres(pool)
		counters = counterstore.NewPostgres(pool)
		health = func() error {
			hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(hctx)
		}
	}

	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer redisClient.Close()
		counters = counterstore.NewRedis(redisClient.Client)
	}

	metrics := attendancemetrics.New()

	activityRegistry, err := activityservice.New(activities, activityservice.WithLogger(log))
	if err != nil {
		log.Error("activity registry init failed", "error", err.Error())
		os.Exit(1)
	}
	subjectRegistry, err := subjectservice.New(subjects)
	if err != nil {
		log.Error("subject registry init failed", "error", err.Error())
		os.Exit(1)
	}

	admissionGate, err := gate.New(counters, activityRegistry,
		gate.WithLogger(log),
		gate.WithMetrics(metrics),
	)
	if err != nil {
		log.Error("capacity gate init failed", "error", err.Error())
		os.Exit(1)
	}

	// Rebuild counters from the ledger so a restart cannot leave stale
	// occupancy behind.
	if err := admissionGate.Reconcile(ctx, records); err != nil {
		log.Error("occupancy reconciliation failed", "error", err.Error())
		os.Exit(1)
	}

	ledgerOpts := []attendanceservice.Option{
		attendanceservice.WithLogger(log),
		attendanceservice.WithMetrics(metrics),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := notify.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer publisher.Close()
		ledgerOpts = append(ledgerOpts, attendanceservice.WithNotifier(publisher))
	}

	ledger, err := attendanceservice.New(records, admissionGate, activityRegistry, subjectRegistry, ledgerOpts...)
	if err != nil {
		log.Error("attendance ledger init failed", "error", err.Error())
		os.Exit(1)
	}
	queries, err := query.New(records)
	if err != nil {
		log.Error("query service init failed", "error", err.Error())
		os.Exit(1)
	}

	router := httptransport.NewRouter([]httptransport.Registrar{
		attendancehandler.New(ledger, queries, admissionGate, log),
		activityhandler.New(activityRegistry, log),
		subjecthandler.New(subjectRegistry, log),
	}, health)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting rollcall", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
