package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"contactlink/internal/contact"
	"contactlink/internal/contact/lock"
	contactmetrics "contactlink/internal/contact/metrics"
	"contactlink/internal/contact/ports"
	"contactlink/internal/contact/service"
	contactstore "contactlink/internal/contact/store"
	"contactlink/internal/outbox"
	"contactlink/internal/platform/config"
	"contactlink/internal/platform/httpserver"
	"contactlink/internal/platform/logger"
	platformmetrics "contactlink/internal/platform/metrics"
	"contactlink/internal/platform/postgres"
	platformredis "contactlink/internal/platform/redis"
	"contactlink/pkg/platform/circuit"
	"contactlink/pkg/platform/httputil"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("contactlink stopped", "error", err.Error())
		os.Exit(1)
	}
}

type infra struct {
	db     *sql.DB
	redis  *platformredis.Client
	kafka  *outbox.KafkaProducer
	closer []func()
}

func (i *infra) close() {
	for j := len(i.closer) - 1; j >= 0; j-- {
		i.closer[j]()
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	svc, err := buildService(cfg, deps, log, reg)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	contact.NewHandler(svc, log, platformmetrics.New(reg), cfg.ReconcileTimeout).Register(r)
	r.Get("/health", healthHandler(deps))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := httpserver.New(cfg.Addr, r, cfg.ReconcileTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting contactlink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if deps.db != nil && deps.kafka != nil {
		worker := outbox.NewWorker(outbox.NewPostgresStore(deps.db), deps.kafka,
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithLogger(log),
		)
		g.Go(func() error {
			log.Info("outbox relay started", "topic", cfg.Kafka.Topic)
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.closer = append(deps.closer, func() { _ = db.Close() })
		if err := postgres.Migrate(db, log); err != nil {
			deps.close()
			return nil, err
		}
		deps.db = db
		log.Info("using postgres contact store")
	} else {
		log.Info("DATABASE_URL not set, using in-memory contact store")
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		deps.close()
		return nil, err
	}
	if redisClient != nil {
		deps.closer = append(deps.closer, func() { _ = redisClient.Close() })
		deps.redis = redisClient
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if deps.db == nil {
			log.Warn("KAFKA_BROKERS set without DATABASE_URL, outbox relay disabled")
			return deps, nil
		}
		producer, err := outbox.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.closer = append(deps.closer, producer.Close)
		if err := producer.EnsureTopic(ctx, int32(cfg.Kafka.Partitions), int16(cfg.Kafka.ReplicationFactor)); err != nil {
			deps.close()
			return nil, err
		}
		deps.kafka = producer
	}
	return deps, nil
}

func buildService(cfg config.Server, deps *infra, log *slog.Logger, reg *prometheus.Registry) (*contact.Service, error) {
	var tx service.ContactStoreTx
	var fallback ports.Locker = lock.NewLocal()
	if deps.db != nil {
		tx = newContactPostgresTx(deps.db, cfg.ReconcileTimeout)
		// Replicas sharing the database must share the identifier locks too.
		fallback = lock.NewPostgres(deps.db, lock.WithMaxHolders(cfg.Database.MaxOpenConns/2))
	} else {
		tx = service.NewInMemoryTx(contactstore.NewInMemory())
	}

	locker := fallback
	if deps.redis != nil {
		deps.redis.RegisterPoolMetrics(reg)
		shared := lock.NewRedis(deps.redis.Client, lock.WithTTL(cfg.Redis.LockTTL))
		breaker := circuit.New("redis-lock", circuit.WithFailureThreshold(cfg.Redis.BreakerThreshold))
		locker = lock.NewBreaker(shared, fallback, breaker, log)
		log.Info("using redis identifier lock")
	} else if deps.db != nil {
		log.Info("using postgres advisory identifier lock")
	}

	return contact.NewService(tx,
		service.WithLogger(log),
		service.WithMetrics(contactmetrics.New(reg)),
		service.WithLocker(locker),
	)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

func healthHandler(deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Backends: map[string]string{}}
		if deps.db != nil {
			resp.Backends["postgres"] = backendStatus(deps.db.PingContext(ctx))
		}
		if deps.redis != nil {
			resp.Backends["redis"] = backendStatus(deps.redis.Health(ctx))
		}
		if deps.kafka != nil {
			resp.Backends["kafka"] = backendStatus(deps.kafka.Ping(ctx))
		}
		status := http.StatusOK
		for _, s := range resp.Backends {
			if s != "ok" {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}

func backendStatus(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "ok"
}
