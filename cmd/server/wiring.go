package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/twmb/franz-go/pkg/kgo"

	"vatguard/internal/exemption/events"
	"vatguard/internal/exemption/identifier"
	exemptionmetrics "vatguard/internal/exemption/metrics"
	"vatguard/internal/exemption/registry"
	"vatguard/internal/exemption/state"
	"vatguard/internal/platform/config"
	"vatguard/internal/platform/postgres"
	"vatguard/internal/platform/redis"
	"vatguard/pkg/platform/circuit"
	"vatguard/pkg/platform/httputil"
)

// infra holds the optional backing services. Each is nil when unconfigured.
type infra struct {
	redis *redis.Client
	db    *sql.DB
	kafka *kgo.Client
}

func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	deps.redis = rc

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.db = db

	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.kafka = kc
	}

	if deps.redis == nil {
		log.Info("redis not configured, session state and registry cache stay in memory")
	}
	if deps.db == nil {
		log.Info("postgres not configured, customer and order records stay in memory")
	}
	return deps, nil
}

func (d *infra) Close() {
	if d.kafka != nil {
		d.kafka.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

func (d *infra) healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if d.redis != nil {
		if err := d.redis.Health(r.Context()); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if d.db != nil {
		if err := d.db.PingContext(r.Context()); err != nil {
			status["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	httputil.WriteJSON(w, code, status)
}

// buildValidator chains VIES behind a circuit breaker and an answer cache.
func buildValidator(cfg config.Config, deps *infra, log *slog.Logger, m *exemptionmetrics.Metrics) *identifier.Validator {
	var cache registry.Cache = registry.NewMemoryCache(cfg.Registry.CacheTTL)
	if deps.redis != nil {
		cache = registry.NewRedisCache(deps.redis.Client, cfg.Registry.CacheTTL)
	}

	breaker := circuit.New("vies",
		circuit.WithFailureThreshold(cfg.Registry.FailureThreshold),
		circuit.WithCooldown(cfg.Registry.Cooldown),
	)
	checker := registry.NewCachingChecker(
		registry.NewBreakerChecker(registry.NewVIESClient(cfg.Registry.BaseURL, cfg.Registry.Timeout), breaker, log),
		cache,
		registry.WithCacheLogger(log),
		registry.WithCacheMetrics(m),
	)

	return identifier.NewValidator(
		identifier.WithChecker(checker),
		identifier.WithTimeout(cfg.Registry.Timeout),
		identifier.WithLogger(log),
		identifier.WithMetrics(m),
	)
}

// buildStore routes session state to Redis and customer/order records to
// PostgreSQL, falling back to memory for whichever is missing.
func buildStore(ctx context.Context, cfg config.Config, deps *infra, log *slog.Logger) state.Store {
	memory := state.NewMemoryStore()

	var session state.Store = memory
	if deps.redis != nil {
		session = state.NewRedisStore(deps.redis.Client, state.WithTTL(cfg.Exemption.SessionTTL))
	}

	var durable state.Store = memory
	if deps.db != nil {
		pg := state.NewPostgresStore(deps.db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("state migration failed, using in-memory records", "error", err)
		} else {
			durable = pg
		}
	}

	return state.NewRouter().
		Route(state.ScopeSession, session).
		Route(state.ScopeCustomer, durable).
		Route(state.ScopeOrder, durable)
}

func buildPublisher(cfg config.Config, deps *infra, log *slog.Logger) events.Publisher {
	if deps.kafka == nil {
		return events.NewLogPublisher(log)
	}
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = events.DefaultTopic
	}
	return events.NewKafkaPublisher(deps.kafka, topic)
}
