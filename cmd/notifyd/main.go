// notifyd is the notification delivery service: it stores per-user
// mailboxes, accepts notifications from collaborating services and pushes
// them to connected clients over SSE.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	notifmodule "github.com/aurahealth/notify/modules/notifications"
	"github.com/aurahealth/notify/pkg/config"
	"github.com/aurahealth/notify/pkg/httpserver"
	"github.com/aurahealth/notify/pkg/identity"
	"github.com/aurahealth/notify/pkg/logger"
	"github.com/aurahealth/notify/pkg/notifications"
	"github.com/aurahealth/notify/pkg/pg"
	"github.com/aurahealth/notify/pkg/redis"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"notifyd"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0"` // SSE streams must not be write-limited
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`

	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	SSEHeartbeat time.Duration `env:"SSE_HEARTBEAT" envDefault:"25s"`
	BrokerBuffer int           `env:"BROKER_BUFFER" envDefault:"64"`

	PG    pg.Config
	Redis redis.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Environment, cfg.ServiceName),
	)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("Service terminated", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	var (
		storage       notifications.Storage
		pgHealthcheck func(context.Context) error
	)
	if cfg.PG.ConnectionString != "" {
		pool, err := pg.Connect(ctx, cfg.PG)
		if err != nil {
			return err
		}
		defer pool.Close()

		pgStorage := notifications.NewPostgresStorage(pool)
		if err := pgStorage.Migrate(ctx, log); err != nil {
			return err
		}
		storage = pgStorage
		pgHealthcheck = pg.Healthcheck(pool)
		log.Info("Using PostgreSQL notification storage")
	} else {
		storage = notifications.NewMemoryStorage()
		log.Info("Using in-memory notification storage")
	}

	var (
		broker           notifications.Broker
		redisHealthcheck func(context.Context) error
	)
	if cfg.Redis.ConnectionURL != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		broker, err = notifications.NewRedisBroker(ctx, client, cfg.BrokerBuffer,
			notifications.WithRedisBrokerLogger(log),
		)
		if err != nil {
			return err
		}
		redisHealthcheck = redis.Healthcheck(client)
		log.Info("Using Redis notification broker")
	} else {
		broker = notifications.NewMemoryBroker(cfg.BrokerBuffer)
		log.Info("Using in-process notification broker")
	}
	defer broker.Close()

	svc := notifications.NewService(storage, broker,
		notifications.WithServiceLogger(log),
	)

	resolver, err := identity.NewResolver(cfg.JWTSigningKey)
	if err != nil {
		return err
	}

	handler := notifmodule.NewHandler(svc,
		notifmodule.WithLogger(log),
		notifmodule.WithHeartbeat(cfg.SSEHeartbeat),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Cache-Control"},
		AllowCredentials: true,
	}).Handler)
	r.Use(resolver.Middleware())

	r.Get("/health", healthHandler(pgHealthcheck, redisHealthcheck))
	r.Mount("/notifications", notifmodule.Router(handler))

	srv := httpserver.New(
		httpserver.WithAddr(cfg.HTTPAddr),
		httpserver.WithLogger(log),
		httpserver.WithReadTimeout(cfg.ReadTimeout),
		httpserver.WithWriteTimeout(cfg.WriteTimeout),
		httpserver.WithIdleTimeout(cfg.IdleTimeout),
		httpserver.WithShutdownTimeout(cfg.ShutdownTimeout),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("Notification service listening", slog.String("addr", cfg.HTTPAddr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("Notification service stopped")
		}),
	)

	return srv.Run(ctx, r)
}

// healthHandler reports readiness of the service's backing stores. Probes
// for disabled backends are skipped.
func healthHandler(probes ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, probe := range probes {
			if probe == nil {
				continue
			}
			if err := probe(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
