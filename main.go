package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking/booking_api"
	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/checkout"
	"ms-booking/internal/checkout/checkout_api"
	checkout_redis "ms-booking/internal/checkout/redis"
	"ms-booking/internal/commission"
	"ms-booking/internal/commission/commission_api"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/eventmeta"
	"ms-booking/internal/hold"
	"ms-booking/internal/hold/hold_api"
	"ms-booking/internal/inventory/inventory_api"
	"ms-booking/internal/kafka"
	"ms-booking/internal/keys"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/refund"
	"ms-booking/internal/refund/refund_api"
	"ms-booking/internal/tickets"
	ticket_db "ms-booking/internal/tickets/db"
	"ms-booking/internal/utils"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Could not connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func keyProvider(client *http.Client, log *logger.Logger) keys.Provider {
	if url := os.Getenv("TICKET_KEYS_URL"); url != "" {
		log.Info("KEYS", fmt.Sprintf("Using remote key provider at %s", url))
		return keys.NewRemoteProvider(client, url, 5*time.Minute, log)
	}
	return &keys.EnvProvider{}
}

func m2mConfig() models.M2MConfig {
	return models.M2MConfig{
		KeycloakURL:   os.Getenv("KEYCLOAK_URL"),
		KeycloakRealm: os.Getenv("KEYCLOAK_REALM"),
		ClientID:      os.Getenv("M2M_CLIENT_ID"),
		ClientSecret:  os.Getenv("M2M_CLIENT_SECRET"),
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Core initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	httpClient := &http.Client{Timeout: 10 * time.Second}

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()
	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, os.Getenv("MIGRATIONS_DIR"))
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	if version, err := runner.Version(); err == nil {
		log.LogDatabase("MIGRATE", "postgresql", fmt.Sprintf("Schema at version %d", version))
	}

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
	}

	checkout.InitStripe(cfg.Stripe.SecretKey)

	tokenCache := auth.NewRedisTokenCache(redisClient)
	events := eventmeta.NewFetcher(httpClient, m2mConfig(), tokenCache, log)

	holdService := hold.NewService(bunDB, cfg.Hold.TTL, log)
	signer := tickets.NewSigner(keyProvider(httpClient, log))
	issuer := tickets.NewIssuer(signer, bunDB, log)
	commissionService := commission.NewService(bunDB, cfg.Commission, log)
	checkoutService := checkout.NewService(
		bunDB,
		holdService,
		issuer,
		commissionService,
		&checkout.StripeClient{},
		checkout_redis.NewLock(redisClient, log),
		producer,
		cfg.Stripe.Currency,
		log,
	)
	refundService := refund.NewService(
		bunDB,
		holdService.Ledger(),
		commissionService,
		events,
		producer,
		cfg.Refund.Policy,
		log,
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweeper := hold.NewSweeper(holdService, cfg.Hold.SweepInterval, log)
	go sweeper.Start(sweepCtx)

	holdHandler := hold_api.NewHandler(holdService, log)
	inventoryHandler := inventory_api.NewHandler(holdService.Ledger(), log)
	checkoutHandler := checkout_api.NewHandler(checkoutService, log)
	bookingHandler := booking_api.NewHandler(&booking_db.DB{Bun: bunDB}, &ticket_db.DB{Bun: bunDB}, log)
	refundHandler := refund_api.NewHandler(refundService, log)
	commissionHandler := commission_api.NewHandler(commissionService, log)

	r := chi.NewRouter()
	r.Use(utils.RequestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Route("/api/v1", func(r chi.Router) {
			inventoryHandler.Routes(r)
			holdHandler.Routes(r)
			checkoutHandler.Routes(r)
			bookingHandler.Routes(r)
			refundHandler.Routes(r)
			commissionHandler.Routes(r)
		})
	})
	log.Info("ROUTER", "Booking routes registered under /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Booking Core running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received")
	stopSweep()

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Booking Core shutdown complete")
	}
}
