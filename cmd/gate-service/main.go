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
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/auth"
	"ms-booking/internal/checkin"
	"ms-booking/internal/checkin/checkin_api"
	"ms-booking/internal/config"
	"ms-booking/internal/eventmeta"
	"ms-booking/internal/kafka"
	"ms-booking/internal/keys"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
	"ms-booking/internal/utils"
)

// The gate service is deployed close to the venue and only needs the
// check-in path: token verification, state transition, and the event
// window check. It shares the booking database but not the checkout or
// refund surfaces.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	redisClient, err := auth.DialTokenCache(cfg.Redis.Addr, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}

	var provider keys.Provider = &keys.EnvProvider{}
	if url := os.Getenv("TICKET_KEYS_URL"); url != "" {
		provider = keys.NewRemoteProvider(httpClient, url, 5*time.Minute, log)
	}
	signer := tickets.NewSigner(provider)

	m2mCfg := models.M2MConfig{
		KeycloakURL:   os.Getenv("KEYCLOAK_URL"),
		KeycloakRealm: os.Getenv("KEYCLOAK_REALM"),
		ClientID:      os.Getenv("M2M_CLIENT_ID"),
		ClientSecret:  os.Getenv("M2M_CLIENT_SECRET"),
	}
	events := eventmeta.NewFetcher(httpClient, m2mCfg, auth.NewRedisTokenCache(redisClient), log)

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	service := checkin.NewService(bunDB, signer, events, producer, cfg.CheckIn, log)
	handler := checkin_api.NewHandler(service, log)

	r := chi.NewRouter()
	r.Use(utils.RequestLogger(log))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Route("/api/v1", func(r chi.Router) {
			handler.Routes(r)
		})
	})

	port := os.Getenv("GATE_PORT")
	if port == "" {
		port = ":8085"
	}
	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Gate Service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("HTTP", "Gate Service shutdown complete")
}
