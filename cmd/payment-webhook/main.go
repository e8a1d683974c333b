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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/checkout"
	checkout_redis "ms-booking/internal/checkout/redis"
	"ms-booking/internal/checkout/webhook"
	"ms-booking/internal/commission"
	"ms-booking/internal/config"
	"ms-booking/internal/hold"
	"ms-booking/internal/kafka"
	"ms-booking/internal/keys"
	"ms-booking/internal/logger"
	"ms-booking/internal/tickets"
)

// The webhook service carries the full promotion path: a success
// reported asynchronously must be able to confirm the hold, mint
// tickets and post commission exactly like the synchronous checkout.
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisClient.Close()

	checkout.InitStripe(cfg.Stripe.SecretKey)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	var provider keys.Provider = &keys.EnvProvider{}
	if url := os.Getenv("TICKET_KEYS_URL"); url != "" {
		provider = keys.NewRemoteProvider(httpClient, url, 5*time.Minute, log)
	}

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	holdService := hold.NewService(bunDB, cfg.Hold.TTL, log)
	issuer := tickets.NewIssuer(tickets.NewSigner(provider), bunDB, log)
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

	handler := webhook.NewHandler(checkoutService, cfg.Stripe.WebhookSecret, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	handler.Routes(r)

	port := os.Getenv("WEBHOOK_PORT")
	if port == "" {
		port = ":8086"
	}
	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Payment Webhook Service running on %s", port))
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
	log.Info("HTTP", "Payment Webhook Service shutdown complete")
}
