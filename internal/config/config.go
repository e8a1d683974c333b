package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Hold       HoldConfig
	Stripe     StripeConfig
	Refund     RefundConfig
	Commission CommissionConfig
	CheckIn    CheckInConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	BookingConfirmed string
	BookingCancelled string
	TicketCheckedIn  string
}

type HoldConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// PolicyTier is one row of the cancellation policy table: cancellations
// at least Before ahead of the event start refund Percent of the paid
// amount.
type PolicyTier struct {
	Before  time.Duration
	Percent float64
}

func (t PolicyTier) Label() string {
	return fmt.Sprintf(">=%s:%g%%", t.Before, t.Percent)
}

type RefundConfig struct {
	// Policy is ordered by Before descending; evaluation picks the first
	// tier whose threshold is met.
	Policy []PolicyTier
}

type PenaltyMode string

const (
	PenaltyFlat    PenaltyMode = "flat"
	PenaltyPercent PenaltyMode = "percent"
)

type CommissionConfig struct {
	// Percent of booking total accrued as commission on confirmation.
	Percent float64
	// Penalty applied to the organizer on organizer-initiated
	// cancellation: flat amount or percent of gross refunded value.
	PenaltyMode  PenaltyMode
	PenaltyValue float64
}

type CheckInConfig struct {
	// Fallback window bounds relative to event start, used when the
	// metadata collaborator does not supply explicit gate times.
	OpensBefore time.Duration
	ClosesAfter time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "booking_user"),
			Password:     getEnv("DB_PASSWORD", "booking_pass"),
			Database:     getEnv("DB_NAME", "booking_core"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BookingConfirmed: getEnv("KAFKA_TOPIC_BOOKING_CONFIRMED", "booking-confirmed"),
				BookingCancelled: getEnv("KAFKA_TOPIC_BOOKING_CANCELLED", "booking-cancelled"),
				TicketCheckedIn:  getEnv("KAFKA_TOPIC_TICKET_CHECKED_IN", "ticket-checked-in"),
			},
		},
		Hold: HoldConfig{
			TTL:           getEnvDuration("HOLD_TTL", 10*time.Minute),
			SweepInterval: getEnvDuration("HOLD_SWEEP_INTERVAL", 5*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "usd"),
		},
		Refund: RefundConfig{
			Policy: parsePolicy(getEnv("REFUND_POLICY", "168h=100,24h=50,0s=0")),
		},
		Commission: CommissionConfig{
			Percent:      getEnvFloat("COMMISSION_PERCENT", 5),
			PenaltyMode:  PenaltyMode(getEnv("PENALTY_MODE", "percent")),
			PenaltyValue: getEnvFloat("PENALTY_VALUE", 10),
		},
		CheckIn: CheckInConfig{
			OpensBefore: getEnvDuration("CHECKIN_OPENS_BEFORE", 2*time.Hour),
			ClosesAfter: getEnvDuration("CHECKIN_CLOSES_AFTER", 4*time.Hour),
		},
	}
}

// parsePolicy reads a policy table like "168h=100,24h=50,0s=0" into tiers
// sorted by threshold descending. Malformed segments are skipped.
func parsePolicy(raw string) []PolicyTier {
	var tiers []PolicyTier
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		before, err := time.ParseDuration(kv[0])
		if err != nil {
			continue
		}
		percent, err := strconv.ParseFloat(kv[1], 64)
		if err != nil || percent < 0 || percent > 100 {
			continue
		}
		tiers = append(tiers, PolicyTier{Before: before, Percent: percent})
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].Before > tiers[j].Before
	})
	return tiers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
