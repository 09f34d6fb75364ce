package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Booking  BookingConfig
}

type PostgresConfig struct {
	User      string
	Password  string
	Name      string
	Host      string
	Port      int
	SSLMode   string
	TxTimeout time.Duration
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers             []string
	BookingEventsTopic  string
	PaymentResultsTopic string
	GroupID             string
}

type BookingConfig struct {
	ExpiryTimeout time.Duration
	SweepInterval time.Duration
	FlightTTL     time.Duration
	SearchTTL     time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	txTimeout, err := durationEnv("DB_TX_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresCfg := PostgresConfig{
		User:      postgresUser,
		Password:  postgresPassword,
		Name:      postgresDB,
		Host:      postgresHost,
		Port:      postgresPort,
		SSLMode:   postgresSSLMode,
		TxTimeout: txTimeout,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	bookingEventsTopic := os.Getenv("KAFKA_BOOKING_EVENTS_TOPIC")
	if bookingEventsTopic == "" {
		bookingEventsTopic = "booking-events"
	}

	paymentResultsTopic := os.Getenv("KAFKA_PAYMENT_RESULTS_TOPIC")
	if paymentResultsTopic == "" {
		paymentResultsTopic = "payment-results"
	}

	groupID := os.Getenv("KAFKA_GROUP_ID")
	if groupID == "" {
		groupID = "skybook"
	}

	kafkaCfg := KafkaConfig{
		Brokers:             strings.Split(brokers, ","),
		BookingEventsTopic:  bookingEventsTopic,
		PaymentResultsTopic: paymentResultsTopic,
		GroupID:             groupID,
	}

	expiryTimeout, err := durationEnv("BOOKING_EXPIRY_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sweepInterval, err := durationEnv("BOOKING_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	flightTTL, err := durationEnv("FLIGHT_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	searchTTL, err := durationEnv("SEARCH_CACHE_TTL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookingCfg := BookingConfig{
		ExpiryTimeout: expiryTimeout,
		SweepInterval: sweepInterval,
		FlightTTL:     flightTTL,
		SearchTTL:     searchTTL,
	}

	return &Config{
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Kafka:    kafkaCfg,
		Booking:  bookingCfg,
	}, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}
