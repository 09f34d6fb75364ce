package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/skybook/skybook/internal/config"
	"github.com/skybook/skybook/internal/kafka"
	"github.com/skybook/skybook/internal/postgres"
	"github.com/skybook/skybook/internal/redis"
	"github.com/skybook/skybook/internal/repository"
	postgresrepo "github.com/skybook/skybook/internal/repository/postgres"
	redisrepo "github.com/skybook/skybook/internal/repository/redis"
	"github.com/skybook/skybook/internal/service"
	"github.com/skybook/skybook/internal/service/booking"
	"github.com/skybook/skybook/internal/service/catalog"
	"github.com/skybook/skybook/internal/service/payment"
)

// App hosts the two background workers around the booking core: the expiry
// sweeper and the payment-results consumer. The HTTP boundary lives outside
// this repository and talks to Services directly.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	services *service.Services
	consumer *kafka.Consumer
	producer *kafka.Producer
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: cfg.Postgres.DSN()})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	store := postgresrepo.NewStore(pgxPool, cfg.Postgres.TxTimeout)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewFlightsPubSub(rdb)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)

	services := service.NewServices(store, cache, pubsub, producer, service.Config{
		Catalog: catalog.Config{
			FlightTTL: cfg.Booking.FlightTTL,
			SearchTTL: cfg.Booking.SearchTTL,
		},
		Booking: booking.Config{
			ExpiryTimeout: cfg.Booking.ExpiryTimeout,
			EventsTopic:   cfg.Kafka.BookingEventsTopic,
		},
	})

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentResultsTopic)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		consumer: consumer,
		producer: producer,
	}, nil
}

func (a *App) Services() *service.Services {
	return a.services
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runSweeper(gCtx)
	})

	g.Go(func() error {
		return a.runPaymentConsumer(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down")
		_ = a.consumer.Close()
		_ = a.producer.Close()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// runSweeper periodically cancels bookings that stayed INITIATED past the
// expiry timeout.
func (a *App) runSweeper(ctx context.Context) error {
	a.logger.Info("expiry sweeper started", "interval", a.cfg.Booking.SweepInterval)

	ticker := time.NewTicker(a.cfg.Booking.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired, err := a.services.Booking.ExpireInitiated(ctx)
			if err != nil {
				if errors.Is(err, repository.ErrLedgerCorrupted) {
					return fmt.Errorf("expiry sweep: %w", err)
				}

				a.logger.Error("expiry sweep failed", "error", err)
				continue
			}

			if expired > 0 {
				a.logger.Info("expired bookings", "count", expired)
			}
		}
	}
}

// runPaymentConsumer feeds payment outcomes from the payment collaborator into
// the confirmation handler. A transient store failure leaves the message
// uncommitted for redelivery; business rejections are final and committed.
func (a *App) runPaymentConsumer(ctx context.Context) error {
	a.logger.Info("payment results consumer started", "topic", a.cfg.Kafka.PaymentResultsTopic)

	return a.consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		var res kafka.PaymentResult
		if err := json.Unmarshal(msg.Value, &res); err != nil {
			a.logger.Error("malformed payment result", "error", err)
			return nil
		}

		b, err := a.services.Payment.HandleResult(ctx, payment.Result{
			BookingID:   res.BookingID,
			UserID:      res.UserID,
			AmountCents: res.AmountCents,
			Succeeded:   res.Succeeded,
		})
		if err != nil {
			if errors.Is(err, repository.ErrStoreUnavailable) {
				return err
			}

			a.logger.Error("payment result rejected",
				"booking_id", res.BookingID, "error", err)
			return nil
		}

		a.logger.Info("payment result applied",
			"booking_id", b.ID, "status", b.Status)
		return nil
	})
}
