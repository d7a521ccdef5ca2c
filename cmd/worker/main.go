package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storefront/order-intake/internal/config"
	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/infra/postgresql"
	"github.com/storefront/order-intake/internal/infra/postgresql/migrations"
	infraredis "github.com/storefront/order-intake/internal/infra/redis"
	"github.com/storefront/order-intake/internal/mailer"
	"github.com/storefront/order-intake/internal/observability"
	"github.com/storefront/order-intake/internal/queue"
	"github.com/storefront/order-intake/internal/repository"
	"github.com/storefront/order-intake/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const consumerPrefetch = 8

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for the worker; without a broker the api handles delivery in-process")
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	locker, err := infraredis.NewDeliveryLease(rdb, 0)
	if err != nil {
		logger.Fatal("delivery lease initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	orders := repository.NewGormOrderRepo(db)

	baseURL := mailer.ResolveBaseURL(
		[]string{cfg.PublicBaseURL, os.Getenv("RENDER_EXTERNAL_URL"), os.Getenv("VERCEL_URL")},
		mailer.DefaultStoreURL,
	)
	composer, err := mailer.NewComposer(cfg.OrderNotifyEmail, baseURL)
	if err != nil {
		logger.Fatal("composer initialization failed", zap.Error(err))
	}

	mailTransport, err := mailer.NewHTTPTransport(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	if err != nil {
		logger.Fatal("mail transport initialization failed", zap.Error(err))
	}

	sendTimeout := time.Duration(cfg.SendTimeoutSec) * time.Second
	delivery, err := service.NewDeliveryService(orders, mailTransport, composer, locker, sendTimeout, logger)
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}
	delivery.SetMetrics(metrics)

	client, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	consumer := queue.NewRabbitMQConsumer(client, consumerPrefetch, logger)
	defer consumer.Close()

	sweepInterval := time.Duration(cfg.SweepIntervalSec) * time.Second
	sweeper, err := service.NewSweeper(orders, delivery, sweepInterval, cfg.SweepLimit, cfg.MaxEmailRetries, logger)
	if err != nil {
		logger.Fatal("sweeper initialization failed", zap.Error(err))
	}

	handle := func(ctx context.Context, msg queue.DeliveryMessage) error {
		order, err := orders.GetByID(ctx, msg.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("delivery hand-off for unknown order", zap.String("orderId", msg.OrderID))
				return nil
			}
			return err
		}

		if _, err := delivery.Attempt(ctx, order); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				logger.Info("delivery already in progress elsewhere", zap.String("orderId", msg.OrderID))
				return nil
			}
			return err
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("order-intake worker started", zap.String("queue", queue.EmailQueue))
		return consumer.Consume(groupCtx, queue.EmailQueue, handle)
	})

	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
	logger.Info("order-intake worker stopped")
}
