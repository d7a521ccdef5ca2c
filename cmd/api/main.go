package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/storefront/order-intake/internal/config"
	"github.com/storefront/order-intake/internal/domain"
	"github.com/storefront/order-intake/internal/handler"
	"github.com/storefront/order-intake/internal/infra/postgresql"
	"github.com/storefront/order-intake/internal/infra/postgresql/migrations"
	infraredis "github.com/storefront/order-intake/internal/infra/redis"
	"github.com/storefront/order-intake/internal/mailer"
	"github.com/storefront/order-intake/internal/observability"
	"github.com/storefront/order-intake/internal/queue"
	"github.com/storefront/order-intake/internal/repository"
	"github.com/storefront/order-intake/internal/service"
	"github.com/storefront/order-intake/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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

	handleDelivery := deliveryHandler(orders, delivery, logger)

	publisher, publisherCleanup, err := newPublisher(cfg, handleDelivery, logger)
	if err != nil {
		logger.Fatal("dispatch publisher initialization failed", zap.Error(err))
	}
	defer publisherCleanup()

	orderSvc, err := service.NewOrderService(orders, publisher, logger)
	if err != nil {
		logger.Fatal("order service initialization failed", zap.Error(err))
	}
	orderSvc.SetMetrics(metrics)

	sweepInterval := time.Duration(cfg.SweepIntervalSec) * time.Second
	sweeper, err := service.NewSweeper(orders, delivery, sweepInterval, cfg.SweepLimit, cfg.MaxEmailRetries, logger)
	if err != nil {
		logger.Fatal("sweeper initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterOrderRoutes(app, orderSvc, delivery); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("order-intake api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
	logger.Info("order-intake api stopped")
}

// deliveryHandler loads the referenced order and runs one attempt. A lost
// lease or missing order is not worth redelivering: the store state and the
// sweep own retries.
func deliveryHandler(orders repository.OrderRepository, delivery *service.DeliveryService, logger *zap.Logger) queue.MessageHandler {
	return func(ctx context.Context, msg queue.DeliveryMessage) error {
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
}

// newPublisher picks the dispatch mode: a RabbitMQ hand-off to cmd/worker
// when a broker URL is configured, otherwise a detached in-process run.
func newPublisher(cfg *config.Config, h queue.MessageHandler, logger *zap.Logger) (queue.Publisher, func(), error) {
	if cfg.RabbitMQURL != "" {
		client, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return nil, nil, err
		}
		p := queue.NewRabbitMQPublisher(client)
		return p, func() { _ = p.Close() }, nil
	}

	p, err := queue.NewInProcPublisher(h, 0, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}
