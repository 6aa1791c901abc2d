package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"designer-marketplace/internal/config"
	"designer-marketplace/internal/db"
	"designer-marketplace/internal/events"
	"designer-marketplace/internal/gateway"
	"designer-marketplace/internal/httpserver"
	"designer-marketplace/internal/logging"
	"designer-marketplace/internal/metrics"
	"designer-marketplace/internal/migrate"
	cartrepo "designer-marketplace/internal/repository/cart"
	"designer-marketplace/internal/repository/inventory"
	"designer-marketplace/internal/repository/memory"
	orderrepo "designer-marketplace/internal/repository/order"
	paymentrepo "designer-marketplace/internal/repository/payment"
	productrepo "designer-marketplace/internal/repository/product"
	tokenrepo "designer-marketplace/internal/repository/token"
	"designer-marketplace/internal/seed"
	cartsvc "designer-marketplace/internal/service/cart"
	"designer-marketplace/internal/service/checkout"
	ordersvc "designer-marketplace/internal/service/order"
	paymentsvc "designer-marketplace/internal/service/payment"
	productsvc "designer-marketplace/internal/service/product"
	"designer-marketplace/internal/service/webhook"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stores is the repository set backing one process.
type stores struct {
	pool     *pgxpool.Pool
	products productrepo.Repository
	ledger   inventory.Ledger
	carts    cartrepo.Repository
	orders   orderrepo.Repository
	payments paymentrepo.Repository
	tokens   tokenrepo.Repository
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("marketplace-api", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	m := metrics.New()
	gw, err := gateway.NewHTTPClient(gateway.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	}, m, logger)
	if err != nil {
		logger.Fatal("init payment gateway", zap.Error(err))
	}

	rdb := openRedis(ctx, cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	}()

	var carts *cartsvc.Service
	if rdb != nil {
		carts = cartsvc.New(st.carts, st.products, cartrepo.NewCache(rdb, cfg.Redis.CartTTL), logger)
	} else {
		carts = cartsvc.New(st.carts, st.products, nil, logger)
	}

	coordinator := checkout.NewCoordinator(checkout.Deps{
		Carts:   carts,
		Ledger:  st.ledger,
		Orders:  st.orders,
		Intents: st.payments,
		Gateway: gw,
		Events:  publisher,
		Metrics: m,
		Logger:  logger,
	}, checkout.Options{ReservationTTL: cfg.Checkout.ReservationTTL})

	webhookDeps := webhook.Deps{
		Gateway:  gw,
		Settler:  coordinator,
		Payments: st.orders,
		Holds:    st.ledger,
		Events:   publisher,
		Metrics:  m,
		Logger:   logger,
	}
	if rdb != nil {
		webhookDeps.Dedupe = paymentrepo.NewDedupe(rdb, 24*time.Hour)
	}

	// the ready probe pings Postgres only when it backs the process
	var readiness interface {
		Ping(ctx context.Context) error
	}
	if st.pool != nil {
		readiness = st.pool
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, readiness, httpserver.Deps{
		Tokens:      st.tokens,
		Carts:       carts,
		Checkout:    coordinator,
		Payments:    paymentsvc.New(st.payments, st.orders, gw, cfg.Gateway.Currency, logger),
		Webhooks:    webhook.New(webhookDeps),
		Orders:      ordersvc.New(st.orders, publisher, logger),
		Products:    productsvc.New(st.products),
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go checkout.NewSweeper(st.ledger, cfg.Checkout.SweepInterval, m, logger).Run(sweepCtx)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Storage == "memory" {
		mem := memory.New()
		if err := seed.Load(ctx, mem.Products(), mem.Tokens(), seed.Demo(time.Now().UTC())); err != nil {
			return nil, err
		}
		logger.Warn("using in-memory storage with demo data; nothing survives a restart")
		return &stores{
			products: mem.Products(),
			ledger:   mem.Ledger(),
			carts:    mem.Carts(),
			orders:   mem.Orders(),
			payments: mem.Payments(),
			tokens:   mem.Tokens(),
		}, nil
	}

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		return nil, err
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		pool:     pool,
		products: productrepo.NewPostgres(pool, logger),
		ledger:   inventory.NewPostgres(pool, logger),
		carts:    cartrepo.NewPostgres(pool),
		orders:   orderrepo.NewPostgres(pool, logger),
		payments: paymentrepo.NewPostgres(pool),
		tokens:   tokenrepo.NewPostgres(pool),
	}, nil
}

// openRedis returns nil when Redis is not configured or not reachable; carts
// and webhooks then work without cache and dedupe.
func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing without cache", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
