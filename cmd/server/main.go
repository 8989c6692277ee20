package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/checkout/internal/adapter/gateway"
	"github.com/rl1809/checkout/internal/adapter/handler"
	"github.com/rl1809/checkout/internal/adapter/notify"
	"github.com/rl1809/checkout/internal/adapter/storage"
	"github.com/rl1809/checkout/internal/config"
	"github.com/rl1809/checkout/internal/core/service"
	"github.com/rl1809/checkout/internal/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNewLogger("checkout", cfg.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	runMigrations(cfg, logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	gw := gateway.New(gateway.Config{
		Endpoint:        cfg.GatewayEndpoint,
		StoreID:         cfg.GatewayStoreID,
		StorePass:       cfg.GatewayStorePass,
		CallbackBaseURL: cfg.CallbackBaseURL,
		Timeout:         cfg.GatewayTimeout,
	})

	notifier := notify.NewWebhookNotifier(cfg.NotifySinkURL, cfg.NotifyWorkers,
		cfg.NotifyQueueSize, logger.Named("notify"))

	checkout := service.NewCheckoutService(
		mysqlAdapter, mysqlAdapter, mysqlAdapter,
		gw, redisAdapter, notifier,
		cfg.ClientBaseURL, logger.Named("checkout"),
	)
	janitor := service.NewJanitor(mysqlAdapter, mysqlAdapter, cfg.JanitorInterval,
		cfg.PendingOrderTTL, logger.Named("janitor"))

	h := handler.NewHTTPHandler(checkout, logger.Named("http"))
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: h.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", zap.Error(err))
	}

	notifier.Close()
	logger.Info("notification workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func runMigrations(cfg *config.Config, logger *zap.Logger) {
	m, err := migrate.New("file://"+cfg.MigrationsPath, "mysql://"+cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to init migrations", zap.Error(err))
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}
	logger.Info("migrations applied")
}
