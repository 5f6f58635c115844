package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-flight-reservation/internal/api"
	"github.com/sanosuguru/go-flight-reservation/internal/api/handler"
	"github.com/sanosuguru/go-flight-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-flight-reservation/internal/api/router"
	"github.com/sanosuguru/go-flight-reservation/internal/application"
	"github.com/sanosuguru/go-flight-reservation/internal/config"
	"github.com/sanosuguru/go-flight-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-flight-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-flight-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-flight-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-flight-reservation/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// データベース
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続エラー", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションエラー", zap.Error(err))
	}

	// Redis は任意。接続できなければロックとキャッシュなしで動かす
	var (
		redisClient *redis.Client
		lockManager redisinfra.LockManagerInterface
		seatCache   application.SeatCache
	)
	redisClient, err = redisinfra.NewClient(&redisinfra.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("Redisに接続できません。分散ロックと空席数キャッシュを無効化します", zap.Error(err))
	} else {
		defer redisClient.Close()
		lockManager = redisinfra.NewLockManager(redisClient)
		seatCache = redisinfra.NewFlightSeatCache(redisClient)
	}

	m := metrics.Init()

	// リポジトリ・サービス
	txManager := postgres.NewTxManager(db)
	flightRepo := postgres.NewFlightRepository(db)
	inventory := postgres.NewSeatInventory(db)
	reservationRepo := postgres.NewReservationRepository(db)
	loyaltyRepo := postgres.NewLoyaltyRepository(db)

	flightService := application.NewFlightService(flightRepo, inventory, seatCache).
		WithCacheTTL(cfg.Cache.SeatCountTTL).
		WithMetrics(m)
	reservationService := application.NewReservationService(
		txManager, reservationRepo, flightRepo, inventory, loyaltyRepo, lockManager, seatCache,
	).WithMetrics(m)
	if cfg.RabbitMQ.Enabled() {
		reservationService.WithPublisher(rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue))
		logger.Info("予約イベントの送信を有効化", zap.String("queue", cfg.RabbitMQ.Queue))
	}

	// ヘルスチェック対象
	checks := map[string]handler.Checker{
		"database": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	middleware.SetupMiddleware(e, m)

	router.Register(e, router.Handlers{
		Flight:      handler.NewFlightHandler(flightService),
		Reservation: handler.NewReservationHandler(reservationService),
		Loyalty:     handler.NewLoyaltyHandler(reservationService),
		Health:      handler.NewHealthHandler(checks),
	}, router.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		Metrics:        cfg.Metrics,
		MetricsHandler: promhttp.Handler(),
	})

	// 失効した仮押さえの解放
	sweeper := worker.NewStaleBlockSweeper(reservationService, cfg.Worker.ExpirySweepInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
