package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"burrito-backend/internal/clock"
	"burrito-backend/internal/config"
	"burrito-backend/internal/database"
	"burrito-backend/internal/lock"
	"burrito-backend/internal/metrics"
	"burrito-backend/internal/order"
	"burrito-backend/internal/schedule"
	"burrito-backend/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Init(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db, logger); err != nil {
		logger.WithError(err).Fatal("database migration failed")
	}
	st := database.NewStore(db)

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddress != "" {
		rdb, err := lock.Connect(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
		logger.WithField("address", cfg.RedisAddress).Info("using redis locks")
	} else {
		logger.Warn("REDIS_ADDRESS not set, schedule generation locks are local to this process")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	clk := clock.New(cfg.Location)
	schedules := schedule.NewService(st, clk, locker, logger, m, cfg.Schedule)
	orders := order.NewService(st, schedules, clk, order.FlatPricer{Base: cfg.BurritoBasePrice}, logger, m)

	app := server.New(server.Deps{
		Config:    cfg,
		Logger:    logger,
		Clock:     clk,
		Store:     st,
		Schedules: schedules,
		Orders:    orders,
		Metrics:   m,
		Gatherer:  reg,
		Health: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	logger.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
