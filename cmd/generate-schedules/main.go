// generate-schedules creates weekend production days for the coming weeks
// with the configured defaults. Existing days are left alone, so it is safe
// to run from cron.
//
// Usage:
//
//	DATABASE_DSN=... go run ./cmd/generate-schedules -weeks 8
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"burrito-backend/internal/audit"
	"burrito-backend/internal/clock"
	"burrito-backend/internal/config"
	"burrito-backend/internal/database"
	"burrito-backend/internal/lock"
	"burrito-backend/internal/schedule"

	"github.com/sirupsen/logrus"
)

func main() {
	weeks := flag.Int("weeks", 0, "weeks ahead to generate (0 uses SCHEDULE_WEEKS_AHEAD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = audit.WithActor(ctx, audit.Actor{Name: "generate-schedules"})

	db, err := database.Init(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddress != "" {
		rdb, err := lock.Connect(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	}

	svc := schedule.NewService(database.NewStore(db), clock.New(cfg.Location), locker, logger, nil, cfg.Schedule)
	res, err := svc.Generate(ctx, *weeks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate schedules: %v\n", err)
		os.Exit(1)
	}

	for _, s := range res.Created {
		fmt.Printf("created %s (%s, %d burritos)\n", s.DateString(), s.DayOfWeek, s.MaxBurritos)
	}
	for _, d := range res.Skipped {
		fmt.Printf("skipped %s (already scheduled)\n", d)
	}
}
