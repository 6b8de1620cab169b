package database

import (
	"context"
	"fmt"
	"time"

	"burrito-backend/internal/config"
	"burrito-backend/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init opens the Postgres connection, retrying with capped exponential
// backoff up to cfg.DBConnectAttempts times.
func Init(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	attempts := cfg.DBConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil {
				sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
				sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(time.Minute)
			}
			if perr := db.Use(otelgorm.NewPlugin()); perr != nil {
				logger.WithError(perr).Warn("database connected but the otelgorm plugin failed to install")
			}
			logger.WithField("attempt", attempt).Info("connected to database")
			return db, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{"attempt": attempt, "retry_in": sleep.String()}).
			WithError(err).Warn("failed to connect database")
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("connect database after %d attempts: %w", attempts, lastErr)
}

// Migrate creates or updates the schema and adds the constraints AutoMigrate
// cannot express.
func Migrate(db *gorm.DB, logger *logrus.Logger) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.ProductionSchedule{},
		&models.Order{},
		&models.Burrito{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	constraints := []struct {
		table, name, ddl string
	}{
		{
			table: "production_schedules",
			name:  "chk_production_schedules_burritos_ordered",
			ddl:   "ALTER TABLE production_schedules ADD CONSTRAINT chk_production_schedules_burritos_ordered CHECK (burritos_ordered BETWEEN 0 AND max_burritos)",
		},
		{
			table: "production_schedules",
			name:  "chk_production_schedules_weekend",
			ddl:   "ALTER TABLE production_schedules ADD CONSTRAINT chk_production_schedules_weekend CHECK (EXTRACT(ISODOW FROM production_date) IN (6, 7))",
		},
	}
	for _, c := range constraints {
		var exists bool
		if err := db.Raw(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.table_constraints
				WHERE table_name = ?
				AND constraint_name = ?
			)
		`, c.table, c.name).Scan(&exists).Error; err != nil {
			return fmt.Errorf("check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		logger.WithField("constraint", c.name).Info("adding constraint")
		if err := db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("add constraint %s: %w", c.name, err)
		}
	}

	logger.Info("database migration complete")
	return nil
}
