package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=burrito port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
	timeOfDayLayout    = "15:04:05"
)

type ScheduleDefaults struct {
	WeeksAhead      int
	Capacity        int
	OrderCutoffTime string
	PickupStartTime string
	PickupEndTime   string
}

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins string

	RedisAddress  string
	RedisPassword string

	Location *time.Location
	LogLevel string

	Schedule         ScheduleDefaults
	BurritoBasePrice decimal.Decimal

	DBMaxOpenConns    int
	DBConnectAttempts int

	// Warnings collected while loading; logged once a logger exists.
	Warnings []string
}

// Load reads the configuration from the environment, after loading .env when
// present. Invalid values are returned as errors.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:   getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Schedule: ScheduleDefaults{
			OrderCutoffTime: getEnv("SCHEDULE_DEFAULT_CUTOFF", "22:00:00"),
			PickupStartTime: getEnv("SCHEDULE_PICKUP_START", "09:00:00"),
			PickupEndTime:   getEnv("SCHEDULE_PICKUP_END", "13:00:00"),
		},
	}

	var errs []error
	intVar := func(key string, def int, dst *int) {
		v, err := intFromEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		*dst = v
	}

	var ttlHours int
	intVar("JWT_TTL_HOURS", 24, &ttlHours)
	cfg.JWTTTL = time.Duration(ttlHours) * time.Hour
	intVar("SCHEDULE_WEEKS_AHEAD", 4, &cfg.Schedule.WeeksAhead)
	intVar("SCHEDULE_DEFAULT_CAPACITY", 100, &cfg.Schedule.Capacity)
	intVar("DB_MAX_OPEN_CONNS", 25, &cfg.DBMaxOpenConns)
	intVar("DB_CONNECT_ATTEMPTS", 5, &cfg.DBConnectAttempts)

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}

	tz := getEnv("STORE_TIMEZONE", "America/Los_Angeles")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("STORE_TIMEZONE %q: %w", tz, err))
		loc = time.UTC
	}
	cfg.Location = loc

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.Schedule.Capacity < 1 || cfg.Schedule.Capacity > 500 {
		errs = append(errs, fmt.Errorf("SCHEDULE_DEFAULT_CAPACITY must be between 1 and 500, got %d", cfg.Schedule.Capacity))
	}
	if cfg.Schedule.WeeksAhead < 1 {
		errs = append(errs, fmt.Errorf("SCHEDULE_WEEKS_AHEAD must be positive, got %d", cfg.Schedule.WeeksAhead))
	}
	for key, v := range map[string]string{
		"SCHEDULE_DEFAULT_CUTOFF": cfg.Schedule.OrderCutoffTime,
		"SCHEDULE_PICKUP_START":   cfg.Schedule.PickupStartTime,
		"SCHEDULE_PICKUP_END":     cfg.Schedule.PickupEndTime,
	} {
		if _, err := time.Parse(timeOfDayLayout, v); err != nil {
			errs = append(errs, fmt.Errorf("%s must be HH:MM:SS, got %q", key, v))
		}
	}

	price, err := decimal.NewFromString(getEnv("BURRITO_BASE_PRICE", "12.00"))
	if err != nil || !price.IsPositive() {
		errs = append(errs, errors.New("BURRITO_BASE_PRICE must be a positive decimal"))
	}
	cfg.BurritoBasePrice = price

	if cfg.DatabaseDSN == defaultDSN {
		cfg.Warnings = append(cfg.Warnings, "DATABASE_DSN is using the default value; set your own Postgres connection for production")
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		cfg.Warnings = append(cfg.Warnings, "CORS_ALLOWED_ORIGINS is using the default value; set your own domain for production")
	}
	if cfg.RedisAddress == "" {
		cfg.Warnings = append(cfg.Warnings, "REDIS_ADDRESS is not set; schedule generation falls back to an in-process lock")
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
