// seed-admin creates an admin user for the kitchen dashboard.
//
// Usage:
//
//	DATABASE_DSN=... go run ./cmd/seed-admin -email chef@example.com -name "Head Chef"
//
// The password is read from ADMIN_PASSWORD.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"burrito-backend/internal/auth"
	"burrito-backend/internal/config"
	"burrito-backend/internal/database"
	"burrito-backend/internal/models"
	"burrito-backend/internal/store"

	"github.com/sirupsen/logrus"
)

func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "admin email")
	name := flag.String("name", "Kitchen Admin", "display name")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")
	if strings.TrimSpace(*email) == "" || len(password) < 8 {
		fmt.Fprintln(os.Stderr, "set -email (or ADMIN_EMAIL) and ADMIN_PASSWORD (at least 8 characters)")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Init(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db, logger); err != nil {
		logger.WithError(err).Fatal("database migration failed")
	}
	st := database.NewStore(db)

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user := models.User{
		Name:         strings.TrimSpace(*name),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := st.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fmt.Fprintf(os.Stderr, "a user with email %s already exists\n", user.Email)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "failed to create admin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("admin %s created (id %d)\n", user.Email, user.ID)
}
