// Command create_superuser bootstraps the first SUPERADMIN login against the configured database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/internal/repository"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/config"
	"github.com/noah-isme/class-scheduling-api/pkg/database"
	appErrors "github.com/noah-isme/class-scheduling-api/pkg/errors"
	"github.com/noah-isme/class-scheduling-api/pkg/logger"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

func main() {
	var (
		username string
		email    string
		fullName string
		timeout  time.Duration
	)
	flag.StringVar(&username, "username", "admin", "Login name of the new superadmin")
	flag.StringVar(&email, "email", "", "Email of the new superadmin")
	flag.StringVar(&fullName, "name", "System Administrator", "Display name")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	password := os.Getenv("SUPERADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "usage: SUPERADMIN_PASSWORD=... create_superuser -email admin@school.test [-username admin] [-name \"...\"]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.RunMigrations(db, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	users := repository.NewUserRepository(db)
	svc := service.NewUserService(users, users, users, cfg.Provisioning.DefaultPassword, validation.New(), logr)
	account, err := svc.Create(ctx, service.CreateUserRequest{
		Username: username,
		Email:    email,
		FullName: fullName,
		Role:     models.RoleSuperAdmin,
		Password: password,
	}, service.Actor{Role: models.RoleSuperAdmin, UserAgent: "create_superuser"})
	if err != nil {
		appErr := appErrors.FromError(err)
		logr.Fatal("failed to create superadmin", zap.String("code", appErr.Code), zap.Any("details", appErr.Details), zap.Error(err))
	}
	fmt.Printf("superadmin %q created with id %s\n", account.Username, account.ID)
}
