// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"time"

	"journey-risk-api-server/config"
	"journey-risk-api-server/internal/auth"
	"journey-risk-api-server/internal/models"
	"journey-risk-api-server/internal/repository"

	"go.uber.org/zap"
)

// SeedAdmin creates the configured admin account once. Without a password nothing is seeded.
func SeedAdmin(ctx context.Context, users repository.UserStore, cfg config.AdminConfig, logger *zap.Logger) error {
	if cfg.Password == "" {
		logger.Info("admin password not configured, seeding skipped")
		return nil
	}

	_, err := users.GetByUsername(ctx, cfg.Username)
	if err == nil {
		logger.Info("admin already exists, seeding skipped", zap.String("username", cfg.Username))
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	logger.Info("admin not found, seeding", zap.String("username", cfg.Username))
	hashedPassword, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
		Preferences:  models.DefaultPreferences(),
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// another instance seeded concurrently
			return nil
		}
		return err
	}

	logger.Info("admin seeded successfully", zap.String("id", admin.ID.Hex()))
	return nil
}
