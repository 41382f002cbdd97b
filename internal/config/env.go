package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/scorer"
)

// MinSessionSecretLen is the shortest accepted signing secret.
const MinSessionSecretLen = 16

// LoadServer reads server settings from the environment after loading envFile, if present.
// Variables already set in the environment win over the file.
func LoadServer(ctx context.Context, envFile string) (model.ServerConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return model.ServerConfig{}, err
	}
	var cfg model.ServerConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return model.ServerConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if err := ValidateServer(cfg); err != nil {
		return model.ServerConfig{}, err
	}
	return cfg, nil
}

// ValidateServer rejects settings the server cannot run with.
func ValidateServer(cfg model.ServerConfig) error {
	if len(cfg.SessionSecret) < MinSessionSecretLen {
		return fmt.Errorf("TYPESPEED_SESSION_SECRET must be at least %d characters", MinSessionSecretLen)
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("TYPESPEED_SESSION_TTL must be positive")
	}
	if _, err := scorer.ParseMode(cfg.Mode); err != nil {
		return fmt.Errorf("TYPESPEED_MODE: %w", err)
	}
	if cfg.Addr == "" {
		return fmt.Errorf("TYPESPEED_ADDR is empty")
	}
	return nil
}

// AccountConfig is the subset of server settings needed to manage accounts offline.
type AccountConfig struct {
	DBPath     string `env:"TYPESPEED_DB_PATH"`
	BcryptCost int    `env:"TYPESPEED_BCRYPT_COST, default=10"`
}

// LoadAccounts reads the database location and hashing cost the same way LoadServer does.
func LoadAccounts(ctx context.Context, envFile string) (AccountConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return AccountConfig{}, err
	}
	var cfg AccountConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return AccountConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
