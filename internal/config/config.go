package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultJWTSecret = "some-secret-key"

type Config struct {
	RunAddress  string
	DatabaseURI string
	JWTSecret   string
	UploadsDir  string

	TrainingBonusRate   decimal.Decimal
	TrainingBonusPoints int64

	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	BacklogInterval time.Duration

	AppEnv   string
	LogLevel string
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// NewConfig reads flags from args, then lets the environment (and a .env
// file, if there is one) override them.
func NewConfig(args []string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var rate string

	fs := flag.NewFlagSet("bonus-approvals", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", ":8080", "Server run address")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "Database URI, empty for the in-memory store")
	fs.StringVar(&cfg.JWTSecret, "s", defaultJWTSecret, "JWT signing secret")
	fs.StringVar(&cfg.UploadsDir, "u", "./uploads", "Directory with proof-of-payment images")
	fs.StringVar(&rate, "rate", "0.5", "Training bonus rate")
	fs.Int64Var(&cfg.TrainingBonusPoints, "points", 10, "Points granted per approved training bonus")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "Redis address for claim locks, empty for in-process locks")
	fs.DurationVar(&cfg.LockTTL, "lock-ttl", 30*time.Second, "Claim lock TTL")
	fs.DurationVar(&cfg.BacklogInterval, "backlog-interval", 30*time.Second, "Pending claims gauge refresh interval")
	fs.StringVar(&cfg.AppEnv, "env", "development", "Environment name")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envAddr := os.Getenv("RUN_ADDRESS"); envAddr != "" {
		cfg.RunAddress = envAddr
	}

	if envDBURI := os.Getenv("DATABASE_URI"); envDBURI != "" {
		cfg.DatabaseURI = envDBURI
	}

	if envSecret := os.Getenv("JWT_SECRET"); envSecret != "" {
		cfg.JWTSecret = envSecret
	}

	if envUploads := os.Getenv("UPLOADS_DIR"); envUploads != "" {
		cfg.UploadsDir = envUploads
	}

	if envRate := os.Getenv("TRAINING_BONUS_RATE"); envRate != "" {
		rate = envRate
	}

	if envPoints := os.Getenv("TRAINING_BONUS_POINTS"); envPoints != "" {
		points, err := strconv.ParseInt(envPoints, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TRAINING_BONUS_POINTS: %w", err)
		}
		cfg.TrainingBonusPoints = points
	}

	if envRedis := os.Getenv("REDIS_ADDR"); envRedis != "" {
		cfg.RedisAddr = envRedis
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if envTTL := os.Getenv("LOCK_TTL"); envTTL != "" {
		ttl, err := time.ParseDuration(envTTL)
		if err != nil {
			return nil, fmt.Errorf("LOCK_TTL: %w", err)
		}
		cfg.LockTTL = ttl
	}

	if envInterval := os.Getenv("BACKLOG_INTERVAL"); envInterval != "" {
		interval, err := time.ParseDuration(envInterval)
		if err != nil {
			return nil, fmt.Errorf("BACKLOG_INTERVAL: %w", err)
		}
		cfg.BacklogInterval = interval
	}

	if envApp := os.Getenv("APP_ENV"); envApp != "" {
		cfg.AppEnv = envApp
	}

	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		cfg.LogLevel = envLevel
	}

	d, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("training bonus rate %q: %w", rate, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("training bonus rate %s out of range [0, 1]", d)
	}
	cfg.TrainingBonusRate = d

	if cfg.TrainingBonusPoints < 0 {
		return nil, fmt.Errorf("training bonus points must not be negative, got %d", cfg.TrainingBonusPoints)
	}

	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("lock TTL must be positive, got %s", cfg.LockTTL)
	}

	if cfg.BacklogInterval <= 0 {
		return nil, fmt.Errorf("backlog interval must be positive, got %s", cfg.BacklogInterval)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret must not be empty")
	}
	if cfg.Production() && cfg.JWTSecret == defaultJWTSecret {
		return nil, errors.New("JWT_SECRET must be set in production")
	}

	return &cfg, nil
}
