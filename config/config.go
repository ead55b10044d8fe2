// Package config loads service settings from the environment (and an optional .env file).
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting of the reward service.
type Config struct {
	// --- HTTP ---
	AppPort        int    `envconfig:"APP_PORT" default:"5200"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// --- Store ---
	StoreDriver  string        `envconfig:"STORE_DRIVER" default:"postgres"` // postgres | memory
	DatabaseURL  string        `envconfig:"DATABASE_URL"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// --- Logging ---
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogPath       string `envconfig:"LOG_PATH"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"7"`
	LogCompress   bool   `envconfig:"LOG_COMPRESS" default:"false"`

	// --- Identity ---
	IdentityMode     string `envconfig:"IDENTITY_MODE" default:"jwt"` // jwt | remote
	JWTSecret        string `envconfig:"JWT_SECRET"`
	AuthServiceURL   string `envconfig:"AUTH_SERVICE_URL"`
	AuthServiceToken string `envconfig:"AUTH_SERVICE_TOKEN"`

	// --- Rewards ---
	MaxPrizeClaims      int `envconfig:"MAX_PRIZE_CLAIMS" default:"4"`
	RedeemRatePerMinute int `envconfig:"REDEEM_RATE_PER_MINUTE" default:"20"`
	LeaderboardSize     int `envconfig:"LEADERBOARD_SIZE" default:"10"`

	// --- Cache ---
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD"`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	ProgressCacheTTL time.Duration `envconfig:"PROGRESS_CACHE_TTL" default:"5m"`

	// --- Background jobs ---
	InventorySyncInterval     time.Duration `envconfig:"INVENTORY_SYNC_INTERVAL" default:"1m"`
	LeaderboardExportInterval time.Duration `envconfig:"LEADERBOARD_EXPORT_INTERVAL" default:"15m"`

	// --- Object storage (Cloudflare R2) ---
	CloudflareAccountID string `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `envconfig:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `envconfig:"R2_ACCESS_KEY_SECRET"`
	R2BucketName        string `envconfig:"R2_BUCKET_NAME"`
	CDNBaseURL          string `envconfig:"CDN_BASE_URL"`

	// --- Catalog ---
	CatalogSeedPath string `envconfig:"CATALOG_SEED_PATH"`
}

// Origins returns ALLOWED_ORIGINS with surrounding spaces removed, joined the way fiber's cors expects.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// R2Enabled reports whether leaderboard export to object storage is configured.
func (c *Config) R2Enabled() bool {
	return c.CloudflareAccountID != "" && c.R2BucketName != ""
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.IdentityMode {
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when IDENTITY_MODE=jwt")
		}
	case "remote":
		if c.AuthServiceURL == "" {
			return fmt.Errorf("AUTH_SERVICE_URL is required when IDENTITY_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_MODE %q", c.IdentityMode)
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be > 0")
	}
	if c.MaxPrizeClaims <= 0 {
		return fmt.Errorf("MAX_PRIZE_CLAIMS must be > 0")
	}
	if c.RedeemRatePerMinute <= 0 {
		return fmt.Errorf("REDEEM_RATE_PER_MINUTE must be > 0")
	}
	if c.LeaderboardSize <= 0 {
		return fmt.Errorf("LEADERBOARD_SIZE must be > 0")
	}
	if c.InventorySyncInterval <= 0 || c.LeaderboardExportInterval <= 0 {
		return fmt.Errorf("job intervals must be > 0")
	}
	return nil
}

// Load reads .env (if present) and the process environment into a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
