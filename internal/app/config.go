package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/store"
)

const (
	DefaultBcryptCost     = 12
	DefaultSessionTTL     = 24 * time.Hour
	DefaultRateLimitMax   = 5
	DefaultRateLimitSpan  = 15 * time.Minute
	DefaultMaxUploadBytes = 10 << 20
)

type Config struct {
	Server struct {
		Port          string `toml:"port"`
		PublicDir     string `toml:"public_dir"`
		PrivateDir    string `toml:"private_dir"`
		SecureCookies bool   `toml:"secure_cookies"`
	} `toml:"server"`

	Database struct {
		DSN             string `toml:"dsn"`
		MigrationsDir   string `toml:"migrations_dir"`
		MaxOpenConns    int    `toml:"max_open_conns"`
		MaxIdleConns    int    `toml:"max_idle_conns"`
		ConnMaxIdleTime string `toml:"conn_max_idle_time"`
		ConnectTimeout  string `toml:"connect_timeout"`
		QueryTimeout    string `toml:"query_timeout"`
	} `toml:"database"`

	Sessions struct {
		RedisURL   string `toml:"redis_url"`
		CookieName string `toml:"cookie_name"`
		KeyPrefix  string `toml:"key_prefix"`
		TTL        string `toml:"ttl"`
	} `toml:"sessions"`

	Auth struct {
		BcryptCost      int    `toml:"bcrypt_cost"`
		RateLimitMax    int    `toml:"rate_limit_max"`
		RateLimitWindow string `toml:"rate_limit_window"`
	} `toml:"auth"`

	Admin struct {
		User     string `toml:"user"`
		Password string `toml:"password"`
	} `toml:"admin"`

	Uploads struct {
		Dir               string   `toml:"dir"`
		MaxBytes          int64    `toml:"max_bytes"`
		AllowedExtensions []string `toml:"allowed_extensions"`
	} `toml:"uploads"`

	Legacy struct {
		File         string `toml:"file"`
		BackupSuffix string `toml:"backup_suffix"`
	} `toml:"legacy"`

	// parsed durations
	sessionTTL      time.Duration
	rateLimitWindow time.Duration
	db              store.DBConfig
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Error.Printf("Failed to read .env: %v", err)
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.finalize(); err != nil {
		return nil, err
	}

	logger.Debug.Printf("Loaded config from %s: port=%s uploads=%s", path, config.Server.Port, config.Uploads.Dir)

	return &config, nil
}

// applyEnv lets the environment override secrets and endpoints.
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		if !strings.HasPrefix(v, ":") {
			v = ":" + v
		}
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Sessions.RedisURL = v
	}
	if v := os.Getenv("ADMIN_USER"); v != "" {
		c.Admin.User = v
	}
	if v := os.Getenv("ADMIN_PASS"); v != "" {
		c.Admin.Password = v
	}
	if v := os.Getenv("BCRYPT_ROUNDS"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_ROUNDS %q: %w", v, err)
		}
		c.Auth.BcryptCost = cost
	}
	return nil
}

func (c *Config) finalize() error {
	if c.Server.Port == "" {
		return fmt.Errorf("Server port is not specified in config, use a value like :3000")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is not specified")
	}
	if c.Admin.User == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin credentials are not specified")
	}

	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
	if c.Server.PublicDir == "" {
		c.Server.PublicDir = "public"
	}
	if c.Server.PrivateDir == "" {
		c.Server.PrivateDir = "private"
	}
	if c.Sessions.CookieName == "" {
		c.Sessions.CookieName = "semla_session"
	}
	if c.Sessions.KeyPrefix == "" {
		c.Sessions.KeyPrefix = "session"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = DefaultBcryptCost
	}
	if c.Auth.RateLimitMax <= 0 {
		c.Auth.RateLimitMax = DefaultRateLimitMax
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "submissions"
	}
	if c.Uploads.MaxBytes <= 0 {
		c.Uploads.MaxBytes = DefaultMaxUploadBytes
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		c.Uploads.AllowedExtensions = []string{"pdf", "doc", "docx", "txt", "jpg", "jpeg", "png"}
	}
	if c.Legacy.BackupSuffix == "" {
		c.Legacy.BackupSuffix = ".backup"
	}

	var err error
	if c.sessionTTL, err = parseDuration("sessions.ttl", c.Sessions.TTL, DefaultSessionTTL); err != nil {
		return err
	}
	if c.rateLimitWindow, err = parseDuration("auth.rate_limit_window", c.Auth.RateLimitWindow, DefaultRateLimitSpan); err != nil {
		return err
	}

	c.db = store.DBConfig{
		DSN:           c.Database.DSN,
		MigrationsDir: c.Database.MigrationsDir,
		MaxOpenConns:  c.Database.MaxOpenConns,
		MaxIdleConns:  c.Database.MaxIdleConns,
	}
	if c.db.ConnMaxIdleTime, err = parseDuration("database.conn_max_idle_time", c.Database.ConnMaxIdleTime, store.DefaultConnMaxIdleTime); err != nil {
		return err
	}
	if c.db.ConnectTimeout, err = parseDuration("database.connect_timeout", c.Database.ConnectTimeout, store.DefaultConnectTimeout); err != nil {
		return err
	}
	if c.db.QueryTimeout, err = parseDuration("database.query_timeout", c.Database.QueryTimeout, store.DefaultQueryTimeout); err != nil {
		return err
	}

	return nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}

func (c *Config) SessionTTL() time.Duration {
	if c.sessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return c.sessionTTL
}

func (c *Config) RateLimitWindow() time.Duration {
	if c.rateLimitWindow <= 0 {
		return DefaultRateLimitSpan
	}
	return c.rateLimitWindow
}

func (c *Config) DBConfig() store.DBConfig { return c.db }
