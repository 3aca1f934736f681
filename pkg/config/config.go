package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// devJWTSecret signs tokens when JWT_SECRET is unset outside release mode.
const devJWTSecret = "dev-secret"

// DefaultTasks seeds the task catalog when nothing has been stored yet.
var DefaultTasks = []string{"アノテーションA", "アノテーションB", "実験A", "実験B"}

// Config aggregates runtime configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Logger   LoggerConfig
	Roster   models.Roster
	Tasks    []string
}

// AppConfig controls server level behavior
type AppConfig struct {
	Name          string
	Port          string
	GinMode       string
	Namespace     string
	ToastDuration time.Duration
}

// DatabaseConfig selects postgres (URL) or sqlite (Path)
type DatabaseConfig struct {
	URL  string
	Path string
}

// RedisConfig enables cross-replica change announcements when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AuthConfig holds token and password hashing settings
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	// DevSecret is set when JWTSecret is the built-in development secret.
	DevSecret bool
}

// LoggerConfig configures logging
type LoggerConfig struct {
	Level  string
	Format string
}

// seedFile is the layout of ROSTER_FILE.
type seedFile struct {
	Staff []models.StaffMember `yaml:"staff"`
	Tasks []string             `yaml:"tasks"`
}

// LoadEnv loads the first .env found in the working directory or its parents.
func LoadEnv() {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	LoadEnv()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:          getEnv("APP_NAME", "shiftflow-api"),
			Port:          getEnv("PORT", "8000"),
			GinMode:       os.Getenv("GIN_MODE"),
			Namespace:     getEnv("APP_NAMESPACE", "shift-manager-pro-v3"),
			ToastDuration: time.Duration(getEnvAsInt("TOAST_DURATION_MS", 3000)) * time.Millisecond,
		},
		Database: DatabaseConfig{
			URL:  os.Getenv("DATABASE_URL"),
			Path: getEnv("DATA_PATH", "shiftflow.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenTTL:   time.Duration(getEnvAsInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
			BcryptCost: getEnvAsInt("BCRYPT_COST", 10),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Roster: models.DefaultRoster,
		Tasks:  DefaultTasks,
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.App.GinMode == "release" {
			return nil, fmt.Errorf("config: JWT_SECRET is required when GIN_MODE=release")
		}
		cfg.Auth.JWTSecret = devJWTSecret
		cfg.Auth.DevSecret = true
	}

	if path := os.Getenv("ROSTER_FILE"); path != "" {
		if err := cfg.loadSeed(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Roster.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadSeed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read roster file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("config: parse roster file %s: %w", path, err)
	}
	if len(seed.Staff) > 0 {
		c.Roster = models.Roster(seed.Staff)
	}
	if len(seed.Tasks) > 0 {
		c.Tasks = seed.Tasks
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return ":" + a.Port
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
