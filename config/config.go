package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything main needs to wire the service.
type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`

	DB DBConfig `yaml:"db"`

	CartBackend   string        `yaml:"cart_backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	CartTTL       time.Duration `yaml:"cart_ttl"`

	VerifyPrices bool `yaml:"verify_prices"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type DBConfig struct {
	Driver        string `yaml:"driver"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name"`
	SSLCA         string `yaml:"ssl_ca"`
	Path          string `yaml:"path"`
	RunMigrations bool   `yaml:"run_migrations"`
}

func defaults() Config {
	return Config{
		HTTPPort:        "8000",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		DB: DBConfig{
			Driver:        "mysql",
			Host:          "localhost",
			User:          "root",
			Name:          "pos",
			Path:          "pos.db",
			RunMigrations: true,
		},
		CartBackend: "memory",
		RedisAddr:   "localhost:6379",
		CartTTL:     30 * time.Minute,
		KafkaTopic:  "pos.purchases",
	}
}

// Load builds a Config from defaults, then the YAML file named by
// POS_CONFIG_FILE (if set), then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("POS_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = defaultPort(cfg.DB.Driver)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.DB.Driver = getEnv("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.Host = getEnv("DB_HOST", cfg.DB.Host)
	cfg.DB.User = getEnv("DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DB_NAME", cfg.DB.Name)
	cfg.DB.SSLCA = getEnv("DB_SSL_CA", cfg.DB.SSLCA)
	cfg.DB.Path = getEnv("DB_PATH", cfg.DB.Path)

	cfg.CartBackend = getEnv("CART_BACKEND", cfg.CartBackend)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}

	var err error
	if cfg.DB.Port, err = getEnvInt("DB_PORT", cfg.DB.Port); err != nil {
		return err
	}
	if cfg.DB.RunMigrations, err = getEnvBool("RUN_MIGRATIONS", cfg.DB.RunMigrations); err != nil {
		return err
	}
	if cfg.VerifyPrices, err = getEnvBool("VERIFY_PRICES", cfg.VerifyPrices); err != nil {
		return err
	}
	if cfg.CartTTL, err = getEnvDuration("CART_TTL", cfg.CartTTL); err != nil {
		return err
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be one of mysql, postgres, sqlite; got %q", c.DB.Driver)
	}
	switch c.CartBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CART_BACKEND must be memory or redis; got %q", c.CartBackend)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	if c.CartBackend == "redis" && c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be > 0")
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		return fmt.Errorf("DB_PATH is required for sqlite")
	}
	return nil
}

func defaultPort(driver string) int {
	switch driver {
	case "postgres":
		return 5432
	case "mysql":
		return 3306
	}
	return 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
