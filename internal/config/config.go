package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string
	Env         string
	DBAdapter   string
	SQLiteFile  string
	AppSecret   string
	FrontendURL string
	LogLevel    string
	BcryptCost  int
	// AuthRateLimit is requests per minute per client IP on the auth routes
	AuthRateLimit int
	// Payment and mail collaborators
	StripeSecret   string
	Currency       string
	SendGridAPIKey string
	MailFrom       string
	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}

// Production reports whether ENV names a production deployment.
func (c *Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

func New() (*Config, error) {
	c := &Config{
		Port:        getenv("PORT", "4444"),
		Env:         strings.ToLower(getenv("ENV", getenv("NODE_ENV", ""))),
		DBAdapter:   getenv("DB_ADAPTER", "postgres"),
		SQLiteFile:  getenv("SQLITE_FILE", "./data/storefront.db"),
		AppSecret:   os.Getenv("APP_SECRET"),
		FrontendURL: strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:7777"), "/"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		StripeSecret:   os.Getenv("STRIPE_SECRET"),
		Currency:       strings.ToLower(getenv("CURRENCY", "usd")),
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:       getenv("MAIL_FROM", "shop@example.com"),

		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		PostgresPort:     getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		PostgresUser:     getenv("POSTGRES_USER", getenv("DB_USER", "storefront")),
		PostgresPassword: getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "")),
		PostgresDB:       getenv("POSTGRES_DB", getenv("DB_NAME", "storefront")),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable")),
	}

	var err error
	if c.BcryptCost, err = getenvInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if c.AuthRateLimit, err = getenvInt("AUTH_RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if c.AuthRateLimit <= 0 {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT_PER_MINUTE must be positive")
	}

	// every token operation depends on it, so refuse to start without one
	if c.AppSecret == "" {
		return nil, errors.New("APP_SECRET must be set")
	}

	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	if c.Production() {
		if c.StripeSecret == "" {
			return nil, errors.New("STRIPE_SECRET must be set in production")
		}
		if c.SendGridAPIKey == "" {
			return nil, errors.New("SENDGRID_API_KEY must be set in production")
		}
		if c.DBAdapter == "memory" {
			return nil, errors.New("DB_ADAPTER=memory is not allowed in production")
		}
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
