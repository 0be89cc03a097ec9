package config

import (
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "pgx"
	DBDriverMongo    = "mongodb"
)

const (
	PaymentProviderStripe = "stripe"
	PaymentProviderLog    = "log"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Proxies whose X-Forwarded-For / X-Real-IP headers are believed
	TrustedProxies []netip.Prefix

	// Database (DB_DRIVER: sqlite, pgx or mongodb)
	DBDriver      string
	DBConnection  string
	MongoDatabase string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Email
	EmailFrom        string
	ResendAPIKey     string
	EmailSendTimeout time.Duration

	// Payment
	PaymentProvider   string // "stripe" or "log"
	StripeSecretKey   string
	IncentiveCurrency string

	// Scheduler
	SchedulerEnabled     bool
	SchedulerInterval    time.Duration
	SchedulerTickTimeout time.Duration

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	appEnv := envRequired("APP_ENV") // Required: 'development' or 'production'

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Liable"),
		AppEnv:  appEnv,
		AppURL:  envRequired("APP_URL"), // Required: base URL for check-in links
		Port:    envString("PORT", "8090"),

		TrustedProxies: envPrefixes("TRUSTED_PROXIES"),

		// Database
		DBDriver:      envString("DB_DRIVER", DBDriverSQLite),
		DBConnection:  envString("DB_CONNECTION", "./data/liable.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite"),
		MongoDatabase: envString("MONGODB_DATABASE", "liable"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:        envString("EMAIL_FROM", "notify@liableapp.com"),
		ResendAPIKey:     envString("RESEND_API_KEY", ""),
		EmailSendTimeout: envDuration("EMAIL_SEND_TIMEOUT", 15*time.Second),

		// Payment (development defaults to the logging provider)
		PaymentProvider:   envString("PAYMENT_PROVIDER", defaultPaymentProvider(appEnv)),
		StripeSecretKey:   envString("STRIPE_SECRET_KEY", ""),
		IncentiveCurrency: envString("INCENTIVE_CURRENCY", "usd"),

		// Scheduler
		SchedulerEnabled:     envBool("SCHEDULER_ENABLED", true),
		SchedulerInterval:    envDuration("SCHEDULER_INTERVAL", time.Minute),
		SchedulerTickTimeout: envDuration("SCHEDULER_TICK_TIMEOUT", 5*time.Minute),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

func defaultPaymentProvider(appEnv string) string {
	if appEnv == "development" {
		return PaymentProviderLog
	}
	return PaymentProviderStripe
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email and payments to use log modes for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.PaymentProvider != PaymentProviderStripe {
		slog.Error("production deployment requires PAYMENT_PROVIDER=stripe", "payment_provider", cfg.PaymentProvider)
		os.Exit(1)
	}
	if cfg.StripeSecretKey == "" {
		slog.Error("production deployment requires STRIPE_SECRET_KEY")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envPrefixes parses a comma separated list of IPs and CIDR ranges.
// Invalid entries are logged and skipped.
func envPrefixes(key string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				slog.Warn("config invalid CIDR, skipping", "key", key, "value", entry)
				continue
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("config invalid IP, skipping", "key", key, "value", entry)
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesSQL reports whether the configured driver is backed by sqlx and goose migrations.
func (c *Config) UsesSQL() bool {
	return c.DBDriver != DBDriverMongo
}
