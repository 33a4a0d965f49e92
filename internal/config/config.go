package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string
	OpsHTTPAddr  string

	// FiscalTimezone is the location used for calendar rules: due dates,
	// "today" and declaration countdowns.
	FiscalTimezone string
	// FiscalPolicyPath is an extra directory searched for fiscal.yml.
	FiscalPolicyPath string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	Scheduler    SchedulerConfig
	Notification NotificationConfig
	Housekeeping HousekeepingConfig
	Email        EmailConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a shared Redis is configured for cross-process locks.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type SchedulerConfig struct {
	EnabledJobs []string
	Concurrency int

	CeilingCheckSpec        string
	GuideSweepSpec          string
	DeclarationReminderSpec string
	HousekeepingSpec        string

	JobTimeout    time.Duration
	EntityTimeout time.Duration
	DueSoonWindow time.Duration
}

type NotificationConfig struct {
	Cooldown  time.Duration
	DedupMode string
}

type HousekeepingConfig struct {
	RetentionDays int
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "meiwatch"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      getenv("ENVIRONMENT", "development"),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),
		OpsHTTPAddr:      getenv("OPS_HTTP_ADDR", ":9090"),
		FiscalTimezone:   getenv("FISCAL_TIMEZONE", "America/Sao_Paulo"),
		FiscalPolicyPath: strings.TrimSpace(getenv("FISCAL_POLICY_PATH", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "meiwatch"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},

		Scheduler: SchedulerConfig{
			EnabledJobs:             parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			Concurrency:             getenvInt("SCHEDULER_CONCURRENCY", 8),
			CeilingCheckSpec:        getenv("SCHEDULER_CEILING_CHECK_SPEC", "0 8 * * *"),
			GuideSweepSpec:          getenv("SCHEDULER_GUIDE_SWEEP_SPEC", "0 9 * * *"),
			DeclarationReminderSpec: getenv("SCHEDULER_DECLARATION_REMINDER_SPEC", "0 10 * 1-5 *"),
			HousekeepingSpec:        getenv("SCHEDULER_HOUSEKEEPING_SPEC", "0 4 * * 0"),
			JobTimeout:              getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Minute),
			EntityTimeout:           getenvDuration("SCHEDULER_ENTITY_TIMEOUT", 30*time.Second),
			DueSoonWindow:           getenvDuration("SCHEDULER_DUE_SOON_WINDOW", 5*24*time.Hour),
		},

		Notification: NotificationConfig{
			Cooldown:  getenvDuration("NOTIFY_COOLDOWN", 24*time.Hour),
			DedupMode: strings.ToLower(strings.TrimSpace(getenv("NOTIFY_DEDUP_MODE", "crossing_and_cooldown"))),
		},

		Housekeeping: HousekeepingConfig{
			RetentionDays: getenvInt("HOUSEKEEPING_RETENTION_DAYS", 90),
		},

		Email: EmailConfig{
			Enabled:      getenvBool("SMTP_ENABLED", false),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 1025),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "alertas@meiwatch.local"),
		},
	}

	return cfg
}

// Location resolves the fiscal time zone, falling back to UTC when the
// zone database does not know the configured name.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.FiscalTimezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
