package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Asaas        AsaasConfig
	Cron         CronConfig
	Billing      BillingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Notification NotificationConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Billing.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MOTORHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"MOTORHUB_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"MOTORHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MOTORHUB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MOTORHUB_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MOTORHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MOTORHUB_DB_DSN"`
	Driver string `envconfig:"MOTORHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MOTORHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"MOTORHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MOTORHUB_DB_USER"`
	LegacyPassword string `envconfig:"MOTORHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"MOTORHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"MOTORHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MOTORHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MOTORHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MOTORHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MOTORHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MOTORHUB_REDIS_URL"`
	Address      string        `envconfig:"MOTORHUB_REDIS_ADDR"`
	Password     string        `envconfig:"MOTORHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"MOTORHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MOTORHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MOTORHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MOTORHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MOTORHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MOTORHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MOTORHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MOTORHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MOTORHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MOTORHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MOTORHUB_AUTO_MIGRATE" default:"false"`
}

// AsaasConfig keeps the payment provider's historical variable names.
type AsaasConfig struct {
	APIURL  string        `envconfig:"ASAAS_API_URL" required:"true"`
	APIKey  string        `envconfig:"ASAAS_API_KEY" required:"true"`
	PixKey  string        `envconfig:"ASAAS_PIX_KEY"`
	Timeout time.Duration `envconfig:"MOTORHUB_ASAAS_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	SecretKey         string        `envconfig:"CRON_SECRET_KEY"`
	Schedule          string        `envconfig:"MOTORHUB_CRON_SCHEDULE" default:"0 6 * * *"`
	Interval          time.Duration `envconfig:"MOTORHUB_CRON_INTERVAL" default:"24h"`
	LockTTL           time.Duration `envconfig:"MOTORHUB_CRON_LOCK_TTL" default:"1h"`
	TriggerRateLimit  int           `envconfig:"MOTORHUB_CRON_TRIGGER_RATE_LIMIT" default:"10"`
	TriggerRateWindow time.Duration `envconfig:"MOTORHUB_CRON_TRIGGER_RATE_WINDOW" default:"1m"`
}

type BillingConfig struct {
	GracePeriodDays int           `envconfig:"MOTORHUB_BILLING_GRACE_PERIOD_DAYS" default:"5"`
	Timezone        string        `envconfig:"MOTORHUB_BILLING_TIMEZONE" default:"America/Sao_Paulo"`
	ClaimTTL        time.Duration `envconfig:"MOTORHUB_BILLING_CLAIM_TTL" default:"2m"`
}

// GracePeriod returns the configured late-payment tolerance.
func (b BillingConfig) GracePeriod() time.Duration {
	if b.GracePeriodDays <= 0 {
		return 0
	}
	return time.Duration(b.GracePeriodDays) * 24 * time.Hour
}

// Location resolves the timezone used for due dates and schedules.
func (b BillingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading billing timezone %q: %w", name, err)
	}
	return loc, nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"MOTORHUB_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SubscriptionsTopic        string        `envconfig:"MOTORHUB_PUBSUB_SUBSCRIPTIONS_TOPIC" default:"mh-subscription-events"`
	NotificationsSubscription string        `envconfig:"MOTORHUB_PUBSUB_NOTIFICATIONS_SUBSCRIPTION" default:"mh-subscription-events-notifications"`
	IdempotencyTTL            time.Duration `envconfig:"MOTORHUB_PUBSUB_IDEMPOTENCY_TTL" default:"168h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MOTORHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MOTORHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MOTORHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"MOTORHUB_OUTBOX_RETENTION_DAYS" default:"30"`
}

type NotificationConfig struct {
	RetentionDays int `envconfig:"MOTORHUB_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

// PollInterval converts the configured poll milliseconds to a duration.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
