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
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Numbering    NumberingConfig
	Loyalty      LoyaltyConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Numbering.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MPP_APP_ENV" required:"true"`
	Port         string `envconfig:"MPP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MPP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MPP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MPP_LOG_FORMAT" default:"json"`
}

// ConsoleLogs reports whether logs should be rendered for a terminal.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"MPP_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers expose /metrics. Empty disables
	// the listener; the API serves metrics on its own port.
	MetricsAddr string `envconfig:"MPP_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"MPP_DB_DSN"`
	Driver string `envconfig:"MPP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MPP_DB_HOST"`
	Port     int    `envconfig:"MPP_DB_PORT" default:"5432"`
	User     string `envconfig:"MPP_DB_USER"`
	Password string `envconfig:"MPP_DB_PASSWORD"`
	Name     string `envconfig:"MPP_DB_NAME"`
	SSLMode  string `envconfig:"MPP_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"MPP_SQLITE_PATH" default:"file:mypropartner.db?_foreign_keys=on"`

	MaxOpenConns    int           `envconfig:"MPP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MPP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MPP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MPP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	LockTimeout     time.Duration `envconfig:"MPP_DB_LOCK_TIMEOUT" default:"5s"`

	SlowQueryThreshold time.Duration `envconfig:"MPP_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL            string        `envconfig:"MPP_REDIS_URL"`
	Address        string        `envconfig:"MPP_REDIS_ADDR"`
	Password       string        `envconfig:"MPP_REDIS_PASSWORD"`
	DB             int           `envconfig:"MPP_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"MPP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"MPP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"MPP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"MPP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"MPP_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"MPP_IDEMPOTENCY_TTL" default:"24h"`
	Namespace      string        `envconfig:"MPP_REDIS_NAMESPACE" default:"mpp"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MPP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MPP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MPP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MPP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MPP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"MPP_PUBSUB_NOTIFICATION_TOPIC" default:"mpp-notification-events"`
	LedgerTopic       string `envconfig:"MPP_PUBSUB_LEDGER_TOPIC" default:"mpp-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MPP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MPP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MPP_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention    time.Duration `envconfig:"MPP_OUTBOX_RETENTION" default:"720h"`
	DLQRetention time.Duration `envconfig:"MPP_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

// NumberingConfig carries the fallback numbering settings applied when a tenant
// row leaves a field blank.
type NumberingConfig struct {
	QuotePrefix      string `envconfig:"MPP_NUMBERING_QUOTE_PREFIX" default:"DEV-"`
	InvoicePrefix    string `envconfig:"MPP_NUMBERING_INVOICE_PREFIX" default:"FAC-"`
	CreditNotePrefix string `envconfig:"MPP_NUMBERING_CREDIT_NOTE_PREFIX" default:"AVO-"`
	Padding          int    `envconfig:"MPP_NUMBERING_PADDING" default:"5"`
	Start            int64  `envconfig:"MPP_NUMBERING_START" default:"1"`
}

func (n NumberingConfig) validate() error {
	if n.Padding < 1 || n.Padding > 12 {
		return fmt.Errorf("%s must be between 1 and 12", EnvNumberingPadding)
	}
	if n.Start < 1 {
		return fmt.Errorf("%s must be positive", EnvNumberingStart)
	}
	return nil
}

type LoyaltyConfig struct {
	ReminderWindowDays int  `envconfig:"MPP_LOYALTY_REMINDER_WINDOW_DAYS" default:"30"`
	ExpireDue          bool `envconfig:"MPP_LOYALTY_EXPIRE_DUE" default:"true"`
}

type CheckoutConfig struct {
	WalkInClientName string `envconfig:"MPP_CHECKOUT_WALK_IN_NAME" default:"Client comptoir"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"MPP_CRON_INTERVAL" default:"1h"`
	JobTimeout time.Duration `envconfig:"MPP_CRON_JOB_TIMEOUT" default:"15m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || strings.EqualFold(db.Driver, DriverSQLite) {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbHostEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
