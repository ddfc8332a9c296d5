package config

const (
	EnvPrefix = "MPP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv   = "MPP_APP_ENV"
	EnvPort     = "MPP_APP_PORT"
	EnvLogLevel = "MPP_LOG_LEVEL"

	EnvDBDSN    = "MPP_DB_DSN"
	EnvDBDriver = "MPP_DB_DRIVER"
	EnvDBHost   = "MPP_DB_HOST"
	EnvDBPort   = "MPP_DB_PORT"
	EnvDBUser   = "MPP_DB_USER"
	EnvDBName   = "MPP_DB_NAME"

	EnvUseSQLite   = "MPP_USE_SQLITE"
	EnvAutoMigrate = "MPP_AUTO_MIGRATE"

	EnvRedisURL = "MPP_REDIS_URL"

	EnvGCPProjectID       = "MPP_GCP_PROJECT_ID"
	EnvNotificationTopic  = "MPP_PUBSUB_NOTIFICATION_TOPIC"
	EnvNumberingPadding   = "MPP_NUMBERING_PADDING"
	EnvNumberingStart     = "MPP_NUMBERING_START"
	EnvLoyaltyWindowDays  = "MPP_LOYALTY_REMINDER_WINDOW_DAYS"
	EnvOutboxMaxAttempts  = "MPP_OUTBOX_MAX_ATTEMPTS"
	EnvCheckoutWalkInName = "MPP_CHECKOUT_WALK_IN_NAME"
)

var dbHostEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
