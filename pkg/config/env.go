package config

const EnvPrefix = "MOTORHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv        = "MOTORHUB_APP_ENV"
	EnvPort          = "MOTORHUB_APP_PORT"
	EnvDBDSN         = "MOTORHUB_DB_DSN"
	EnvDBHost        = "MOTORHUB_DB_HOST"
	EnvDBUser        = "MOTORHUB_DB_USER"
	EnvDBName        = "MOTORHUB_DB_NAME"
	EnvUseSQLite     = "MOTORHUB_USE_SQLITE"
	EnvRedisURL      = "MOTORHUB_REDIS_URL"
	EnvJWTSecret     = "MOTORHUB_JWT_SECRET"
	EnvJWTIssuer     = "MOTORHUB_JWT_ISSUER"
	EnvAsaasAPIURL   = "ASAAS_API_URL"
	EnvAsaasAPIKey   = "ASAAS_API_KEY"
	EnvAsaasPixKey   = "ASAAS_PIX_KEY"
	EnvCronSecretKey = "CRON_SECRET_KEY"
	EnvGracePeriod   = "MOTORHUB_BILLING_GRACE_PERIOD_DAYS"
	EnvTimezone      = "MOTORHUB_BILLING_TIMEZONE"
)

const defaultSQLiteDSN = "file:motorhub.db?cache=shared&_fk=1"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
