package config

const (
	EnvPrefix = "TECHLOANS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TECHLOANS_APP_ENV"
	EnvPort     = "TECHLOANS_APP_PORT"
	EnvTimezone = "TECHLOANS_APP_TIMEZONE"

	EnvDBDSN    = "TECHLOANS_DB_DSN"
	EnvDBDriver = "TECHLOANS_DB_DRIVER"
	EnvDBHost   = "TECHLOANS_DB_HOST"
	EnvDBUser   = "TECHLOANS_DB_USER"
	EnvDBName   = "TECHLOANS_DB_NAME"

	EnvRedisURL = "TECHLOANS_REDIS_URL"

	EnvJWTSecret               = "TECHLOANS_JWT_SECRET"
	EnvJWTIssuer               = "TECHLOANS_JWT_ISSUER"
	EnvJWTExpMins              = "TECHLOANS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "TECHLOANS_REFRESH_TOKEN_TTL_MINUTES"
	EnvSweepInterval           = "TECHLOANS_SWEEP_INTERVAL"
	EnvGCPProjectID            = "TECHLOANS_GCP_PROJECT_ID"
	EnvPubSubLoanEventsTopic   = "TECHLOANS_PUBSUB_LOAN_EVENTS_TOPIC"
	EnvNotificationRetentionDs = "TECHLOANS_NOTIFICATION_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
