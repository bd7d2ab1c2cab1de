package config

// EnvPrefix is handed to envconfig; every tag already carries the full name.
const EnvPrefix = "PACKDROP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "PACKDROP_APP_ENV"
	EnvPort      = "PACKDROP_APP_PORT"
	EnvLogLevel  = "PACKDROP_LOG_LEVEL"
	EnvLogFormat = "PACKDROP_LOG_FORMAT"

	EnvDBDSN  = "PACKDROP_DB_DSN"
	EnvDBHost = "PACKDROP_DB_HOST"
	EnvDBUser = "PACKDROP_DB_USER"
	EnvDBName = "PACKDROP_DB_NAME"

	EnvRedisURL = "PACKDROP_REDIS_URL"

	EnvJWTSecret  = "PACKDROP_JWT_SECRET"
	EnvJWTIssuer  = "PACKDROP_JWT_ISSUER"
	EnvJWTExpMins = "PACKDROP_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "PACKDROP_GCP_PROJECT_ID"

	EnvPubSubDeliveriesTopic = "PACKDROP_PUBSUB_DELIVERIES_TOPIC"
	EnvPubSubEarningsTopic   = "PACKDROP_PUBSUB_EARNINGS_TOPIC"
	EnvPubSubNotificationSub = "PACKDROP_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvPayoutMinimum    = "PACKDROP_PAYOUT_MINIMUM_AMOUNT"
	EnvWebhookSecret    = "PACKDROP_WEBHOOK_SECRET_HASH"
	EnvDispatchRadiusKm = "PACKDROP_DISPATCH_SEARCH_RADIUS_KM"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
