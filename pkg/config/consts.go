package config

const EnvPrefix = "AGRILINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "AGRILINK_APP_ENV"
	EnvPort       = "AGRILINK_APP_PORT"
	EnvDBDSN      = "AGRILINK_DB_DSN"
	EnvDBHost     = "AGRILINK_DB_HOST"
	EnvDBUser     = "AGRILINK_DB_USER"
	EnvDBName     = "AGRILINK_DB_NAME"
	EnvRedisURL   = "AGRILINK_REDIS_URL"
	EnvJWTSecret  = "AGRILINK_JWT_SECRET"
	EnvJWTIssuer  = "AGRILINK_JWT_ISSUER"
	EnvJWTExpMins = "AGRILINK_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "AGRILINK_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic     = "AGRILINK_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub       = "AGRILINK_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubDeliveryTopic   = "AGRILINK_PUBSUB_DELIVERY_TOPIC"
	EnvPubSubDeliverySub     = "AGRILINK_PUBSUB_DELIVERY_SUBSCRIPTION"
	EnvPubSubNotificationSub = "AGRILINK_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
