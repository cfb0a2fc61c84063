package config

// EnvPrefix is handed to envconfig.Process; individual fields carry the
// full variable name in their tags so the prefix stays informational.
const EnvPrefix = "CARRITO"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared between Load and tests.
const (
	EnvAppEnv                 = "CARRITO_APP_ENV"
	EnvPort                   = "CARRITO_APP_PORT"
	EnvDBDSN                  = "CARRITO_DB_DSN"
	EnvDBHost                 = "CARRITO_DB_HOST"
	EnvDBUser                 = "CARRITO_DB_USER"
	EnvDBName                 = "CARRITO_DB_NAME"
	EnvRedisURL               = "CARRITO_REDIS_URL"
	EnvJWTSecret              = "CARRITO_JWT_SECRET"
	EnvJWTIssuer              = "CARRITO_JWT_ISSUER"
	EnvJWTExpMins             = "CARRITO_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "CARRITO_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "CARRITO_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "CARRITO_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "CARRITO_PUBSUB_ORDERS_SUBSCRIPTION"
)
