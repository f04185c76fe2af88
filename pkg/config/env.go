package config

const (
	EnvPrefix = "BAZAAR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "BAZAAR_APP_ENV"
	EnvPort     = "BAZAAR_APP_PORT"
	EnvLogLevel = "BAZAAR_LOG_LEVEL"

	EnvDBDSN  = "BAZAAR_DB_DSN"
	EnvDBHost = "BAZAAR_DB_HOST"
	EnvDBUser = "BAZAAR_DB_USER"
	EnvDBName = "BAZAAR_DB_NAME"

	EnvRedisURL = "BAZAAR_REDIS_URL"

	EnvJWTSecret = "BAZAAR_JWT_SECRET"
	EnvJWTIssuer = "BAZAAR_JWT_ISSUER"

	EnvSquareAccessToken = "BAZAAR_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID  = "BAZAAR_SQUARE_LOCATION_ID"

	EnvCheckoutTimezone              = "BAZAAR_CHECKOUT_TIMEZONE"
	EnvCheckoutFreeDeliveryThreshold = "BAZAAR_CHECKOUT_FREE_DELIVERY_THRESHOLD"
	EnvCheckoutAtomicSellerWrites    = "BAZAAR_CHECKOUT_ATOMIC_SELLER_WRITES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
