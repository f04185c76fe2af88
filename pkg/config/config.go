package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Square       SquareConfig
	Shipping     ShippingConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Checkout.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZAAR_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZAAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZAAR_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BAZAAR_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BAZAAR_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"BAZAAR_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAAR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAAR_DB_DSN"`
	Driver string `envconfig:"BAZAAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZAAR_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZAAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZAAR_DB_USER"`
	LegacyPassword string `envconfig:"BAZAAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZAAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BAZAAR_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAZAAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAZAAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAZAAR_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SquareConfig configures the payment gateway used for combined checkout orders.
type SquareConfig struct {
	AccessToken string `envconfig:"BAZAAR_SQUARE_ACCESS_TOKEN" required:"true"`
	Env         string `envconfig:"BAZAAR_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"BAZAAR_SQUARE_LOCATION_ID" required:"true"`
	BaseURL     string `envconfig:"BAZAAR_SQUARE_BASE_URL"`
}

type ShippingConfig struct {
	BaseURL          string        `envconfig:"BAZAAR_SHIPPING_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	APIToken         string        `envconfig:"BAZAAR_SHIPPING_API_TOKEN"`
	Timeout          time.Duration `envconfig:"BAZAAR_SHIPPING_TIMEOUT" default:"10s"`
	BreakerOpenFor   time.Duration `envconfig:"BAZAAR_SHIPPING_BREAKER_OPEN_FOR" default:"30s"`
	BreakerMinCalls  uint32        `envconfig:"BAZAAR_SHIPPING_BREAKER_MIN_CALLS" default:"3"`
	BreakerFailRatio float64       `envconfig:"BAZAAR_SHIPPING_BREAKER_FAIL_RATIO" default:"0.6"`
}

// CheckoutConfig holds the pricing and persistence knobs of the order engine.
type CheckoutConfig struct {
	Currency                string          `envconfig:"BAZAAR_CHECKOUT_CURRENCY" default:"INR"`
	Timezone                string          `envconfig:"BAZAAR_CHECKOUT_TIMEZONE" default:"Asia/Kolkata"`
	FreeDeliveryThreshold   decimal.Decimal `envconfig:"BAZAAR_CHECKOUT_FREE_DELIVERY_THRESHOLD" default:"5000"`
	MinRefundAmount         decimal.Decimal `envconfig:"BAZAAR_CHECKOUT_MIN_REFUND_AMOUNT" default:"1"`
	ExactShippingAllocation bool            `envconfig:"BAZAAR_CHECKOUT_EXACT_SHIPPING_ALLOCATION" default:"true"`
	AtomicSellerWrites      bool            `envconfig:"BAZAAR_CHECKOUT_ATOMIC_SELLER_WRITES" default:"true"`
	IdempotencyTTL          time.Duration   `envconfig:"BAZAAR_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

// Location resolves the timezone used for discount validity windows.
func (c CheckoutConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvCheckoutTimezone, name, err)
	}
	return loc, nil
}

type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"BAZAAR_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int64         `envconfig:"BAZAAR_RATE_LIMIT_CHECKOUT_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAZAAR_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BAZAAR_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"BAZAAR_PUBSUB_ORDERS_TOPIC" default:"bazaar-order-events"`
	OrdersSubscription string `envconfig:"BAZAAR_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize         int           `envconfig:"BAZAAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS    int           `envconfig:"BAZAAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts       int           `envconfig:"BAZAAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays     int           `envconfig:"BAZAAR_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionInterval time.Duration `envconfig:"BAZAAR_OUTBOX_RETENTION_INTERVAL" default:"6h"`
}

type ReconcileConfig struct {
	Interval    time.Duration `envconfig:"BAZAAR_RECONCILE_INTERVAL" default:"5m"`
	OrphanAfter time.Duration `envconfig:"BAZAAR_RECONCILE_ORPHAN_AFTER" default:"30m"`
	BatchSize   int           `envconfig:"BAZAAR_RECONCILE_BATCH_SIZE" default:"100"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
