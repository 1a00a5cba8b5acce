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
	Eventing     EventingConfig
	Geocode      GeocodeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Square       SquareConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
	Assignment   AssignmentConfig
	DeliveryFee  DeliveryFeeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGRILINK_APP_ENV" required:"true"`
	Port         string `envconfig:"AGRILINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGRILINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGRILINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AGRILINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGRILINK_DB_DSN"`
	Driver string `envconfig:"AGRILINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGRILINK_DB_HOST"`
	LegacyPort     int    `envconfig:"AGRILINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGRILINK_DB_USER"`
	LegacyPassword string `envconfig:"AGRILINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGRILINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGRILINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGRILINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGRILINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGRILINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGRILINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGRILINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGRILINK_REDIS_ADDR"`
	Password     string        `envconfig:"AGRILINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGRILINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGRILINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGRILINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGRILINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGRILINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGRILINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGRILINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGRILINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGRILINK_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AGRILINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AGRILINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"AGRILINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GeocodeConfig struct {
	BaseURL string        `envconfig:"AGRILINK_GEOCODE_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	APIKey  string        `envconfig:"AGRILINK_GEOCODE_API_KEY"`
	Timeout time.Duration `envconfig:"AGRILINK_GEOCODE_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AGRILINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AGRILINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AGRILINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"AGRILINK_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"AGRILINK_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	DeliveryTopic            string `envconfig:"AGRILINK_PUBSUB_DELIVERY_TOPIC" required:"true"`
	DeliverySubscription     string `envconfig:"AGRILINK_PUBSUB_DELIVERY_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"AGRILINK_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"AGRILINK_SQUARE_ACCESS_TOKEN"`
	SigningSecret string `envconfig:"AGRILINK_SQUARE_SIGNING_SECRET"`
	Env           string `envconfig:"AGRILINK_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AGRILINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AGRILINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AGRILINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type RateLimitConfig struct {
	WebhookWindow   time.Duration `envconfig:"AGRILINK_RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
	WebhookIPLimit  int           `envconfig:"AGRILINK_RATE_LIMIT_WEBHOOK_IP_LIMIT" default:"120"`
	RegisterWindow  time.Duration `envconfig:"AGRILINK_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit int           `envconfig:"AGRILINK_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type AssignmentConfig struct {
	AgentRadiusKm           float64 `envconfig:"AGRILINK_ASSIGNMENT_AGENT_RADIUS_KM" default:"30"`
	CoordinatorRadiusKm     float64 `envconfig:"AGRILINK_ASSIGNMENT_COORDINATOR_RADIUS_KM" default:"50"`
	CoordinatorSeparationKm float64 `envconfig:"AGRILINK_ASSIGNMENT_COORDINATOR_SEPARATION_KM" default:"50"`
}

type DeliveryFeeConfig struct {
	PerKmRate   float64 `envconfig:"AGRILINK_DELIVERY_FEE_PER_KM_RATE" default:"8"`
	LocalFeeMin float64 `envconfig:"AGRILINK_DELIVERY_FEE_LOCAL_MIN" default:"20"`
	LocalFeeMax float64 `envconfig:"AGRILINK_DELIVERY_FEE_LOCAL_MAX" default:"30"`
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
