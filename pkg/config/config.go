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
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Payouts      PayoutsConfig
	Webhooks     WebhooksConfig
	Dispatch     DispatchConfig
	Cron         CronConfig
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
	Env          string   `envconfig:"PACKDROP_APP_ENV" required:"true"`
	Port         string   `envconfig:"PACKDROP_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PACKDROP_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"PACKDROP_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"PACKDROP_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PACKDROP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKDROP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKDROP_DB_DSN"`
	Driver string `envconfig:"PACKDROP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKDROP_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKDROP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKDROP_DB_USER"`
	LegacyPassword string `envconfig:"PACKDROP_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKDROP_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKDROP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKDROP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKDROP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKDROP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKDROP_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"PACKDROP_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKDROP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PACKDROP_REDIS_ADDR"`
	Password     string        `envconfig:"PACKDROP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKDROP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKDROP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKDROP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKDROP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKDROP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKDROP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PACKDROP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PACKDROP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PACKDROP_JWT_EXPIRATION_MINUTES" required:"true"`
	// RequireSession makes the auth middleware check the access session in redis.
	RequireSession bool `envconfig:"PACKDROP_JWT_REQUIRE_SESSION" default:"false"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PACKDROP_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"PACKDROP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PACKDROP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PACKDROP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PACKDROP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DeliveriesTopic          string `envconfig:"PACKDROP_PUBSUB_DELIVERIES_TOPIC" required:"true"`
	EarningsTopic            string `envconfig:"PACKDROP_PUBSUB_EARNINGS_TOPIC" required:"true"`
	NotificationTopic        string `envconfig:"PACKDROP_PUBSUB_NOTIFICATION_TOPIC" default:"pd-notification-events"`
	AlertsTopic              string `envconfig:"PACKDROP_PUBSUB_ALERTS_TOPIC" default:"pd-alerts"`
	NotificationSubscription string `envconfig:"PACKDROP_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PACKDROP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PACKDROP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PACKDROP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PACKDROP_OUTBOX_RETENTION_DAYS" default:"30"`
	PruneBatchSize int `envconfig:"PACKDROP_OUTBOX_PRUNE_BATCH" default:"1000"`
}

type PayoutsConfig struct {
	MinimumAmount string        `envconfig:"PACKDROP_PAYOUT_MINIMUM_AMOUNT" default:"0"`
	StaleAfter    time.Duration `envconfig:"PACKDROP_PAYOUT_STALE_AFTER" default:"720h"`
}

type WebhooksConfig struct {
	SecretHash string        `envconfig:"PACKDROP_WEBHOOK_SECRET_HASH"`
	ReplayTTL  time.Duration `envconfig:"PACKDROP_WEBHOOK_REPLAY_TTL" default:"72h"`
}

type DispatchConfig struct {
	SearchRadiusKm float64 `envconfig:"PACKDROP_DISPATCH_SEARCH_RADIUS_KM" default:"10"`
	MaxCandidates  int     `envconfig:"PACKDROP_DISPATCH_MAX_CANDIDATES" default:"20"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"PACKDROP_CRON_INTERVAL" default:"1h"`
	ReconcileBatchSize int           `envconfig:"PACKDROP_CRON_RECONCILE_BATCH_SIZE" default:"200"`
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
