package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"CARRITO_APP_ENV" required:"true"`
	Port         string `envconfig:"CARRITO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARRITO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARRITO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARRITO_DB_DSN"`
	Driver string `envconfig:"CARRITO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARRITO_DB_HOST"`
	LegacyPort     int    `envconfig:"CARRITO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARRITO_DB_USER"`
	LegacyPassword string `envconfig:"CARRITO_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARRITO_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARRITO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARRITO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARRITO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARRITO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARRITO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARRITO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARRITO_REDIS_ADDR"`
	Password     string        `envconfig:"CARRITO_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARRITO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARRITO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARRITO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARRITO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARRITO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARRITO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CARRITO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CARRITO_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CARRITO_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CARRITO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CARRITO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CARRITO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CARRITO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CARRITO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CARRITO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CARRITO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CARRITO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CARRITO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CARRITO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CARRITO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CARRITO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARRITO_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CARRITO_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARRITO_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CARRITO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARRITO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"CARRITO_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"CARRITO_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CARRITO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CARRITO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CARRITO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// ensureDSN assembles a postgres URL from the per-field variables when
// no full DSN was provided.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, val := range map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	} {
		if val == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}

	db.DSN = u.String()
	return nil
}
