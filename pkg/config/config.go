package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Sweep         SweepConfig
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
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() && cfg.usesSQLite() {
		return nil, fmt.Errorf("sqlite is not supported when %s=%s", EnvAppEnv, AppEnvProd)
	}
	return &cfg, nil
}

func (c Config) usesSQLite() bool {
	return c.FeatureFlags.UseSQLite || strings.EqualFold(c.DB.Driver, "sqlite")
}

type AppConfig struct {
	Env          string `envconfig:"TECHLOANS_APP_ENV" required:"true"`
	Port         string `envconfig:"TECHLOANS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TECHLOANS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TECHLOANS_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"TECHLOANS_APP_TIMEZONE" default:"UTC"`
	CORSOrigins  []string `envconfig:"TECHLOANS_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the business timezone used for calendar-day boundaries.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvTimezone, name, err)
	}
	return loc, nil
}

type ServiceConfig struct {
	Kind string `envconfig:"TECHLOANS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TECHLOANS_DB_DSN"`
	Driver string `envconfig:"TECHLOANS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TECHLOANS_DB_HOST"`
	LegacyPort     int    `envconfig:"TECHLOANS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TECHLOANS_DB_USER"`
	LegacyPassword string `envconfig:"TECHLOANS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TECHLOANS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TECHLOANS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TECHLOANS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TECHLOANS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TECHLOANS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TECHLOANS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TECHLOANS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TECHLOANS_REDIS_ADDR"`
	Password     string        `envconfig:"TECHLOANS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TECHLOANS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TECHLOANS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TECHLOANS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TECHLOANS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TECHLOANS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TECHLOANS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TECHLOANS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TECHLOANS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TECHLOANS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TECHLOANS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TECHLOANS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TECHLOANS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TECHLOANS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TECHLOANS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TECHLOANS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"TECHLOANS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"TECHLOANS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"TECHLOANS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	APIWindow       time.Duration `envconfig:"TECHLOANS_API_RATE_LIMIT_WINDOW" default:"1m"`
	APIRequestLimit int           `envconfig:"TECHLOANS_API_RATE_LIMIT_REQUESTS" default:"300"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TECHLOANS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TECHLOANS_AUTO_MIGRATE" default:"false"`
}

type SweepConfig struct {
	Interval                  time.Duration `envconfig:"TECHLOANS_SWEEP_INTERVAL" default:"1h"`
	LockTTL                   time.Duration `envconfig:"TECHLOANS_SWEEP_LOCK_TTL" default:"10m"`
	NotificationRetentionDays int           `envconfig:"TECHLOANS_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TECHLOANS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TECHLOANS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TECHLOANS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LoanEventsTopic string `envconfig:"TECHLOANS_PUBSUB_LOAN_EVENTS_TOPIC" default:"techloans-loan-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TECHLOANS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TECHLOANS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TECHLOANS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TECHLOANS_OUTBOX_RETENTION_DAYS" default:"14"`
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

	if strings.EqualFold(db.Driver, "mysql") {
		db.DSN = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
			db.LegacyUser, db.LegacyPassword, db.LegacyHost, db.LegacyPort, db.LegacyName)
		return nil
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
