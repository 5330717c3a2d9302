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
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
	WhatsApp     WhatsAppConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"MEDIFAST_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDIFAST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEDIFAST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDIFAST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEDIFAST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEDIFAST_DB_DSN"`
	Driver string `envconfig:"MEDIFAST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEDIFAST_DB_HOST"`
	LegacyPort     int    `envconfig:"MEDIFAST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEDIFAST_DB_USER"`
	LegacyPassword string `envconfig:"MEDIFAST_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEDIFAST_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEDIFAST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDIFAST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDIFAST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDIFAST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDIFAST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// ensureDSN assembles a Postgres DSN from the legacy host/port/user variables
// when MEDIFAST_DB_DSN is not provided directly.
func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either MEDIFAST_DB_DSN or MEDIFAST_DB_HOST/USER/NAME must be set")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     d.LegacyName,
		RawQuery: url.Values{"sslmode": []string{d.LegacySSLMode}}.Encode(),
	}
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDIFAST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEDIFAST_REDIS_ADDR"`
	Password     string        `envconfig:"MEDIFAST_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDIFAST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDIFAST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDIFAST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDIFAST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDIFAST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDIFAST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MEDIFAST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MEDIFAST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MEDIFAST_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEDIFAST_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEDIFAST_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEDIFAST_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEDIFAST_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEDIFAST_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MEDIFAST_AUTO_MIGRATE" default:"false"`
}

// CronConfig tunes the background worker. ReminderLead is how far ahead of a
// pickup the reminder fires; ReminderWindow is the tolerance around that
// instant so a tick does not miss pickups scheduled between two runs.
type CronConfig struct {
	Interval       time.Duration `envconfig:"MEDIFAST_CRON_INTERVAL" default:"30m"`
	ReminderLead   time.Duration `envconfig:"MEDIFAST_CRON_REMINDER_LEAD" default:"1h"`
	ReminderWindow time.Duration `envconfig:"MEDIFAST_CRON_REMINDER_WINDOW" default:"5m"`
	LockTTL        time.Duration `envconfig:"MEDIFAST_CRON_LOCK_TTL" default:"25m"`
}

type WhatsAppConfig struct {
	PhoneID     string        `envconfig:"MEDIFAST_WHATSAPP_PHONE_ID"`
	AccessToken string        `envconfig:"MEDIFAST_WHATSAPP_ACCESS_TOKEN"`
	BaseURL     string        `envconfig:"MEDIFAST_WHATSAPP_BASE_URL" default:"https://graph.facebook.com/v22.0"`
	Timeout     time.Duration `envconfig:"MEDIFAST_WHATSAPP_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"MEDIFAST_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"MEDIFAST_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"MEDIFAST_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Channel      string        `envconfig:"MEDIFAST_OUTBOX_CHANNEL" default:"medifast:events"`
}
