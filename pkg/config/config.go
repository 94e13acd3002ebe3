package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "libraryops"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LIBRARYOPS_DB_DSN"
	EnvDBHost = "LIBRARYOPS_DB_HOST"
	EnvDBUser = "LIBRARYOPS_DB_USER"
	EnvDBName = "LIBRARYOPS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Lending      LendingConfig
	Library      LibraryConfig
	Mail         MailConfig
	Reminders    RemindersConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"LIBRARYOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"LIBRARYOPS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIBRARYOPS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIBRARYOPS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LIBRARYOPS_DB_DSN"`
	Driver string `envconfig:"LIBRARYOPS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIBRARYOPS_DB_HOST"`
	LegacyPort     int    `envconfig:"LIBRARYOPS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIBRARYOPS_DB_USER"`
	LegacyPassword string `envconfig:"LIBRARYOPS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIBRARYOPS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIBRARYOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIBRARYOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIBRARYOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIBRARYOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIBRARYOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional: when neither URL nor address is set, idempotency
// protection for borrow/return degrades to pass-through.
type RedisConfig struct {
	URL          string        `envconfig:"LIBRARYOPS_REDIS_URL"`
	Address      string        `envconfig:"LIBRARYOPS_REDIS_ADDR"`
	Password     string        `envconfig:"LIBRARYOPS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIBRARYOPS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIBRARYOPS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIBRARYOPS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIBRARYOPS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIBRARYOPS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIBRARYOPS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type LendingConfig struct {
	FinePerDay     int `envconfig:"LIBRARYOPS_LENDING_FINE_PER_DAY" default:"100"`
	DefaultDueDays int `envconfig:"LIBRARYOPS_LENDING_DEFAULT_DUE_DAYS" default:"14"`
	// MaxLoansPerMember caps the active loans a registered member may hold.
	// Zero means no cap.
	MaxLoansPerMember int `envconfig:"LIBRARYOPS_LENDING_MAX_LOANS_PER_MEMBER" default:"0"`
}

// LibraryConfig holds the static facts the chat responder can always answer.
type LibraryConfig struct {
	Name    string   `envconfig:"LIBRARYOPS_LIBRARY_NAME" default:"City Library - Diyathalawa"`
	Address string   `envconfig:"LIBRARYOPS_LIBRARY_ADDRESS" default:"No.123 , Haputhale road , Diyathalawa"`
	Phone   string   `envconfig:"LIBRARYOPS_LIBRARY_PHONE" default:"+94 57 234 5678"`
	Email   string   `envconfig:"LIBRARYOPS_LIBRARY_EMAIL" default:"citylibrary@gmail.com"`
	Hours   []string `envconfig:"LIBRARYOPS_LIBRARY_HOURS" default:"Mon – Fri: 9:00 AM – 7:00 PM,Saturday: 10:00 AM – 5:00 PM,Sunday & Public Holidays: Closed"`
}

// MailConfig configures the SMTP sink; an empty host means reminder emails
// are simulated through the log instead of delivered.
type MailConfig struct {
	SMTPHost string `envconfig:"LIBRARYOPS_SMTP_HOST"`
	SMTPPort int    `envconfig:"LIBRARYOPS_SMTP_PORT" default:"587"`
	Username string `envconfig:"LIBRARYOPS_SMTP_USERNAME"`
	Password string `envconfig:"LIBRARYOPS_SMTP_PASSWORD"`
	From     string `envconfig:"LIBRARYOPS_MAIL_FROM" default:"citylibrary@gmail.com"`
}

// Configured reports whether real SMTP delivery is possible.
func (m MailConfig) Configured() bool {
	return m.SMTPHost != "" && m.From != ""
}

type RemindersConfig struct {
	Interval time.Duration `envconfig:"LIBRARYOPS_REMINDER_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LIBRARYOPS_AUTO_MIGRATE" default:"false"`
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
