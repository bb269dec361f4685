package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	CRM      CRMConfig      `mapstructure:"crm"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Push     PushConfig     `mapstructure:"push"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	Env          string   `mapstructure:"env"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type AuthConfig struct {
	// JWTSecret is shared with the CRM backend that issues user tokens.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig selects the durable KV backend: sqlite | postgres | redis | memory.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id"`
	Topics          []string `mapstructure:"topics"`
}

// CRMConfig selects where clients and announcements are read from: postgres | api.
type CRMConfig struct {
	Source  string `mapstructure:"source"`
	BaseURL string `mapstructure:"base_url"`
	// Timezone of the CRM database host. TIMESTAMP columns hold wall time in this zone.
	Timezone string `mapstructure:"timezone"`
}

type PollerConfig struct {
	CallbackInterval     time.Duration `mapstructure:"callback_interval"`
	TransferInterval     time.Duration `mapstructure:"transfer_interval"`
	AnnouncementCacheTTL time.Duration `mapstructure:"announcement_cache_ttl"`
}

type LedgerConfig struct {
	RetentionDays int           `mapstructure:"retention_days"` // Default: 30
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type PushConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	RateEvery       time.Duration `mapstructure:"rate_every"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: CRM_NOTIFY_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite_path", "crm-notify.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "granovsky_crm")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "crm-notify:")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group_id", "crm-notify-group")
	v.SetDefault("kafka.topics", []string{"crm-events", "notification-commands"})
	v.SetDefault("crm.source", "postgres")
	v.SetDefault("crm.base_url", "http://localhost:5000")
	v.SetDefault("crm.timezone", "UTC")
	v.SetDefault("poller.callback_interval", time.Minute)
	v.SetDefault("poller.transfer_interval", time.Minute)
	v.SetDefault("poller.announcement_cache_ttl", time.Minute)
	v.SetDefault("ledger.retention_days", 30)
	v.SetDefault("ledger.prune_interval", 24*time.Hour)
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.rate_every", 2*time.Second)
	v.SetDefault("push.rate_burst", 5)

	// Environment variables (e.g. CRM_NOTIFY_DATABASE_HOST -> database.host)
	v.SetEnvPrefix("CRM_NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also support the CRM backend's own env names for Docker Compose convenience
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("push.credentials_file", "FIREBASE_CREDENTIALS_FILE")
	v.BindEnv("server.port", "PORT")

	// Try loading config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" dbname=" + d.Name +
		" user=" + d.User +
		" password=" + d.Password +
		" sslmode=disable"
}

// Retention returns the ledger retention window.
func (l LedgerConfig) Retention() time.Duration {
	return time.Duration(l.RetentionDays) * 24 * time.Hour
}

// Location resolves the CRM database timezone.
func (c CRMConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
