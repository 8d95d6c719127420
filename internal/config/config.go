package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	NotifierLog   = "log"
	NotifierRedis = "redis"
	NotifierMQTT  = "mqtt"
	NotifierNone  = "none"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	StoreBackend   string   `mapstructure:"STORE_BACKEND"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	DBSchema       string   `mapstructure:"DB_SCHEMA"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	Notifier       string   `mapstructure:"NOTIFIER"`
	NotifyTopic    string   `mapstructure:"NOTIFY_TOPIC"`
	MQTTBroker     string   `mapstructure:"MQTT_BROKER"`
	MQTTClientID   string   `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername   string   `mapstructure:"MQTT_USERNAME"`
	MQTTPassword   string   `mapstructure:"MQTT_PASSWORD"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
}

var defaults = map[string]interface{}{
	"PORT":             "8000",
	"ENV":              "development",
	"LOG_LEVEL":        "info",
	"STORE_BACKEND":    BackendPostgres,
	"DB_MAX_CONNS":     20,
	"DB_MIN_CONNS":     2,
	"DB_SCHEMA":        "public",
	"CORS_ORIGINS":     "http://localhost:3000",
	"RATE_LIMIT_RPS":   100,
	"RATE_LIMIT_BURST": 200,
	"BODY_LIMIT":       "1M",
	"NOTIFIER":         NotifierLog,
	"NOTIFY_TOPIC":     "carelink/patients/created",
	"MQTT_CLIENT_ID":   "carelink-server",
}

var envKeys = []string{
	"DATABASE_URL", "REDIS_URL", "MQTT_BROKER", "MQTT_USERNAME", "MQTT_PASSWORD",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
}

// Load reads .env (when present) and the environment. It does not validate;
// callers run Validate once they know which commands need which settings.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, d := range defaults {
		v.SetDefault(k, d)
		v.BindEnv(k)
	}
	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.Notifier = strings.ToLower(cfg.Notifier)

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) UsesPostgres() bool {
	return c.StoreBackend == BackendPostgres
}

// Validate checks the settings are consistent: the chosen backend and
// notifier have what they need, and outside development a JWT signing key
// is configured.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}

	switch c.Notifier {
	case NotifierLog, NotifierNone:
	case NotifierRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when NOTIFIER is %q", NotifierRedis)
		}
	case NotifierMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required when NOTIFIER is %q", NotifierMQTT)
		}
	default:
		return fmt.Errorf("NOTIFIER must be one of log, redis, mqtt, none; got %q", c.Notifier)
	}

	if c.DBMinConns > c.DBMaxConns && c.DBMaxConns > 0 {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if !c.IsDev() {
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY of at least 32 bytes is required outside development (ENV=%q)", c.Env)
		}
	}
	return nil
}
