package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	DBDSN    string `yaml:"db_dsn"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	SeedDemo bool   `yaml:"seed_demo"`

	JWTSecret string `yaml:"jwt_secret"`
	TimeZone  string `yaml:"timezone"`
	Currency  string `yaml:"currency"`

	Wholesale WholesaleConfig `yaml:"wholesale"`
	Coupons   CouponConfig    `yaml:"coupons"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Outbox    OutboxConfig    `yaml:"outbox"`
}

type WholesaleConfig struct {
	MinInitialUnits     int  `yaml:"min_initial_units"`
	MinMaintenanceUnits int  `yaml:"min_maintenance_units"`
	RetailRollover      bool `yaml:"retail_rollover"`
}

type CouponConfig struct {
	// Strict rejects orders carrying an inapplicable coupon instead of ignoring it.
	Strict bool `yaml:"strict"`
}

type StripeConfig struct {
	APIKey     string `yaml:"api_key"`
	SuccessURL string `yaml:"success_url"`
	CancelURL  string `yaml:"cancel_url"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	NotifyTopic string   `yaml:"notify_topic"`
	ExportTopic string   `yaml:"export_topic"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

func Defaults() Config {
	return Config{
		Port:     "8080",
		DBDSN:    "grana3d.db",
		LogFile:  "./grana3d.log",
		LogLevel: "info",
		TimeZone: "America/Argentina/Buenos_Aires",
		Currency: "ars",
		Wholesale: WholesaleConfig{
			MinInitialUnits:     10,
			MinMaintenanceUnits: 10,
		},
		Stripe: StripeConfig{
			SuccessURL: "http://localhost:3000/checkout/success",
			CancelURL:  "http://localhost:3000/checkout/cancel",
		},
		Kafka: KafkaConfig{
			NotifyTopic: "orders.notifications",
			ExportTopic: "orders.export",
		},
		Outbox: OutboxConfig{
			PollInterval: 2 * time.Second,
			MaxAttempts:  5,
		},
	}
}

// Load builds the config from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DBDSN, "DB_DSN")
	setString(&cfg.LogFile, "LOG_FILE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.TimeZone, "TIMEZONE")
	setString(&cfg.Currency, "CURRENCY")
	setString(&cfg.Stripe.APIKey, "STRIPE_API_KEY")
	setString(&cfg.Stripe.SuccessURL, "STRIPE_SUCCESS_URL")
	setString(&cfg.Stripe.CancelURL, "STRIPE_CANCEL_URL")
	setString(&cfg.Kafka.NotifyTopic, "KAFKA_TOPIC_NOTIFY")
	setString(&cfg.Kafka.ExportTopic, "KAFKA_TOPIC_EXPORT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"WHOLESALE_MIN_INITIAL_UNITS", &cfg.Wholesale.MinInitialUnits},
		{"WHOLESALE_MIN_MAINTENANCE_UNITS", &cfg.Wholesale.MinMaintenanceUnits},
		{"OUTBOX_MAX_ATTEMPTS", &cfg.Outbox.MaxAttempts},
	} {
		if v := os.Getenv(f.key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = n
		}
	}

	for _, f := range []struct {
		key string
		dst *bool
	}{
		{"WHOLESALE_RETAIL_ROLLOVER", &cfg.Wholesale.RetailRollover},
		{"COUPONS_STRICT", &cfg.Coupons.Strict},
		{"SEED_DEMO", &cfg.SeedDemo},
	} {
		if v := os.Getenv(f.key); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = b
		}
	}

	if v := os.Getenv("OUTBOX_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("OUTBOX_POLL_INTERVAL: %w", err)
		}
		cfg.Outbox.PollInterval = d
	}
	return nil
}

func (c Config) Validate() error {
	if c.Wholesale.MinInitialUnits <= 0 {
		return fmt.Errorf("wholesale.min_initial_units must be positive")
	}
	if c.Wholesale.MinMaintenanceUnits <= 0 {
		return fmt.Errorf("wholesale.min_maintenance_units must be positive")
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox.poll_interval must be positive")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.max_attempts must be positive")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.TimeZone, err)
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
