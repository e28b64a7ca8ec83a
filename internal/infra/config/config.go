package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config aggregates application configuration. Values come from an optional config.yaml,
// then environment variables, then the defaults below.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	Store    string `mapstructure:"STORE"`

	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	KafkaBrokersRaw    string          `mapstructure:"KAFKA_BROKERS"`
	KafkaBrokers       []string        `mapstructure:"-"`
	KafkaTopicPrefix   string          `mapstructure:"KAFKA_TOPIC_PREFIX"`
	KafkaGroupID       string          `mapstructure:"KAFKA_GROUP_ID"`
	OutboxPollInterval time.Duration   `mapstructure:"OUTBOX_POLL_INTERVAL"`
	RetryBackoffRaw    string          `mapstructure:"RETRY_BACKOFF"`
	RetryBackoff       []time.Duration `mapstructure:"-"`

	TxMaxAttempts  int           `mapstructure:"TX_MAX_ATTEMPTS"`
	TxBackoff      time.Duration `mapstructure:"TX_BACKOFF"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMP_TTL"`

	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	OccupancyCacheTTL time.Duration `mapstructure:"OCCUPANCY_CACHE_TTL"`

	ScyllaHostsRaw string        `mapstructure:"SCYLLA_HOSTS"`
	ScyllaHosts    []string      `mapstructure:"-"`
	ScyllaKeyspace string        `mapstructure:"SCYLLA_KEYSPACE"`
	ScyllaTimeout  time.Duration `mapstructure:"SCYLLA_TIMEOUT"`

	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`

	ActorsFile         string   `mapstructure:"ACTORS_FILE"`
	PropertiesFixtures string   `mapstructure:"PROPERTIES_FIXTURES"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
	CORSOriginsRaw     string   `mapstructure:"CORS_ORIGINS"`
	CORSOrigins        []string `mapstructure:"-"`
}

var defaults = map[string]any{
	"APP_ENV":              "dev",
	"LOG_LEVEL":            "info",
	"HTTP_ADDR":            ":8080",
	"GRPC_ADDR":            ":9090",
	"STORE":                StoreMemory,
	"MONGO_URI":            "",
	"MONGO_DB":             "habita",
	"KAFKA_BROKERS":        "",
	"KAFKA_TOPIC_PREFIX":   "",
	"KAFKA_GROUP_ID":       "habita-notifications",
	"OUTBOX_POLL_INTERVAL": 500 * time.Millisecond,
	"RETRY_BACKOFF":        "1s,5s,30s",
	"TX_MAX_ATTEMPTS":      5,
	"TX_BACKOFF":           10 * time.Millisecond,
	"IDEMP_TTL":            24 * time.Hour,
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"OCCUPANCY_CACHE_TTL":  5 * time.Minute,
	"SCYLLA_HOSTS":         "",
	"SCYLLA_KEYSPACE":      "habita",
	"SCYLLA_TIMEOUT":       5 * time.Second,
	"S3_ENDPOINT":          "",
	"S3_ACCESS_KEY":        "",
	"S3_SECRET_KEY":        "",
	"S3_BUCKET":            "habita-events",
	"S3_USE_SSL":           false,
	"ACTORS_FILE":          "",
	"PROPERTIES_FIXTURES":  "",
	"RATE_LIMIT_RPS":       20.0,
	"RATE_LIMIT_BURST":     40,
	"CORS_ORIGINS":         "*",
}

var (
	ErrUnknownStore     = errors.New("config: STORE must be memory or mongo")
	ErrMongoURIRequired = errors.New("config: MONGO_URI is required when STORE=mongo")
	ErrTxAttempts       = errors.New("config: TX_MAX_ATTEMPTS must be at least 1")
)

// Load reads configuration. configPath may name a yaml file; empty looks for config.yaml in
// the working directory and ./config, and a missing file is not an error.
func Load(configPath string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokersRaw)
	cfg.ScyllaHosts = splitList(cfg.ScyllaHostsRaw)
	cfg.CORSOrigins = splitList(cfg.CORSOriginsRaw)

	for _, raw := range strings.Split(cfg.RetryBackoffRaw, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return ErrMongoURIRequired
		}
	default:
		return fmt.Errorf("%w, got %q", ErrUnknownStore, c.Store)
	}
	if c.TxMaxAttempts < 1 {
		return ErrTxAttempts
	}
	return nil
}

func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "local", "development":
		return true
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
