package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of config/config.yaml. Each section maps onto one
// subsystem the app wires at startup. Zero values mean "use the subsystem
// default" except where Validate requires a value.
type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Backend     BackendConfig    `yaml:"backend"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	OrderFeed   OrderFeedConfig  `yaml:"orderfeed"`
	Pricing     PricingConfig    `yaml:"pricing"`
	Queue       QueueConfig      `yaml:"queue"`
	Alerts      AlertsConfig     `yaml:"alerts"`
	Simulator   SimulatorConfig  `yaml:"simulator"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// BackendConfig selects where ingested sales events land first:
// "clickhouse" writes directly, "kafka" publishes for the consumer
// to persist.
type BackendConfig struct {
	Type         string        `yaml:"type"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// KafkaConfig holds broker addresses and the sales topic plus tuning for
// both sides of it.
type KafkaConfig struct {
	Brokers      []string            `yaml:"brokers"`
	Topic        string              `yaml:"topic"`
	RequiredAcks int                 `yaml:"required_acks"`
	Compression  string              `yaml:"compression"`
	Producer     KafkaProducerConfig `yaml:"producer"`
	Consumer     KafkaConsumerConfig `yaml:"consumer"`
}

// KafkaProducerConfig tunes batching and delivery of the sales publisher.
type KafkaProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	Linger       time.Duration `yaml:"linger"`
	BatchBytes   int           `yaml:"batch_bytes"`
	BatchSize    int           `yaml:"batch_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	Async        bool          `yaml:"async"`
}

// KafkaConsumerConfig tunes the ingest consumer group, including its
// retry backoff and dead letter topic.
type KafkaConsumerConfig struct {
	GroupID    string        `yaml:"group_id"`
	Workers    int           `yaml:"workers"`
	BufferSize int           `yaml:"buffer_size"`
	RetryMax   int           `yaml:"retry_max"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
	DLQTopic   string        `yaml:"dlq_topic"`
	MinBytes   int           `yaml:"min_bytes"`
	MaxBytes   int           `yaml:"max_bytes"`
}

// ClickHouseConfig points at the analytics store every series is read
// from and every event is written to.
type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

// OrderFeedConfig configures the live WebSocket sales feed. The feed is
// optional; the simulator can stand in for it.
type OrderFeedConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	WebSocketURL   string        `yaml:"websocket_url"`
	Products       []string      `yaml:"products"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

// PricingConfig tunes the analytics pipeline itself.
type PricingConfig struct {
	Forecast    ForecastConfig     `yaml:"forecast"`
	Elasticity  ElasticityConfig   `yaml:"elasticity"`
	Rules       RuleThresholds     `yaml:"rules"`
	MaxProducts int                `yaml:"max_products"`
	CacheTTL    CacheTTLConfig     `yaml:"cache_ttl"`
	Redis       PricingRedisConfig `yaml:"redis"`
}

// ForecastConfig overrides the Holt-Winters smoothing parameters and
// horizon bounds. Zero keeps the built-in default.
type ForecastConfig struct {
	Alpha        float64 `yaml:"alpha"`
	Beta         float64 `yaml:"beta"`
	Gamma        float64 `yaml:"gamma"`
	SeasonLength int     `yaml:"season_length"`
	MinHorizon   int     `yaml:"min_horizon"`
	MaxHorizon   int     `yaml:"max_horizon"`
}

// ElasticityConfig bounds the price elasticity regression.
type ElasticityConfig struct {
	MinPairs             int     `yaml:"min_pairs"`
	MatchedPairThreshold int     `yaml:"matched_pair_threshold"`
	DefaultCoefficient   float64 `yaml:"default_coefficient"`
}

// RuleThresholds are the decision rule cut points. All are compared
// against signal scores in [0, 1] except the growth bounds, which are
// week-over-week ratios.
type RuleThresholds struct {
	PositionOverpriced  float64 `yaml:"position_overpriced"`
	PositionUnderpriced float64 `yaml:"position_underpriced"`
	GrowthSurge         float64 `yaml:"growth_surge"`
	GrowthDrop          float64 `yaml:"growth_drop"`
	GrowthLag           float64 `yaml:"growth_lag"`
	MomentumSurge       float64 `yaml:"momentum_surge"`
	MomentumPrep        float64 `yaml:"momentum_prep"`
	SeasonalLow         float64 `yaml:"seasonal_low"`
}

// CacheTTLConfig sets how long each endpoint's computed response is
// replayed before recomputing.
type CacheTTLConfig struct {
	Signals    time.Duration `yaml:"signals"`
	KPIs       time.Duration `yaml:"kpis"`
	Elasticity time.Duration `yaml:"elasticity"`
	Forecast   time.Duration `yaml:"forecast"`
}

// PricingRedisConfig enables the shared Redis cache in front of the
// pipeline. Disabled means per-process memory only.
type PricingRedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig tunes the background job queue.
type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	RetryLimit int           `yaml:"retry_limit"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AlertsConfig points urgent price recommendations at a webhook.
type AlertsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	WebhookURL    string        `yaml:"webhook_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	MinUrgency    string        `yaml:"min_urgency"`
}

// SimulatorConfig seeds the synthetic history generator.
type SimulatorConfig struct {
	Seed       int64   `yaml:"seed"`
	BaseDemand float64 `yaml:"base_demand"`
	GrowthRate float64 `yaml:"growth_rate"`
	Elasticity float64 `yaml:"elasticity"`
}

// Load reads, parses, and validates a YAML config file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load plus environment overrides. Overrides apply before
// validation so a secret supplied only through the environment still
// satisfies the required-field checks.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// applyEnv lets containers swap endpoints and secrets without editing
// the YAML file. Empty vars leave the file value alone.
func (c *Config) applyEnv() {
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("ORDERFEED_API_KEY"); v != "" {
		c.OrderFeed.APIKey = v
	}
	if v := os.Getenv("PRODUCTS"); v != "" {
		c.OrderFeed.Products = strings.Split(v, ",")
	}
	if v := os.Getenv("PRICING_REDIS_ADDR"); v != "" {
		c.Pricing.Redis.Addr = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alerts.WebhookURL = v
		c.Alerts.Enabled = true
	}
}

// Validate rejects configs that would start a broken pipeline.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Backend.Type {
	case "kafka", "clickhouse":
	case "":
		return fmt.Errorf("backend.type is required")
	default:
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.OrderFeed.Enabled {
		if len(c.OrderFeed.Products) == 0 {
			return fmt.Errorf("orderfeed.products cannot be empty when the feed is enabled")
		}
		if c.OrderFeed.APIKey == "" {
			return fmt.Errorf("orderfeed.api_key is required when the feed is enabled")
		}
	}
	fc := c.Pricing.Forecast
	for name, v := range map[string]float64{"alpha": fc.Alpha, "beta": fc.Beta, "gamma": fc.Gamma} {
		if v < 0 || v > 1 {
			return fmt.Errorf("pricing.forecast.%s must be within [0, 1], got %v", name, v)
		}
	}
	if c.Pricing.Elasticity.DefaultCoefficient > 0 {
		return fmt.Errorf("pricing.elasticity.default_coefficient must be negative: demand falls as price rises")
	}
	if c.Alerts.Enabled && c.Alerts.WebhookURL == "" {
		return fmt.Errorf("alerts.webhook_url is required when alerts are enabled")
	}
	return nil
}
