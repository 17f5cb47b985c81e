package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Store struct {
		Type        string `yaml:"type"` // memory, clickhouse, postgres
		TickTable   string `yaml:"tick_table"`
		SignalTable string `yaml:"signal_table"`
	} `yaml:"store"`
	ClickHouse struct {
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
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TickTopic    string   `yaml:"tick_topic"`
		SignalTopic  string   `yaml:"signal_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Source struct {
		Mode           string        `yaml:"mode"` // poll or stream
		APIKey         string        `yaml:"api_key"`
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		PollInterval   time.Duration `yaml:"poll_interval"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		RetryMax       int           `yaml:"retry_max"`
		BackoffMin     time.Duration `yaml:"backoff_min"`
		BackoffMax     time.Duration `yaml:"backoff_max"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxRPS         int           `yaml:"max_rps"`
		BufferSize     int           `yaml:"buffer_size"`
	} `yaml:"source"`
	Detectors struct {
		PriceSpikeZScore float64 `yaml:"price_spike_zscore"`
		VolumeSurgeRatio float64 `yaml:"volume_surge_ratio"`
		VolatilityRatio  float64 `yaml:"volatility_ratio"`
		VWAPDeviationPct float64 `yaml:"vwap_deviation_pct"`
		MinHistory       int     `yaml:"min_history"`
		WindowSize       int     `yaml:"window_size"`
	} `yaml:"detectors"`
	Alerts []AlertChannel `yaml:"alerts"`
	Cache  struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// AlertChannel configures one alert delivery channel.
type AlertChannel struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Source.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Source.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Store.TickTable == "" {
		c.Store.TickTable = "ticks"
	}
	if c.Store.SignalTable == "" {
		c.Store.SignalTable = "signals"
	}
	if c.Source.Mode == "" {
		c.Source.Mode = "poll"
	}
	if c.Source.PollInterval == 0 {
		c.Source.PollInterval = time.Second
	}
	if c.Source.RequestTimeout == 0 {
		c.Source.RequestTimeout = 10 * time.Second
	}
	if c.Detectors.PriceSpikeZScore == 0 {
		c.Detectors.PriceSpikeZScore = 2.5
	}
	if c.Detectors.VolumeSurgeRatio == 0 {
		c.Detectors.VolumeSurgeRatio = 3.0
	}
	if c.Detectors.VolatilityRatio == 0 {
		c.Detectors.VolatilityRatio = 2.5
	}
	if c.Detectors.VWAPDeviationPct == 0 {
		c.Detectors.VWAPDeviationPct = 0.5
	}
	if c.Detectors.MinHistory == 0 {
		c.Detectors.MinHistory = 10
	}
	if c.Detectors.WindowSize == 0 {
		c.Detectors.WindowSize = 50
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Store.Type {
	case "memory", "clickhouse", "postgres":
	default:
		return fmt.Errorf("store.type must be 'memory', 'clickhouse' or 'postgres', got '%s'", c.Store.Type)
	}
	if c.Source.Mode != "poll" && c.Source.Mode != "stream" {
		return fmt.Errorf("source.mode must be 'poll' or 'stream', got '%s'", c.Source.Mode)
	}
	if len(c.Source.Symbols) == 0 {
		return fmt.Errorf("source.symbols cannot be empty")
	}
	if c.Source.PollInterval <= 0 {
		return fmt.Errorf("source.poll_interval must be positive")
	}
	if c.Detectors.PriceSpikeZScore <= 0 ||
		c.Detectors.VolumeSurgeRatio <= 0 ||
		c.Detectors.VolatilityRatio <= 0 ||
		c.Detectors.VWAPDeviationPct <= 0 {
		return fmt.Errorf("detector thresholds must be positive")
	}
	if c.Detectors.WindowSize < c.Detectors.MinHistory {
		return fmt.Errorf("detectors.window_size (%d) must be >= min_history (%d)",
			c.Detectors.WindowSize, c.Detectors.MinHistory)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Store.Type == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for postgres store")
	}
	if c.Store.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for clickhouse store")
	}
	return nil
}
