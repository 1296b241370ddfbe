package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Mode selects how far the pipeline goes on an approved decision.
const (
	ModeAlertOnly   = "alert-only"
	ModeAutoExecute = "auto-execute"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Mode        string `yaml:"mode" default:"alert-only" validate:"oneof=alert-only auto-execute"`
	Timezone    string `yaml:"timezone" default:"America/New_York"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Stream struct {
		URL            string        `yaml:"url" default:"wss://ws-subscriptions-clob.polymarket.com/ws/market" validate:"required"`
		Markets        []string      `yaml:"markets"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"stream"`

	Gamma struct {
		BaseURL    string        `yaml:"base_url" default:"https://gamma-api.polymarket.com" validate:"required"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		CacheTTL   time.Duration `yaml:"cache_ttl" default:"1h"`
		MaxRPS     float64       `yaml:"max_rps" default:"10"`
		RankWindow int           `yaml:"rank_window" default:"100"`
	} `yaml:"gamma"`

	Clob struct {
		BaseURL string        `yaml:"base_url" default:"https://clob.polymarket.com" validate:"required"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"clob"`

	Analysis struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Model   string        `yaml:"model" default:"gemini-pro"`
		Timeout time.Duration `yaml:"timeout" default:"8s"`
	} `yaml:"analysis"`

	Notify struct {
		BotToken string        `yaml:"bot_token"`
		ChatID   string        `yaml:"chat_id"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"notify"`

	Detection struct {
		WhaleThreshold   float64       `yaml:"whale_threshold" default:"10000" validate:"gt=0"`
		NewWalletDays    int           `yaml:"new_wallet_days" default:"7" validate:"gt=0"`
		NicheRank        int           `yaml:"niche_rank" default:"50" validate:"gt=0"`
		PriceLowExtreme  float64       `yaml:"price_low_extreme" default:"0.05" validate:"gt=0,lt=1"`
		PriceHighExtreme float64       `yaml:"price_high_extreme" default:"0.95" validate:"gt=0,lt=1"`
		ClusterWindow    time.Duration `yaml:"cluster_window" default:"5m"`
		ClusterSize      int           `yaml:"cluster_size" default:"3" validate:"gt=1"`
	} `yaml:"detection"`

	Decision struct {
		EscalationLow     float64       `yaml:"escalation_low" default:"0.4" validate:"gte=0,lte=1"`
		EscalationHigh    float64       `yaml:"escalation_high" default:"0.7" validate:"gte=0,lte=1"`
		ApproveScore      float64       `yaml:"approve_score" default:"0.7" validate:"gte=0,lte=1"`
		ApproveConfidence float64       `yaml:"approve_confidence" default:"0.7" validate:"gte=0,lte=1"`
		EventDeadline     time.Duration `yaml:"event_deadline" default:"30s"`
		DedupTTL          time.Duration `yaml:"dedup_ttl" default:"1h"`
	} `yaml:"decision"`

	Risk struct {
		Stake         float64 `yaml:"stake" default:"50" validate:"gt=0"`
		MaxDailyBets  int     `yaml:"max_daily_bets" default:"5" validate:"gt=0"`
		MaxDailyWager float64 `yaml:"max_daily_wager" default:"250" validate:"gte=0"`
		MaxDailyLoss  float64 `yaml:"max_daily_loss" default:"200" validate:"gt=0"`
	} `yaml:"risk"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"true"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"polysentry"`
	} `yaml:"redis"`

	ClickHouse struct {
		Enabled      bool          `yaml:"enabled" default:"true"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"polysentry"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		ResolutionsTopic string   `yaml:"resolutions_topic" default:"market-resolutions"`
		DecisionsTopic   string   `yaml:"decisions_topic" default:"decision-audit"`
		Compression      string   `yaml:"compression" default:"gzip"`
		RequiredAcks     int      `yaml:"required_acks" default:"-1"`
		Consumer         struct {
			GroupID    string        `yaml:"group_id" default:"polysentry"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load reads a YAML configuration file, applies defaults, and validates it.
// An invalid configuration is fatal: the caller must not start ingestion.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
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

	if v := os.Getenv("SENTRY_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.ChatID = v
	}
	if v := os.Getenv("ANALYSIS_API_KEY"); v != "" {
		c.Analysis.APIKey = v
	}
	if v := os.Getenv("CLOB_API_KEY"); v != "" {
		c.Clob.APIKey = v
	}
	if v := os.Getenv("STAKE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Risk.Stake = f
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags plus cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Detection.PriceLowExtreme >= c.Detection.PriceHighExtreme {
		return fmt.Errorf("price_low_extreme %.2f must be below price_high_extreme %.2f",
			c.Detection.PriceLowExtreme, c.Detection.PriceHighExtreme)
	}
	if c.Decision.EscalationLow >= c.Decision.EscalationHigh {
		return fmt.Errorf("escalation_low %.2f must be below escalation_high %.2f",
			c.Decision.EscalationLow, c.Decision.EscalationHigh)
	}
	if c.Risk.MaxDailyWager > 0 && c.Risk.Stake > c.Risk.MaxDailyWager {
		return fmt.Errorf("stake %.2f exceeds max_daily_wager %.2f", c.Risk.Stake, c.Risk.MaxDailyWager)
	}
	if c.Mode == ModeAutoExecute && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required in auto-execute mode")
	}
	return nil
}

// Location returns the configured trading-day timezone. Validate guarantees
// the name loads, so errors here are impossible after a successful Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
