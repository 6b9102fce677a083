package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

// QuotaConfig caps per-account send volume.
type QuotaConfig struct {
	HourlyLimit   int           `yaml:"hourly_limit"`
	DailyLimit    int           `yaml:"daily_limit"`
	SearchHorizon time.Duration `yaml:"search_horizon"` // how far NextAvailableSlot probes
}

type BusinessHoursConfig struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

type AdvisorConfig struct {
	PeakHours  []int `yaml:"peak_hours"`
	GoodHours  []int `yaml:"good_hours"`
	AvoidHours []int `yaml:"avoid_hours"`
}

type SchedulerConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	MinSpacing    time.Duration `yaml:"min_spacing"` // floor between batch items
	DefaultSpread int           `yaml:"default_spread_hours"`
}

type QueueConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	BatchLimit      int           `yaml:"batch_limit"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	MinDispatchGap  time.Duration `yaml:"min_dispatch_gap"` // anti-burst delay bounds
	MaxDispatchGap  time.Duration `yaml:"max_dispatch_gap"`
}

type CooldownConfig struct {
	WeeklyLimit int    `yaml:"weekly_limit"`
	Timezone    string `yaml:"timezone"` // IANA zone for the Monday reset; UTC if empty
}

type ExperimentConfig struct {
	MinSampleSize        int     `yaml:"min_sample_size"`
	ImprovementThreshold float64 `yaml:"improvement_threshold"`
}

type DeliveryConfig struct {
	Mode          string        `yaml:"mode"` // telegram | agent | noop
	TelegramToken string        `yaml:"telegram_token"`
	AgentURL      string        `yaml:"agent_url"`
	AgentTimeout  time.Duration `yaml:"agent_timeout"`
}

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Admin         AdminConfig         `yaml:"admin"`
	Quota         QuotaConfig         `yaml:"quota"`
	BusinessHours BusinessHoursConfig `yaml:"business_hours"`
	Advisor       AdvisorConfig       `yaml:"advisor"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Queue         QueueConfig         `yaml:"queue"`
	Cooldown      CooldownConfig      `yaml:"cooldown"`
	Experiment    ExperimentConfig    `yaml:"experiment"`
	Delivery      DeliveryConfig      `yaml:"delivery"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.BusinessHours.StartHour >= cfg.BusinessHours.EndHour {
		return nil, errors.New("business_hours.start_hour must be before end_hour")
	}
	if cfg.Delivery.Mode == "telegram" && cfg.Delivery.TelegramToken == "" {
		return nil, errors.New("delivery.telegram_token is required in telegram mode")
	}
	if (cfg.Delivery.Mode == "agent" || cfg.Delivery.Mode == "telegram") && cfg.Delivery.AgentURL == "" {
		// Message content lives in the sidecar in both live modes.
		return nil, errors.New("delivery.agent_url is required in agent and telegram modes")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values with the shipped defaults. Exposed so tests
// can build configs without a yaml file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8090
	}
	if cfg.Quota.HourlyLimit <= 0 {
		cfg.Quota.HourlyLimit = 15
	}
	if cfg.Quota.DailyLimit <= 0 {
		cfg.Quota.DailyLimit = 50
	}
	if cfg.Quota.SearchHorizon <= 0 {
		cfg.Quota.SearchHorizon = 14 * 24 * time.Hour
	}
	if cfg.BusinessHours.StartHour == 0 && cfg.BusinessHours.EndHour == 0 {
		cfg.BusinessHours.StartHour = 9
		cfg.BusinessHours.EndHour = 18
	}
	if len(cfg.Advisor.PeakHours) == 0 {
		cfg.Advisor.PeakHours = []int{9, 10, 14, 15}
	}
	if len(cfg.Advisor.GoodHours) == 0 {
		cfg.Advisor.GoodHours = []int{11, 16, 17}
	}
	if len(cfg.Advisor.AvoidHours) == 0 {
		cfg.Advisor.AvoidHours = []int{12, 13}
	}
	if cfg.Scheduler.MaxRetries <= 0 {
		cfg.Scheduler.MaxRetries = 3
	}
	if cfg.Scheduler.MinSpacing <= 0 {
		cfg.Scheduler.MinSpacing = 3 * time.Minute
	}
	if cfg.Scheduler.DefaultSpread <= 0 {
		cfg.Scheduler.DefaultSpread = 8
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = time.Minute
	}
	if cfg.Queue.BatchLimit <= 0 {
		cfg.Queue.BatchLimit = 10
	}
	if cfg.Queue.DispatchTimeout <= 0 {
		cfg.Queue.DispatchTimeout = 30 * time.Second
	}
	if cfg.Queue.RetryBackoff <= 0 {
		cfg.Queue.RetryBackoff = 30 * time.Minute
	}
	if cfg.Queue.MinDispatchGap <= 0 {
		cfg.Queue.MinDispatchGap = 3 * time.Second
	}
	if cfg.Queue.MaxDispatchGap <= cfg.Queue.MinDispatchGap {
		cfg.Queue.MaxDispatchGap = 8 * time.Second
	}
	if cfg.Cooldown.WeeklyLimit <= 0 {
		cfg.Cooldown.WeeklyLimit = 1
	}
	if cfg.Experiment.MinSampleSize <= 0 {
		cfg.Experiment.MinSampleSize = 20
	}
	if cfg.Experiment.ImprovementThreshold <= 0 {
		cfg.Experiment.ImprovementThreshold = 0.10
	}
	if cfg.Delivery.Mode == "" {
		cfg.Delivery.Mode = "noop"
	}
	if cfg.Delivery.AgentTimeout <= 0 {
		cfg.Delivery.AgentTimeout = 30 * time.Second
	}
}
