package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration when no flag is given.
const DefaultPath = "config/config.yml"

type Config struct {
	App        AppConfig        `yaml:"app"`
	Workspace  string           `yaml:"workspace"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Output     OutputConfig     `yaml:"output"`
	Collectors CollectorsConfig `yaml:"collectors"`
	Counters   CountersConfig   `yaml:"counters"`
	Stats      StatsConfig      `yaml:"stats"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LedgerConfig struct {
	// Path is resolved against Workspace when relative.
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
	// LockPath defaults to Path + ".lock".
	LockPath string `yaml:"lock_path"`
}

type CollectorsConfig struct {
	Command  CommandConfig  `yaml:"command"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Sessions SessionsConfig `yaml:"sessions"`
	Machine  MachineConfig  `yaml:"machine"`
}

type CommandConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

type JobsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Args    []string `yaml:"args"`
}

type SessionsConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Args            []string `yaml:"args"`
	SampleOnFailure bool     `yaml:"sample_on_failure"`
}

type MachineConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DiskPath     string        `yaml:"disk_path"`
	CPUInterval  time.Duration `yaml:"cpu_interval"`
	ProcessMatch string        `yaml:"process_match"`
}

type CountersConfig struct {
	// QuotaPath holds a plain integer, relative to Workspace when not absolute.
	QuotaPath string `yaml:"quota_path"`
	// Path is an optional YAML or JSON file of counter overrides.
	Path    string   `yaml:"path"`
	DataDir string   `yaml:"data_dir"`
	Skip    []string `yaml:"skip"`
}

type StatsConfig struct {
	TokenCeiling  int64   `yaml:"token_ceiling"`
	TotalRevenue  float64 `yaml:"total_revenue"`
	MonthlyTarget float64 `yaml:"monthly_target"`
}

type PricingConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Quote             string        `yaml:"quote"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
	Redis RedisConfig `yaml:"redis"`
	Retry RetryConfig `yaml:"retry"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers" validate:"dive,hostname_port"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0,lte=15"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

type RetryConfig struct {
	MaxAttempts uint          `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Textfile   string           `yaml:"textfile"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic report"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// LogBuffer is the number of recent log lines kept for /api/logs.
	LogBuffer int `yaml:"log_buffer" validate:"gte=0"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		App:       AppConfig{Name: "clawdash", Version: "dev"},
		Workspace: ".",
		Ledger:    LedgerConfig{Path: "memory/trades.md"},
		Output:    OutputConfig{Path: "data.json"},
		Collectors: CollectorsConfig{
			Command: CommandConfig{Binary: "openclaw", Timeout: 10 * time.Second},
			Jobs:    JobsConfig{Enabled: true, Args: []string{"cron", "list", "--json"}},
			Sessions: SessionsConfig{
				Enabled:         true,
				Args:            []string{"sessions", "list", "--json"},
				SampleOnFailure: true,
			},
			Machine: MachineConfig{
				Enabled:      true,
				DiskPath:     "/",
				CPUInterval:  100 * time.Millisecond,
				ProcessMatch: "python",
			},
		},
		Counters: CountersConfig{
			QuotaPath: "ventures/clip_engine/youtube_quota.txt",
			DataDir:   "data",
			Skip:      []string{".git", "node_modules"},
		},
		Stats: StatsConfig{TokenCeiling: 200000, TotalRevenue: 850, MonthlyTarget: 10000},
		Pricing: PricingConfig{
			Quote:             "USDT",
			RequestsPerSecond: 5,
			Burst:             1,
			Timeout:           5 * time.Second,
		},
		Storage: StorageConfig{
			S3:    S3Config{Key: "dashboard/data.json"},
			Kafka: KafkaConfig{Topic: "clawdash.snapshots"},
			Redis: RedisConfig{Key: "clawdash:snapshot", TTL: 24 * time.Hour},
			Retry: RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
		},
		Metrics: MetricsConfig{CloudWatch: CloudWatchConfig{Namespace: "Clawdash"}},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Server:  ServerConfig{Addr: ":8080", LogBuffer: 500},
	}
}

// Load reads path when given explicitly. Otherwise it tries the files for the
// current environment; when none exists the defaults are used, except in
// environments that require a file.
func Load(path string) (*Config, error) {
	if path != "" && path != DefaultPath {
		return LoadConfig(path)
	}

	env := CurrentEnvironment()
	for _, candidate := range env.configCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return LoadConfig(candidate)
		}
	}
	if env.RequiresConfigFile() {
		return nil, fmt.Errorf("config file %s is required in %s", env.configFile(), env)
	}

	cfg := Default()
	applyEnv(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&config)
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("CLAWDASH_WORKSPACE"); v != "" {
		config.Workspace = strings.TrimSpace(v)
	}
	if v := os.Getenv("CLAWDASH_OUTPUT"); v != "" {
		config.Output.Path = strings.TrimSpace(v)
	}
	if v := os.Getenv("OPENCLAW_BIN"); v != "" {
		config.Collectors.Command.Binary = strings.TrimSpace(v)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" && config.Storage.Kafka.Enabled {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		config.Storage.Kafka.Brokers = brokers
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" && config.Storage.Redis.Enabled {
		config.Storage.Redis.Addr = strings.TrimSpace(v)
	}
}

var structValidator = newStructValidator()

// newStructValidator reports fields by their yaml path, e.g. logging.format.
func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func validateConfig(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.New(fieldErrorMessage(fieldErrs[0]))
		}
		return err
	}
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if cfg.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if cfg.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if cfg.Collectors.Command.Binary == "" {
		return fmt.Errorf("collectors.command.binary is required")
	}
	if cfg.Collectors.Command.Timeout <= 0 {
		return fmt.Errorf("collectors.command.timeout must be greater than 0")
	}
	if cfg.Collectors.Machine.Enabled && cfg.Collectors.Machine.CPUInterval <= 0 {
		return fmt.Errorf("collectors.machine.cpu_interval must be greater than 0")
	}
	if cfg.Stats.TokenCeiling < 0 {
		return fmt.Errorf("stats.token_ceiling must not be negative")
	}

	if cfg.Pricing.Enabled {
		if cfg.Pricing.Quote == "" {
			return fmt.Errorf("pricing.quote is required when pricing is enabled")
		}
		if cfg.Pricing.RequestsPerSecond <= 0 {
			return fmt.Errorf("pricing.requests_per_second must be greater than 0")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.Key == "" {
			return fmt.Errorf("storage.s3.key is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}
	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when Kafka is enabled")
		}
	}
	if cfg.Storage.Redis.Enabled {
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required when Redis is enabled")
		}
		if cfg.Storage.Redis.Key == "" {
			return fmt.Errorf("storage.redis.key is required when Redis is enabled")
		}
	}
	if cfg.Storage.Retry.MaxAttempts == 0 {
		return fmt.Errorf("storage.retry.max_attempts must be greater than 0")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

// WorkspacePath joins p onto the workspace unless p is already absolute.
func (c *Config) WorkspacePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace, p)
}

// LockPath returns the advisory lock file guarding the published output.
func (c *Config) LockPath() string {
	if c.Output.LockPath != "" {
		return c.Output.LockPath
	}
	return c.Output.Path + ".lock"
}
