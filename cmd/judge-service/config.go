package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"codepulse/internal/common/cache"
	"codepulse/internal/common/db"
	"codepulse/internal/common/http/middleware"
	"codepulse/internal/common/mq"
	"codepulse/internal/common/storage"
	"codepulse/internal/judge/sandbox/engine"
	"codepulse/internal/judge/sandbox/spec"
	"codepulse/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	writeHeadroom          = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultScratchDir      = "temp"
	defaultSweepInterval   = 10 * time.Minute
	defaultSweepAge        = time.Hour
	defaultWorkerTimeout   = 5 * time.Minute
	defaultVerdictTopic    = "judge.verdict"
	defaultRateWindow      = time.Minute
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka settings. An empty broker list disables verdict events.
type KafkaConfig struct {
	mq.KafkaConfig `yaml:",inline"`
	VerdictTopic   string `yaml:"verdictTopic"`
}

// LimitsConfig overrides the fixed execution envelope.
type LimitsConfig struct {
	WallTime    time.Duration `yaml:"wallTime"`
	MemoryMB    int64         `yaml:"memoryMB"`
	CPUs        float64       `yaml:"cpus"`
	PIDs        int64         `yaml:"pids"`
	OutputBytes int64         `yaml:"outputBytes"`
}

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	ScratchDir    string            `yaml:"scratchDir"`
	DockerBinary  string            `yaml:"dockerBinary"`
	Images        map[string]string `yaml:"images"`
	Limits        LimitsConfig      `yaml:"limits"`
	LaunchRate    float64           `yaml:"launchRate"`
	LaunchBurst   int               `yaml:"launchBurst"`
	PullImages    bool              `yaml:"pullImages"`
	SweepInterval time.Duration     `yaml:"sweepInterval"`
	SweepAge      time.Duration     `yaml:"sweepAge"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize  int           `yaml:"poolSize"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueWait time.Duration `yaml:"queueWait"`
}

// TimeoutConfig holds collaborator timeouts.
type TimeoutConfig struct {
	Database time.Duration `yaml:"database"`
	Storage  time.Duration `yaml:"storage"`
	Status   time.Duration `yaml:"status"`
	Publish  time.Duration `yaml:"publish"`
}

// StatusConfig holds judge status tracking settings.
type StatusConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// TemplateCacheConfig holds harness cache settings.
type TemplateCacheConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	EmptyTTL  time.Duration `yaml:"emptyTTL"`
	LocalSize int           `yaml:"localSize"`
	LocalTTL  time.Duration `yaml:"localTTL"`
}

// AuthConfig enables bearer-token verification when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

// RateLimitConfig limits the execution routes per caller.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Window  time.Duration `yaml:"window"`
	UserMax int           `yaml:"userMax"`
	IPMax   int           `yaml:"ipMax"`
	Timeout time.Duration `yaml:"timeout"`
}

// RequestLimitsConfig bounds request payloads.
type RequestLimitsConfig struct {
	MaxCodeBytes    int `yaml:"maxCodeBytes"`
	MaxInputBytes   int `yaml:"maxInputBytes"`
	MaxCustomInputs int `yaml:"maxCustomInputs"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logger    logger.Config       `yaml:"logger"`
	Database  db.Config           `yaml:"database"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Kafka     KafkaConfig         `yaml:"kafka"`
	Sandbox   SandboxConfig       `yaml:"sandbox"`
	Worker    WorkerConfig        `yaml:"worker"`
	Timeouts  TimeoutConfig       `yaml:"timeouts"`
	Status    StatusConfig        `yaml:"status"`
	Templates TemplateCacheConfig `yaml:"templates"`
	Auth      AuthConfig          `yaml:"auth"`
	RateLimit RateLimitConfig     `yaml:"rateLimit"`
	Requests  RequestLimitsConfig `yaml:"requests"`
}

// loadEnvFile loads KEY=VALUE pairs into the process environment. A missing
// file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

// loadYAML parses path into out after expanding ${VAR} references.
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Sandbox.ScratchDir == "" {
		cfg.Sandbox.ScratchDir = defaultScratchDir
	}
	if cfg.Sandbox.SweepInterval == 0 {
		cfg.Sandbox.SweepInterval = defaultSweepInterval
	}
	if cfg.Sandbox.SweepAge == 0 {
		cfg.Sandbox.SweepAge = defaultSweepAge
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 1
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = defaultWorkerTimeout
	}
	// A batch holds its response until the last case, so the write deadline
	// must cover the slot wait plus the whole batch.
	batchBudget := cfg.Worker.QueueWait + cfg.Worker.Timeout
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = batchBudget + writeHeadroom
	}
	if cfg.Server.WriteTimeout <= batchBudget {
		return nil, fmt.Errorf("server writeTimeout %s must exceed worker queueWait+timeout %s", cfg.Server.WriteTimeout, batchBudget)
	}
	if cfg.Sandbox.SweepAge <= cfg.Worker.Timeout {
		return nil, fmt.Errorf("sandbox sweepAge %s must exceed worker timeout %s", cfg.Sandbox.SweepAge, cfg.Worker.Timeout)
	}
	if cfg.Kafka.VerdictTopic == "" {
		cfg.Kafka.VerdictTopic = defaultVerdictTopic
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = defaultRateWindow
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}

func (s SandboxConfig) toEngineConfig(reaper engine.Reaper) engine.Config {
	return engine.Config{
		DockerBinary: s.DockerBinary,
		LaunchRate:   s.LaunchRate,
		LaunchBurst:  s.LaunchBurst,
		Reaper:       reaper,
	}
}

func (l LimitsConfig) toResourceLimit() spec.ResourceLimit {
	return spec.ResourceLimit{
		WallTime:    l.WallTime,
		MemoryMB:    l.MemoryMB,
		CPUs:        l.CPUs,
		PIDs:        l.PIDs,
		OutputBytes: l.OutputBytes,
	}.Normalize()
}

func (r RateLimitConfig) toPolicy() middleware.RateLimitPolicy {
	return middleware.RateLimitPolicy{
		Window:  r.Window,
		UserMax: r.UserMax,
		IPMax:   r.IPMax,
	}
}
