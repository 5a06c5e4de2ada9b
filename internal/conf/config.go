package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/minio"
	"github.com/lk2023060901/agent-chat/internal/pkg/redis"
)

// EnvPrefix 环境变量前缀，例如 AGENT_CHAT_UPSTREAM_BASE_URL
const EnvPrefix = "AGENT_CHAT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Upload    UploadConfig    `mapstructure:"upload"`
	MinIO     minio.Config    `mapstructure:"minio"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       logger.Config   `mapstructure:"log"`
	Client    ClientConfig    `mapstructure:"client"`
	DevAgent  DevAgentConfig  `mapstructure:"devagent"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug | release | test
}

// Addr host:port
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UpstreamConfig 上游智能体服务
type UpstreamConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	ChatPath              string        `mapstructure:"chat_path"`
	UploadPath            string        `mapstructure:"upload_path"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	UploadTimeout         time.Duration `mapstructure:"upload_timeout"`
	ResultPrefixes        []string      `mapstructure:"result_prefixes"`
}

// UploadConfig 上传校验和存储
type UploadConfig struct {
	Backend           string        `mapstructure:"backend"` // upstream | minio
	MaxSize           int64         `mapstructure:"max_size"`
	MaxFiles          int           `mapstructure:"max_files"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	Workers           int           `mapstructure:"workers"`
	PresignExpiry     time.Duration `mapstructure:"presign_expiry"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	redis.Config `mapstructure:",squash"`
}

type RateLimitConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxRequests   int    `mapstructure:"max_requests"`
	WindowSeconds int    `mapstructure:"window_seconds"`
	Strategy      string `mapstructure:"strategy"` // ip | endpoint
}

// ClientConfig 命令行客户端
type ClientConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	ThreadID  string        `mapstructure:"thread_id"`
	Mode      string        `mapstructure:"mode"`
	WorkMode  string        `mapstructure:"work_mode"`
	Timeout   time.Duration `mapstructure:"timeout"`
	LogLevel  string        `mapstructure:"log_level"`
}

// DevAgentConfig 本地开发用的上游
type DevAgentConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Backend    string        `mapstructure:"backend"` // mock | openai
	UploadDir  string        `mapstructure:"upload_dir"`
	TokenDelay time.Duration `mapstructure:"token_delay"`
	OpenAI     OpenAIConfig  `mapstructure:"openai"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// SetDefaults 注册所有默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("upstream.base_url", "http://localhost:8000")
	v.SetDefault("upstream.chat_path", "/chat/stream")
	v.SetDefault("upstream.upload_path", "/upload")
	v.SetDefault("upstream.dial_timeout", 10*time.Second)
	v.SetDefault("upstream.response_header_timeout", 60*time.Second)
	v.SetDefault("upstream.upload_timeout", 2*time.Minute)
	v.SetDefault("upstream.result_prefixes", []string{"/pest_results", "/cow_results", "/rice_results"})

	v.SetDefault("upload.backend", "upstream")
	v.SetDefault("upload.max_size", 10<<20)
	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.allowed_extensions", []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"})
	v.SetDefault("upload.workers", 4)
	v.SetDefault("upload.presign_expiry", 24*time.Hour)

	mc := minio.DefaultConfig()
	v.SetDefault("minio.endpoint", mc.Endpoint)
	v.SetDefault("minio.access_key_id", mc.AccessKeyID)
	v.SetDefault("minio.secret_access_key", mc.SecretAccessKey)
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", mc.Bucket)
	v.SetDefault("minio.prefix", mc.Prefix)
	v.SetDefault("minio.connect_timeout", mc.ConnectTimeout)

	rc := redis.DefaultConfig()
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("redis.addr", rc.Addr)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", rc.DB)
	v.SetDefault("redis.pool_size", rc.PoolSize)
	v.SetDefault("redis.min_idle_conns", rc.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("redis.write_timeout", rc.WriteTimeout)
	v.SetDefault("redis.pool_timeout", rc.PoolTimeout)
	v.SetDefault("redis.max_retries", rc.MaxRetries)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.strategy", "ip")

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.enable_caller", lc.EnableCaller)
	v.SetDefault("log.enable_stacktrace", lc.EnableStacktrace)
	v.SetDefault("log.file.filename", lc.File.Filename)
	v.SetDefault("log.file.max_size", lc.File.MaxSize)
	v.SetDefault("log.file.max_age", lc.File.MaxAge)
	v.SetDefault("log.file.max_backups", lc.File.MaxBackups)
	v.SetDefault("log.file.compress", lc.File.Compress)

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.thread_id", "")
	v.SetDefault("client.mode", "auto")
	v.SetDefault("client.work_mode", "")
	v.SetDefault("client.timeout", 10*time.Minute)
	v.SetDefault("client.log_level", "warn")

	v.SetDefault("devagent.host", "0.0.0.0")
	v.SetDefault("devagent.port", 8000)
	v.SetDefault("devagent.backend", "mock")
	v.SetDefault("devagent.upload_dir", "uploads")
	v.SetDefault("devagent.token_delay", 30*time.Millisecond)
	v.SetDefault("devagent.openai.api_key", "")
	v.SetDefault("devagent.openai.base_url", "")
	v.SetDefault("devagent.openai.model", "gpt-4o-mini")
	v.SetDefault("devagent.openai.system_prompt", "")
}

// New 创建带默认值和环境变量绑定的 viper 实例
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig 读取 .env、配置文件（可选）和环境变量
//
// path 为空或文件不存在时只使用默认值和环境变量。
func LoadConfig(path string) (*Config, error) {
	v := New()
	if err := ReadInto(v, path); err != nil {
		return nil, err
	}
	return Unmarshal(v)
}

// ReadInto 把 .env 和配置文件读进 v，供 cobra 绑定 flag 后复用
func ReadInto(v *viper.Viper, path string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Unmarshal 解析并校验配置
func Unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 只校验会被用到的部分
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required")
	}
	switch c.Upload.Backend {
	case "upstream":
	case "minio":
		if err := c.MinIO.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid upload.backend %q, must be 'upstream' or 'minio'", c.Upload.Backend)
	}
	if c.Upload.MaxSize <= 0 {
		return errors.New("upload.max_size must be greater than 0")
	}
	if c.Upload.Workers <= 0 {
		return errors.New("upload.workers must be greater than 0")
	}
	if c.Redis.Enabled {
		if err := c.Redis.Config.Validate(); err != nil {
			return err
		}
	}
	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return errors.New("rate_limit requires redis.enabled")
	}
	switch c.DevAgent.Backend {
	case "mock", "openai":
	default:
		return fmt.Errorf("invalid devagent.backend %q, must be 'mock' or 'openai'", c.DevAgent.Backend)
	}
	return c.Log.Validate()
}
