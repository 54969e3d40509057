package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig `mapstructure:"log"`
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Mastery   MasteryConfig   `mapstructure:"mastery"`
	Grading   GradingConfig   `mapstructure:"grading"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	AutoMigrate bool   `mapstructure:"-"`
	Path        string `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	SSLMode   string `mapstructure:"sslmode"`
	ParseTime bool   `mapstructure:"parse_time"`
	LogLevel  string `mapstructure:"log_level"`

	PoolSize        int           `mapstructure:"pool_size"`
	MaxOverflow     int           `mapstructure:"max_overflow"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MaxOpenConns 连接池上限 = 常驻连接 + 溢出连接
func (d DatabaseConfig) MaxOpenConns() int {
	return d.PoolSize + d.MaxOverflow
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	ServiceName       string `mapstructure:"service_name"`
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// LogConfig 日志级别为空时 debug 模式输出 debug，其余 info
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ProviderConfig 单个 LLM 供应商的连接参数
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type LLMConfig struct {
	Provider    string         `mapstructure:"provider"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	MaxTokens   int            `mapstructure:"max_tokens"`
	Temperature float64        `mapstructure:"temperature"`
	OpenAI      ProviderConfig `mapstructure:"openai"`
	Anthropic   ProviderConfig `mapstructure:"anthropic"`
	Gemini      ProviderConfig `mapstructure:"gemini"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

type MasteryConfig struct {
	TierAThreshold float64        `mapstructure:"tier_a_threshold"`
	TierBThreshold float64        `mapstructure:"tier_b_threshold"`
	Windows        map[string]int `mapstructure:"windows"`
	StreakTarget   int            `mapstructure:"streak_target_days"`
	ActivityWindow int            `mapstructure:"activity_window_days"`
}

type GradingConfig struct {
	DefaultLatePenalty    float64       `mapstructure:"default_late_penalty"`
	AIConfidenceThreshold float64       `mapstructure:"ai_confidence_threshold"`
	AIGradingTimeout      time.Duration `mapstructure:"ai_grading_timeout"`
}

type AnalyticsConfig struct {
	StrugglingThreshold float64       `mapstructure:"struggling_threshold"`
	TrendWindowDays     int           `mapstructure:"trend_window_days"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
}

type RAGConfig struct {
	TopK         int     `mapstructure:"top_k"`
	MinScore     float64 `mapstructure:"min_score"`
	HistoryLimit int     `mapstructure:"history_limit"`
}

type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	AutoCloseInterval string `mapstructure:"auto_close_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.max_overflow", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./uploads")

	v.SetDefault("tracing.service_name", "ai-mentor-backend")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("llm.gemini.model", "gemini-2.5-flash")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")

	v.SetDefault("mastery.tier_a_threshold", 80)
	v.SetDefault("mastery.tier_b_threshold", 50)
	v.SetDefault("mastery.windows", map[string]int{
		"formative":  5,
		"practice":   3,
		"diagnostic": 1,
		"summative":  0,
	})
	v.SetDefault("mastery.streak_target_days", 7)
	v.SetDefault("mastery.activity_window_days", 14)

	v.SetDefault("grading.default_late_penalty", 0.8)
	v.SetDefault("grading.ai_confidence_threshold", 0.7)
	v.SetDefault("grading.ai_grading_timeout", 90*time.Second)

	v.SetDefault("analytics.struggling_threshold", 0.4)
	v.SetDefault("analytics.trend_window_days", 30)
	v.SetDefault("analytics.cache_ttl", 5*time.Minute)

	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.min_score", 0.3)
	v.SetDefault("rag.history_limit", 10)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.auto_close_interval", "5m")

	v.SetDefault("log.file", "logs/ai_mentor.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load(filepath.Join(path, "..", ".env"))
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("AI_MENTOR")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// LLM
	v.BindEnv("llm.provider", "LLM_PROVIDER")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY", "OPENAI_API_KEY")

	// Storage / OSS
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Path = v.ConfigFileUsed()
	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 校验互相依赖的配置项
func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Database.PoolSize <= 0 {
		return errors.New("database.pool_size must be positive")
	}
	if c.Database.MaxOverflow < 0 {
		return errors.New("database.max_overflow cannot be negative")
	}

	if c.Mastery.TierBThreshold >= c.Mastery.TierAThreshold {
		return fmt.Errorf("mastery thresholds out of order: B=%.1f must be below A=%.1f",
			c.Mastery.TierBThreshold, c.Mastery.TierAThreshold)
	}

	if c.Grading.DefaultLatePenalty <= 0 || c.Grading.DefaultLatePenalty > 1 {
		return fmt.Errorf("grading.default_late_penalty must be in (0, 1], got %.2f", c.Grading.DefaultLatePenalty)
	}
	if c.Grading.AIConfidenceThreshold < 0 || c.Grading.AIConfidenceThreshold > 1 {
		return fmt.Errorf("grading.ai_confidence_threshold must be in [0, 1], got %.2f", c.Grading.AIConfidenceThreshold)
	}

	return nil
}
