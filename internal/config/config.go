package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFeedURL   = "https://www.8world.com/api/v1/rss-outbound-feed?_format=xml&category=176"
	DefaultLLMURL    = "https://api.groq.com/openai/v1/"
	DefaultLLMModel  = "llama-3.3-70b-versatile"
	DefaultBlobKey   = "articles-cache.json"
	DefaultKVPrefix  = "pinyinfeed:"
	BackendFile      = "file"
	BackendBlob      = "blob"
	BackendKV        = "kv"
	appDirName       = "pinyinfeed"
	cacheFileName    = "articles.json"
	runLogFileName   = "runs.db"
	defaultBatchSize = 10
)

var ErrInvalid = errors.New("invalid config")

type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	MaxBodyChars int           `yaml:"max_body_chars"`
	ChunkChars   int           `yaml:"chunk_chars"`
	ForceMock    bool          `yaml:"force_mock"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RealAvailable reports whether a hosted provider will be used.
func (c LLMConfig) RealAvailable() bool {
	return !c.ForceMock && strings.TrimSpace(c.APIKey) != ""
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	FilePath  string        `yaml:"file_path"`
	BlobKey   string        `yaml:"blob_key"`
	BlobToken string        `yaml:"-"`
	KVURL     string        `yaml:"kv_url"`
	KVPrefix  string        `yaml:"kv_prefix"`
	KVTTL     time.Duration `yaml:"kv_ttl"`
}

type Config struct {
	FeedURL            string        `yaml:"feed_url"`
	FeedTTL            time.Duration `yaml:"feed_ttl"`
	ScrapeTimeout      time.Duration `yaml:"scrape_timeout"`
	LLM                LLMConfig     `yaml:"llm"`
	Cache              CacheConfig   `yaml:"cache"`
	TelegramToken      string        `yaml:"-"`
	TelegramChatID     int64         `yaml:"telegram_chat_id"`
	BatchSize          int           `yaml:"batch_size"`
	ProcessingInterval time.Duration `yaml:"refresh_interval"`
	RefreshOnStart     bool          `yaml:"refresh_on_start"`
	RunLogPath         string        `yaml:"run_log_path"`
	RunRetention       time.Duration `yaml:"run_retention"`
	CronSecret         string        `yaml:"-"`
	ServerPort         string        `yaml:"server_port"`
	LogLevel           string        `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		FeedURL:       DefaultFeedURL,
		FeedTTL:       10 * time.Minute,
		ScrapeTimeout: 10 * time.Second,
		LLM: LLMConfig{
			BaseURL:      DefaultLLMURL,
			Model:        DefaultLLMModel,
			MaxBodyChars: 2000,
			Timeout:      60 * time.Second,
		},
		Cache: CacheConfig{
			FilePath: filepath.Join(xdg.DataHome, appDirName, cacheFileName),
			BlobKey:  DefaultBlobKey,
			KVPrefix: DefaultKVPrefix,
			KVTTL:    7 * 24 * time.Hour,
		},
		BatchSize:          defaultBatchSize,
		ProcessingInterval: 6 * time.Hour,
		RunLogPath:         filepath.Join(xdg.StateHome, appDirName, runLogFileName),
		RunRetention:       30 * 24 * time.Hour,
		ServerPort:         "8080",
		LogLevel:           "info",
	}
}

// Load reads .env (if present), then the optional YAML file at path, then
// applies environment overrides. The cache backend is resolved here once.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.Cache.Backend = resolveBackend(cfg.Cache)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.FeedURL = getEnv("FEED_URL", c.FeedURL)
	c.FeedTTL = getEnvAsDuration("FEED_TTL", c.FeedTTL)
	c.ScrapeTimeout = getEnvAsDuration("SCRAPE_TIMEOUT", c.ScrapeTimeout)

	c.LLM.APIKey = getEnv("GROQ_API_KEY", getEnv("LLM_API_KEY", c.LLM.APIKey))
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxBodyChars = getEnvAsInt("LLM_MAX_BODY_CHARS", c.LLM.MaxBodyChars)
	c.LLM.ChunkChars = getEnvAsInt("LLM_CHUNK_CHARS", c.LLM.ChunkChars)
	c.LLM.ForceMock = getEnvAsBool("LLM_FORCE_MOCK", c.LLM.ForceMock)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.FilePath = getEnv("CACHE_FILE", c.Cache.FilePath)
	c.Cache.BlobKey = getEnv("BLOB_KEY", c.Cache.BlobKey)
	c.Cache.BlobToken = getEnv("BLOB_READ_WRITE_TOKEN", c.Cache.BlobToken)
	c.Cache.KVURL = getEnv("KV_URL", c.Cache.KVURL)
	c.Cache.KVPrefix = getEnv("KV_PREFIX", c.Cache.KVPrefix)
	c.Cache.KVTTL = getEnvAsDuration("KV_TTL", c.Cache.KVTTL)

	c.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnvAsInt64("TELEGRAM_CHAT_ID", c.TelegramChatID)
	c.BatchSize = getEnvAsInt("BATCH_SIZE", c.BatchSize)
	c.ProcessingInterval = getEnvAsDuration("REFRESH_INTERVAL", c.ProcessingInterval)
	c.RefreshOnStart = getEnvAsBool("REFRESH_ON_START", c.RefreshOnStart)
	c.RunLogPath = getEnv("RUN_LOG_PATH", c.RunLogPath)
	c.RunRetention = getEnvAsDuration("RUN_RETENTION", c.RunRetention)
	c.CronSecret = getEnv("CRON_SECRET", c.CronSecret)
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// resolveBackend picks the cache backend when none was named explicitly,
// preferring blob storage, then the key-value store, then the local file.
func resolveBackend(c CacheConfig) string {
	if b := strings.ToLower(strings.TrimSpace(c.Backend)); b != "" {
		return b
	}
	switch {
	case c.BlobToken != "":
		return BackendBlob
	case c.KVURL != "":
		return BackendKV
	default:
		return BackendFile
	}
}

func (c *Config) Validate() error {
	var problems []string
	switch c.Cache.Backend {
	case BackendFile:
		if c.Cache.FilePath == "" {
			problems = append(problems, "cache.file_path is required for the file backend")
		}
	case BackendBlob:
		if c.Cache.BlobToken == "" {
			problems = append(problems, "BLOB_READ_WRITE_TOKEN is required for the blob backend")
		}
	case BackendKV:
		if c.Cache.KVURL == "" {
			problems = append(problems, "KV_URL is required for the kv backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown cache backend %q (valid: file, blob, kv)", c.Cache.Backend))
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch_size must be positive")
	}
	if c.ProcessingInterval < 0 {
		problems = append(problems, "refresh_interval must not be negative")
	}
	if c.RunRetention < 0 {
		problems = append(problems, "run_retention must not be negative")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		problems = append(problems, fmt.Sprintf("server_port %q is not a number", c.ServerPort))
	}
	if c.FeedURL == "" {
		problems = append(problems, "feed_url is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// TelegramEnabled reports whether refresh digests should be posted.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
