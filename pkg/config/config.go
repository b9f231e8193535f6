package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPersona is the system prompt installed when no personality
// has been configured yet.
const DefaultPersona = `You are Maya, a caring and empathetic AI companion. Your role is to:
1. Engage in friendly conversation
2. Provide supportive and thoughtful responses
3. Help users with their questions and concerns
4. Keep responses concise but meaningful
5. Maintain a warm and approachable tone

Remember to:
- Be empathetic and understanding
- Stay positive and encouraging
- Keep responses under 150 tokens for regular users
- Provide more detailed responses up to 300 tokens for premium users`

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Redis configuration (optional, used for message deduplication)
	Redis struct {
		Addr     string
		Password string
		DB       int
		DedupTTL time.Duration
	}

	// AI backend configuration
	AI struct {
		Provider    string // "deepseek", "openai" or "gemini"
		InitTimeout time.Duration
	}

	// Bot tunables governing the session engine
	Bot struct {
		MaxRetries       int
		RateLimitCalls   int
		RateLimitPeriod  time.Duration
		BackoffBase      time.Duration
		BackoffFloor     time.Duration
		BackoffCeiling   time.Duration
		ContextMessages  int
		DefaultMaxTokens int
		PremiumMaxTokens int
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "companion")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_ADDR", "")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)
		instance.Redis.DedupTTL = getEnvDuration("REDIS_DEDUP_TTL", 24*time.Hour)

		// AI backend config
		instance.AI.Provider = getEnvString("AI_PROVIDER", "deepseek")
		instance.AI.InitTimeout = getEnvDuration("AI_INIT_TIMEOUT", 30*time.Second)

		// Bot tunables
		instance.Bot.MaxRetries = getEnvInt("BOT_MAX_RETRIES", 3)
		instance.Bot.RateLimitCalls = getEnvInt("BOT_RATE_LIMIT_CALLS", 30)
		instance.Bot.RateLimitPeriod = getEnvDuration("BOT_RATE_LIMIT_PERIOD", 60*time.Second)
		instance.Bot.BackoffBase = getEnvDuration("BOT_BACKOFF_BASE", 1*time.Second)
		instance.Bot.BackoffFloor = getEnvDuration("BOT_BACKOFF_FLOOR", 4*time.Second)
		instance.Bot.BackoffCeiling = getEnvDuration("BOT_BACKOFF_CEILING", 10*time.Second)
		instance.Bot.ContextMessages = getEnvInt("BOT_CONTEXT_MESSAGES", 5)
		instance.Bot.DefaultMaxTokens = getEnvInt("BOT_DEFAULT_MAX_TOKENS", 150)
		instance.Bot.PremiumMaxTokens = getEnvInt("BOT_PREMIUM_MAX_TOKENS", 300)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
