package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the full server configuration, loaded from environment
// variables (plus an optional .env file) and Docker-secret files for
// credentials.
type Config struct {
	Env       string `envconfig:"ENV" default:"production"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	JWTSecret string // loaded from secret file / JWT_SECRET

	// Token lifetimes
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	// PostgreSQL
	DBHost      string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string        `envconfig:"DB_PORT" default:"5432"`
	DBUser      string        `envconfig:"DB_USER" default:"postgres"`
	DBName      string        `envconfig:"DB_NAME" default:"storyweaver_db"`
	DBSSLMode   string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns  int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTime  time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBPassword  string        // loaded from secret file / DB_PASSWORD
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" default:"true"`

	// Redis (refresh token storage)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string // loaded from secret file / REDIS_PASSWORD, optional

	// RabbitMQ (chapter event fan-out); empty URL disables publishing
	RabbitMQURL       string `envconfig:"RABBITMQ_URL" default:""`
	ChapterEventQueue string `envconfig:"CHAPTER_EVENT_QUEUE" default:"story.chapter.events"`

	// Text generation backend: "openai" (OpenAI-compatible API) or "ollama"
	AIBackend     string        `envconfig:"AI_BACKEND" default:"openai"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.8"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"500"`
	OllamaHost    string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	AIAPIKey      string        // loaded from secret file / AI_API_KEY

	// Emotion classification (HuggingFace inference API)
	EmotionAPIURL  string        `envconfig:"EMOTION_API_URL" default:"https://api-inference.huggingface.co/models/j-hartmann/emotion-english-distilroberta-base"`
	EmotionTimeout time.Duration `envconfig:"EMOTION_TIMEOUT" default:"15s"`
	EmotionAPIKey  string        // loaded from secret file / HUGGINGFACE_API_KEY

	// CORS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// MaskedDSN returns the DSN with the password replaced, for logging.
func (c *Config) MaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}

// GetAllowedOrigins splits the configured CORS origin list.
func (c *Config) GetAllowedOrigins() []string {
	raw := strings.TrimSpace(c.CORSAllowedOrigins)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// Load reads configuration from the environment, optionally preloading a
// .env file, and resolves credentials from Docker-secret files with an
// environment-variable fallback for local development.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	var err error
	if cfg.JWTSecret, err = readSecret("jwt_secret", "JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = readSecret("db_password", "DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.AIAPIKey, err = readSecret("ai_api_key", "AI_API_KEY"); err != nil && cfg.AIBackend != "ollama" {
		// Ollama runs locally without credentials.
		return nil, err
	}
	// Classification degrades gracefully when no key is configured, so a
	// missing secret is not fatal here.
	cfg.EmotionAPIKey, _ = readSecret("huggingface_api_key", "HUGGINGFACE_API_KEY")
	cfg.RedisPassword, _ = readSecret("redis_password", "REDIS_PASSWORD")

	return &cfg, nil
}

// readSecret reads a Docker secret file, falling back to the named
// environment variable when the file is absent.
func readSecret(secretName, envName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	if secretBytes, err := os.ReadFile(filePath); err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret != "" {
			return secret, nil
		}
	}
	if val := strings.TrimSpace(os.Getenv(envName)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("secret %s not found (checked %s and $%s)", secretName, filePath, envName)
}
