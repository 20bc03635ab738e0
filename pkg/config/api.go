package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment   string
	Addr          string
	DatabaseURL   string
	MigrationsDir string

	JWTSecret      string
	AccessTokenTTL time.Duration
	MagicLinkTTL   time.Duration

	FreeTierLimit  int
	MaxResumeChars int
	ExcerptChars   int
	HistoryLimit   int

	GroqAPIKey     string
	GroqBaseURL    string
	GroqModel      string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	LLMAttempts    int

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("API_ADDR", ":8000"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://resumeai:resumeai@db:5432/resumeai?sslmode=disable"),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", "db/migrations"),

		JWTSecret:      GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL: time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		MagicLinkTTL:   time.Duration(GetInt("MAGIC_LINK_TTL_SECONDS", 3600)) * time.Second,

		FreeTierLimit:  GetInt("FREE_TIER_LIMIT", 3),
		MaxResumeChars: GetInt("MAX_RESUME_CHARS", 12000),
		ExcerptChars:   GetInt("RESUME_EXCERPT_CHARS", 500),
		HistoryLimit:   GetInt("ANALYSIS_HISTORY_LIMIT", 50),

		GroqAPIKey:     GetString("GROQ_API_KEY", ""),
		GroqBaseURL:    GetString("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:      GetString("GROQ_MODEL", "llama-3.1-8b-instant"),
		LLMTemperature: GetFloat("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:   GetInt("LLM_MAX_TOKENS", 2048),
		LLMTimeout:     time.Duration(GetInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		LLMAttempts:    GetInt("LLM_ATTEMPTS", 3),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
