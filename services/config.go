package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Interview InterviewConfig
	Sweeper   SweeperConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AIConfig struct {
	GeminiAPIKey string
}

// InterviewConfig carries the behavioral knobs of the orchestration engine.
// The defaults mirror the tuning the system shipped with; they are
// configuration, not derived constants.
type InterviewConfig struct {
	DefaultDurationMinutes int
	ViolationThreshold     int
	ProfanityWeight        int
	SexualWeight           int
	PoliticalWeight        int
	OffTopicWeight         int
	// ClosingThresholdPct is the percentage of the total time budget at
	// which Continue switches to the canonical closing question.
	ClosingThresholdPct int
}

type SweeperConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", "0")
	viper.SetDefault("interview.default_duration_minutes", "60")
	viper.SetDefault("interview.violation_threshold", "3")
	viper.SetDefault("interview.profanity_weight", "2")
	viper.SetDefault("interview.sexual_weight", "3")
	viper.SetDefault("interview.political_weight", "1")
	viper.SetDefault("interview.off_topic_weight", "1")
	viper.SetDefault("interview.closing_threshold_pct", "10")
	viper.SetDefault("sweeper.interval_seconds", "30")
	viper.SetDefault("sweeper.lock_ttl_seconds", "60")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("interview.default_duration_minutes", "INTERVIEW_DEFAULT_DURATION_MINUTES")
	viper.BindEnv("interview.violation_threshold", "INTERVIEW_VIOLATION_THRESHOLD")
	viper.BindEnv("interview.profanity_weight", "INTERVIEW_PROFANITY_WEIGHT")
	viper.BindEnv("interview.sexual_weight", "INTERVIEW_SEXUAL_WEIGHT")
	viper.BindEnv("interview.political_weight", "INTERVIEW_POLITICAL_WEIGHT")
	viper.BindEnv("interview.off_topic_weight", "INTERVIEW_OFF_TOPIC_WEIGHT")
	viper.BindEnv("interview.closing_threshold_pct", "INTERVIEW_CLOSING_THRESHOLD_PCT")
	viper.BindEnv("sweeper.interval_seconds", "SWEEPER_INTERVAL_SECONDS")
	viper.BindEnv("sweeper.lock_ttl_seconds", "SWEEPER_LOCK_TTL_SECONDS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		AI: AIConfig{
			GeminiAPIKey: viper.GetString("gemini.api_key"),
		},
		Interview: InterviewConfig{
			DefaultDurationMinutes: viper.GetInt("interview.default_duration_minutes"),
			ViolationThreshold:     viper.GetInt("interview.violation_threshold"),
			ProfanityWeight:        viper.GetInt("interview.profanity_weight"),
			SexualWeight:           viper.GetInt("interview.sexual_weight"),
			PoliticalWeight:        viper.GetInt("interview.political_weight"),
			OffTopicWeight:         viper.GetInt("interview.off_topic_weight"),
			ClosingThresholdPct:    viper.GetInt("interview.closing_threshold_pct"),
		},
		Sweeper: SweeperConfig{
			Interval: time.Duration(viper.GetInt("sweeper.interval_seconds")) * time.Second,
			LockTTL:  time.Duration(viper.GetInt("sweeper.lock_ttl_seconds")) * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
