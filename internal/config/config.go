package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFormat          string
	Timezone           string
	UseMemoryQueue     bool
	WorkerCount        int
	MaxConcurrency     int
	DatabaseURL        string
	SessionBackend     string
	SQLitePath         string
	SessionTTL         time.Duration
	DynamoSessionTable string
	HistoryMaxChars    int

	// Turn budget
	TurnDeadline time.Duration
	LLMTimeout   time.Duration
	CRMTimeout   time.Duration

	// LLM providers
	GeminiAPIKey    string
	GeminiModelID   string
	BedrockModelID  string
	LLMTemperature  float64
	LLMMaxTokens    int
	LLMRetryBackoff time.Duration

	// Catalog
	CatalogPath            string
	CatalogS3Bucket        string
	CatalogS3Key           string
	CatalogRefreshInterval time.Duration
	PhotoPageSize          int
	FinancingInfo          string

	// Monday.com CRM
	MondayAPIKey          string
	MondayAPIURL          string
	MondayBoardID         string
	MondayDedupeColumnID  string
	MondayLastMsgColumnID string
	MondayPhoneColumnID   string
	MondayStageColumnID   string
	MondayVehicleColumnID string
	MondayPaymentColumnID string
	MondayApptColumnID    string
	MondayTimeColumnID    string
	MondayRequestsPerSec  float64

	// Handoff & dedup
	HandoffSilence  time.Duration
	BotEchoWindow   time.Duration
	DedupCapacity   int
	RecentBotMemory int

	// Twilio WhatsApp
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWebhookSecret string
	TwilioFromNumber    string

	// Inbound surfaces
	WebhookToken      string
	WebhookRatePerSec float64
	WebhookBurst      int
	AdminAuthSecret   string

	AdvisorName string

	// AWS
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	ConversationQueueURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Lead notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SalesDeskEmail    string
	SalesDeskPhone    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		Timezone:           getEnv("TIMEZONE", "America/Mexico_City"),
		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		MaxConcurrency:     getEnvAsInt("MAX_CONCURRENT_TURNS", 16),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SessionBackend:     strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SQLitePath:         getEnv("SQLITE_PATH", "sessions.db"),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 0),
		DynamoSessionTable: getEnv("DYNAMODB_SESSION_TABLE", ""),
		HistoryMaxChars:    getEnvAsInt("HISTORY_MAX_CHARS", 4000),

		TurnDeadline: getEnvAsDuration("TURN_DEADLINE", 90*time.Second),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		CRMTimeout:   getEnvAsDuration("CRM_TIMEOUT", 25*time.Second),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),
		LLMTemperature:  getEnvAsFloat("LLM_TEMPERATURE", 0.4),
		LLMMaxTokens:    getEnvAsInt("LLM_MAX_TOKENS", 600),
		LLMRetryBackoff: getEnvAsDuration("LLM_RETRY_BACKOFF", time.Second),

		CatalogPath:            getEnv("CATALOG_PATH", ""),
		CatalogS3Bucket:        getEnv("CATALOG_S3_BUCKET", ""),
		CatalogS3Key:           getEnv("CATALOG_S3_KEY", ""),
		CatalogRefreshInterval: getEnvAsDuration("CATALOG_REFRESH_INTERVAL", 10*time.Minute),
		PhotoPageSize:          getEnvAsInt("PHOTO_PAGE_SIZE", 3),
		FinancingInfo:          getEnv("FINANCING_INFO", ""),

		MondayAPIKey:          getEnv("MONDAY_API_KEY", ""),
		MondayAPIURL:          getEnv("MONDAY_API_URL", "https://api.monday.com/v2"),
		MondayBoardID:         getEnv("MONDAY_BOARD_ID", ""),
		MondayDedupeColumnID:  getEnv("MONDAY_DEDUPE_COLUMN_ID", ""),
		MondayLastMsgColumnID: getEnv("MONDAY_LAST_MSG_ID_COLUMN_ID", ""),
		MondayPhoneColumnID:   getEnv("MONDAY_PHONE_COLUMN_ID", ""),
		MondayStageColumnID:   getEnv("MONDAY_STAGE_COLUMN_ID", ""),
		MondayVehicleColumnID: getEnv("MONDAY_VEHICLE_COLUMN_ID", ""),
		MondayPaymentColumnID: getEnv("MONDAY_PAYMENT_COLUMN_ID", ""),
		MondayApptColumnID:    getEnv("MONDAY_APPOINTMENT_COLUMN_ID", ""),
		MondayTimeColumnID:    getEnv("MONDAY_APPOINTMENT_TIME_COLUMN_ID", ""),
		MondayRequestsPerSec:  getEnvAsFloat("MONDAY_REQUESTS_PER_SEC", 5),

		HandoffSilence:  getEnvAsDuration("HANDOFF_SILENCE", 12*time.Hour),
		BotEchoWindow:   getEnvAsDuration("BOT_ECHO_WINDOW", 15*time.Second),
		DedupCapacity:   getEnvAsInt("DEDUP_CAPACITY", 5000),
		RecentBotMemory: getEnvAsInt("RECENT_BOT_MEMORY", 20),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),

		WebhookToken:      getEnv("WEBHOOK_TOKEN", ""),
		WebhookRatePerSec: getEnvAsFloat("WEBHOOK_RATE_PER_SEC", 20),
		WebhookBurst:      getEnvAsInt("WEBHOOK_BURST", 40),
		AdminAuthSecret:   getEnv("ADMIN_AUTH_SECRET", ""),

		AdvisorName: getEnv("ADVISOR_NAME", ""),

		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Asesor Digital"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SalesDeskEmail:    getEnv("SALES_DESK_EMAIL", ""),
		SalesDeskPhone:    getEnv("SALES_DESK_PHONE", ""),
	}
}

// Location resolves the configured timezone, falling back to UTC when the
// zone database does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports configuration that would leave the engine unable to answer.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" && c.BedrockModelID == "" {
		return fmt.Errorf("config: at least one LLM provider (GEMINI_API_KEY or BEDROCK_MODEL_ID) is required")
	}
	switch c.SessionBackend {
	case "memory", "redis", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: SESSION_BACKEND=postgres requires DATABASE_URL")
		}
	case "dynamodb":
		if c.DynamoSessionTable == "" {
			return fmt.Errorf("config: SESSION_BACKEND=dynamodb requires DYNAMODB_SESSION_TABLE")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if !c.UseMemoryQueue && c.ConversationQueueURL == "" {
		return fmt.Errorf("config: CONVERSATION_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if c.HistoryMaxChars <= 0 {
		return fmt.Errorf("config: HISTORY_MAX_CHARS must be positive")
	}
	return nil
}

// CRMEnabled reports whether Monday.com credentials are present.
func (c *Config) CRMEnabled() bool {
	return c.MondayAPIKey != "" && c.MondayBoardID != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
