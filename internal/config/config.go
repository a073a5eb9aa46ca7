package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Twilio telephony + SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Human staff line for warm transfers.
	StaffPhoneNumber string
	// Front-desk inbox for handoff alert emails.
	StaffAlertEmail string

	// AWS (Bedrock structured extraction, SES staff alerts)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string

	// Gemini fallback extraction
	GeminiAPIKey  string
	GeminiModelID string

	// ElevenLabs conversational agent
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string

	// Oystehr EHR directory
	OystehrBaseURL   string
	OystehrAuthToken string
	OystehrProjectID string

	SESFromEmail string
	SESFromName  string

	WebhookRateLimit float64
	WebhookRateBurst int

	CallRecordTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		StaffPhoneNumber: getEnv("STAFF_PHONE_NUMBER", ""),
		StaffAlertEmail:  getEnv("STAFF_ALERT_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsAgentID: getEnv("ELEVENLABS_AGENT_ID", ""),

		OystehrBaseURL:   getEnv("OYSTEHR_API_URL", "https://fhir-api.zapehr.com/r4"),
		OystehrAuthToken: getEnv("OYSTEHR_AUTH_TOKEN", ""),
		OystehrProjectID: getEnv("OYSTEHR_PROJECT_ID", ""),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Clearsky Medical"),

		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 5),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 20),

		CallRecordTTL: getEnvAsDuration("CALL_RECORD_TTL", 24*time.Hour),
	}
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
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
