package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string // postgres://, mysql DSN or sqlite://path
	Version     string
	LogLevel    string
	DBTimeout   int // Per-statement database timeout in seconds

	IMAPHost          string
	IMAPPort          int
	IMAPUsername      string
	IMAPPassword      string
	IMAPMailbox       string
	IMAPSkipTLSVerify bool
	IMAPTimeout       int // IMAP dial and command timeout in seconds

	OpenAIKey                string
	OpenAIModel              string
	OpenAITimeout            int // OpenAI API timeout in seconds
	AzureOpenAIKey           string
	AzureOpenAIEndpoint      string
	AzureOpenAIGPTDeployment string

	SendGridAPIKey  string
	SendGridTimeout int
	SenderEmail     string // From address used for forwards and follow-ups
	SenderName      string
	OfficeName      string // Signature used in follow-up requests
	AppBaseURL      string // Base URL of the staff UI, used for deep links

	PollIntervalMinutes   int
	RunOnStart            bool
	MaxFollowUps          int
	AIBodyMaxChars        int
	AttachmentStoragePath string
	LockFile              string
	DedupTTLMinutes       int
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DBTimeout:   getEnvInt("DB_TIMEOUT_SECONDS", 30),

		IMAPHost:          os.Getenv("IMAP_HOST"),
		IMAPPort:          getEnvInt("IMAP_PORT", 993),
		IMAPUsername:      os.Getenv("IMAP_USERNAME"),
		IMAPPassword:      os.Getenv("IMAP_PASSWORD"),
		IMAPMailbox:       getEnv("IMAP_MAILBOX", "INBOX"),
		IMAPSkipTLSVerify: getEnvBool("IMAP_TLS_SKIP_VERIFY", false),
		IMAPTimeout:       getEnvInt("IMAP_TIMEOUT_SECONDS", 30),

		OpenAIKey:                os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout:            getEnvInt("OPENAI_TIMEOUT", 60),
		AzureOpenAIKey:           os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIEndpoint:      os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIGPTDeployment: getEnv("AZURE_OPENAI_GPT_DEPLOYMENT", "gpt-4o-mini"),

		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		SendGridTimeout: getEnvInt("SENDGRID_TIMEOUT_SECONDS", 30),
		SenderEmail:     os.Getenv("SENDER_EMAIL"),
		SenderName:      getEnv("SENDER_NAME", "Segreteria"),
		OfficeName:      getEnv("OFFICE_NAME", "Lo Studio"),
		AppBaseURL:      strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),

		PollIntervalMinutes:   getEnvInt("POLL_INTERVAL_MINUTES", 5),
		RunOnStart:            getEnvBool("RUN_ON_START", true),
		MaxFollowUps:          getEnvInt("MAX_FOLLOW_UPS", 2),
		AIBodyMaxChars:        getEnvInt("AI_BODY_MAX_CHARS", 4000),
		AttachmentStoragePath: getEnv("ATTACHMENT_STORAGE_PATH", "./data/attachments"),
		LockFile:              getEnv("LOCK_FILE", os.TempDir()+"/mailtriage-cycle.lock"),
		DedupTTLMinutes:       getEnvInt("DEDUP_TTL_MINUTES", 60),
	}

	return config
}

// UseAzureOpenAI reports whether Azure OpenAI is configured as the primary provider
func (c *Config) UseAzureOpenAI() bool {
	return c.AzureOpenAIKey != "" && c.AzureOpenAIEndpoint != ""
}

// HasOpenAIFallback reports whether the OpenAI platform can be used
func (c *Config) HasOpenAIFallback() bool {
	return c.OpenAIKey != ""
}

// HasIMAP reports whether mailbox polling is configured
func (c *Config) HasIMAP() bool {
	return c.IMAPHost != "" && c.IMAPUsername != ""
}

// PollInterval returns the scheduler interval, never below one minute
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMinutes < 1 {
		return time.Minute
	}
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean with a default fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "mailtriage").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
