package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"bulk-email-sender/models"

	"github.com/joho/godotenv"
)

var AppConfig models.Config

// Init loads .env and the environment into AppConfig.
func Init() {
	_ = godotenv.Load()
	AppConfig = Load()
}

// Load builds the configuration from environment variables.
func Load() models.Config {
	var cfg models.Config

	cfg.Email.SMTPServer = getEnv("SMTP_SERVER", "smtp.gmail.com")
	cfg.Email.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.Email.Email = getEnv("SENDER_EMAIL", "")
	cfg.Email.Password = getEnv("SENDER_PASSWORD", "")
	cfg.Email.SenderName = getEnv("SENDER_NAME", "")
	cfg.Email.Provider = strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp"))
	cfg.Email.InsecureSkipVerify = getEnvBool("SMTP_INSECURE_SKIP_VERIFY", false)

	cfg.Email.Subject = getEnv("EMAIL_SUBJECT", "We Match You With Capable Professionals")
	cfg.Email.CompanyName = getEnv("COMPANY_NAME", "")
	cfg.Email.LogoURL = getEnv("LOGO_URL", "")
	cfg.Email.TemplateFile = getEnv("TEMPLATE_FILE", "")

	cfg.Email.MailgunDomain = getEnv("MAILGUN_DOMAIN", "")
	cfg.Email.MailgunAPIKey = getEnv("MAILGUN_API_KEY", "")
	cfg.Email.MailgunEU = getEnvBool("MAILGUN_EU", false)

	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", "")
	cfg.Email.ResendFromEmail = getEnv("RESEND_FROM_EMAIL", "")

	cfg.Server.ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	cfg.Server.Username = getEnv("APP_USERNAME", "admin")
	cfg.Server.Password = getEnv("APP_PASSWORD", "")
	cfg.Server.SessionTTL = time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.Server.LogFormat = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
