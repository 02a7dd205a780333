// Package auth provides login via magic link email, passkeys and API keys,
// plus the user records that carry comment usernames.
package auth

import (
	"os"
	"strconv"
	"strings"
)

// Config holds server configuration read from the environment.
type Config struct {
	AdminEmail  string // may delete any comment
	NotifyEmail string // receives new comment notifications; empty disables them
	SMTPHost    string
	SMTPPort    string
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string
	DevMode     bool
	BaseURL     string // e.g. http://localhost:8080
	DatabaseURL string // PostgreSQL DSN for comments; empty means SQLite

	RateLimitRPS   float64
	RateLimitBurst int
}

// ConfigFromEnv creates a Config from PF_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		AdminEmail:     strings.ToLower(strings.TrimSpace(os.Getenv("PF_ADMIN_EMAIL"))),
		NotifyEmail:    os.Getenv("PF_NOTIFY_EMAIL"),
		SMTPHost:       os.Getenv("PF_SMTP_HOST"),
		SMTPPort:       envOrDefault("PF_SMTP_PORT", "587"),
		SMTPUser:       os.Getenv("PF_SMTP_USER"),
		SMTPPass:       os.Getenv("PF_SMTP_PASS"),
		SMTPFrom:       os.Getenv("PF_SMTP_FROM"),
		DevMode:        os.Getenv("PF_DEV_MODE") == "true",
		BaseURL:        strings.TrimRight(envOrDefault("PF_BASE_URL", "http://localhost:8080"), "/"),
		DatabaseURL:    os.Getenv("PF_DATABASE_URL"),
		RateLimitRPS:   envFloat("PF_RATE_LIMIT_RPS", 5),
		RateLimitBurst: envInt("PF_RATE_LIMIT_BURST", 20),
	}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
