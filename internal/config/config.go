package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPAddr      string
	DBUser        string
	DBPassword    string
	DBName        string
	DBHost        string
	DBPort        string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	HFAPIKey string
	HFModel  string

	FlwPublicKey     string
	FlwSecretKey     string
	FlwWebhookSecret string
	FlwAllowedIPs    []string // CIDR allowlist for webhook callers; empty allows all

	SubscriptionAmount       float64
	SubscriptionCurrency     string
	SubscriptionDurationDays int

	TelegramBotToken    string
	TelegramAdminChatID int64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	}

	return &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":5000"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "moodjournal"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		HFAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
		HFModel:  getEnv("HUGGINGFACE_MODEL", "j-hartmann/emotion-english-distilroberta-base"),

		FlwPublicKey:     getEnv("FLW_PUBLIC_KEY", ""),
		FlwSecretKey:     getEnv("FLW_SECRET_KEY", ""),
		FlwWebhookSecret: getEnv("FLW_WEBHOOK_SECRET", ""),
		FlwAllowedIPs:    getEnvList("FLW_ALLOWED_IPS"),

		SubscriptionAmount:       getEnvFloat("SUBSCRIPTION_AMOUNT", 2000),
		SubscriptionCurrency:     getEnv("SUBSCRIPTION_CURRENCY", "NGN"),
		SubscriptionDurationDays: getEnvInt("SUBSCRIPTION_DURATION_DAYS", 365),

		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: getEnvInt64("TELEGRAM_ADMIN_CHAT_ID", 0),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using fallback")
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using fallback")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number in environment, using fallback")
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
