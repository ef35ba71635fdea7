package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot and supporting services.
type Config struct {
	BotToken       string
	MySQLDSN       string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ImageSize      string
	RequestTimeout time.Duration

	TextGenerationCost  int64
	ImageGenerationCost int64

	TelegramPaymentProviderToken string
	PaymentCurrency              string
	TopUpAmountMinorUnits        int64
	PaymentProvider              string
	YooKassaShopID               string
	YooKassaSecretKey            string
	YooKassaReturnURL            string

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// ArchiveEnabled reports whether generated images should be copied to S3.
// Provider URLs expire, so archiving is on whenever a bucket is configured.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		OpenAIBaseURL:                getEnv("OPENAI_BASE_URL", ""),
		ImageSize:                    getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),
		RequestTimeout:               time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		TextGenerationCost:           getInt64("TEXT_GENERATION_COST", 500),
		ImageGenerationCost:          getInt64("IMAGE_GENERATION_COST", 2500),
		PaymentCurrency:              getEnv("PAYMENT_CURRENCY", "RUB"),
		TopUpAmountMinorUnits:        getInt64("TOPUP_AMOUNT_MINOR_UNITS", 29900),
		PaymentProvider:              strings.ToLower(getEnv("PAYMENT_PROVIDER", "telegram")),
		YooKassaShopID:               getEnv("YOOKASSA_SHOP_ID", ""),
		YooKassaSecretKey:            getEnv("YOOKASSA_SECRET_KEY", ""),
		YooKassaReturnURL:            getEnv("YOOKASSA_RETURN_URL", ""),
		AdminListenAddr:              getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:                getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:                getEnv("ADMIN_PASSWORD", "change-me"),
		S3Endpoint:                   getEnv("S3_ENDPOINT", ""),
		S3Region:                     os.Getenv("S3_REGION"),
		S3AccessKey:                  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:                  os.Getenv("S3_SECRET_KEY"),
		S3Bucket:                     os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:              os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:               getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:                     getEnv("S3_PREFIX", "generations"),
		TelegramPaymentProviderToken: os.Getenv("TELEGRAM_PAYMENT_PROVIDER_TOKEN"),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if cfg.PaymentProvider == "telegram" && cfg.TelegramPaymentProviderToken == "" {
		missing = append(missing, "TELEGRAM_PAYMENT_PROVIDER_TOKEN")
	}
	if cfg.PaymentProvider == "yookassa" {
		if cfg.YooKassaShopID == "" {
			missing = append(missing, "YOOKASSA_SHOP_ID")
		}
		if cfg.YooKassaSecretKey == "" {
			missing = append(missing, "YOOKASSA_SECRET_KEY")
		}
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// No env file is fine when everything comes from the environment.
	return nil
}
