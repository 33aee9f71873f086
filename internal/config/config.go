package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	RedisAddr     string // 空ならカートはPostgresに保存
	RedisPassword string
	RedisDB       int
	CartTTL       time.Duration // Redis上のカートの有効期限

	ShippingFlatFee       decimal.Decimal // 送料（固定）
	FreeShippingThreshold decimal.Decimal // 0なら無効
	Currency              string

	PaymentWebhookSecret string // 決済コールバックの署名検証キー
	LoginPath            string // 未ログイン時のリダイレクト先

	LoginRatePerMinute int // IPごとのログイン試行回数（0で無制限）
}

// Loadは環境変数から設定を読む
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := atoiDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cartTTL, err := durationDefault("CART_TTL", 30*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	flatFee, err := decimalDefault("SHIPPING_FLAT_FEE", decimal.NewFromInt(100))
	if err != nil {
		return Config{}, err
	}
	threshold, err := decimalDefault("FREE_SHIPPING_THRESHOLD", decimal.Zero)
	if err != nil {
		return Config{}, err
	}

	loginRate, err := atoiDefault("LOGIN_RATE_PER_MINUTE", 10)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CartTTL:       cartTTL,

		ShippingFlatFee:       flatFee,
		FreeShippingThreshold: threshold,
		Currency:              getenv("CURRENCY", "INR"),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		LoginPath:            getenv("LOGIN_PATH", "/login"),

		LoginRatePerMinute: loginRate,
	}

	//必須チェック
	if os.Getenv("DATABASE_URL") == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaymentWebhookSecret == "" {
		return Config{}, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if cfg.ShippingFlatFee.IsNegative() {
		return Config{}, fmt.Errorf("SHIPPING_FLAT_FEE must not be negative")
	}
	if cfg.FreeShippingThreshold.IsNegative() {
		return Config{}, fmt.Errorf("FREE_SHIPPING_THRESHOLD must not be negative")
	}

	return cfg, nil
}

func (c Config) ShippingPolicy() model.ShippingPolicy {
	return model.ShippingPolicy{
		FlatFee:   c.ShippingFlatFee,
		FreeAbove: c.FreeShippingThreshold,
	}
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func decimalDefault(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	return d, nil
}
