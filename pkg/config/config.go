package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Payment   PaymentConfig
	Admission AdmissionConfig
	Storage   StorageConfig
	Summary   SummaryConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaymentConfig holds the application fee and the gateway credentials.
type PaymentConfig struct {
	FeeAmount      decimal.Decimal
	FeeAmountMinor int64
	Currency       string
	GatewayBaseURL string
	GatewaySecret  string
	PublicKey      string
	CallbackURL    string
	VerifyTimeout  time.Duration
}

// AdmissionConfig tunes application numbering and upload limits.
type AdmissionConfig struct {
	InstitutionName      string
	NumberPrefix         string
	PassportMaxBytes     int64
	DocumentMaxBytes     int64
	AllowedPhotoMIMEs    []string
	AllowedDocumentMIMEs []string
}

// StorageConfig selects where uploaded files live.
type StorageConfig struct {
	Driver          string
	LocalDir        string
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

type SummaryConfig struct {
	CacheTTL time.Duration
}

// RateLimitConfig bounds the public write endpoints per client IP.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	fee := parseDecimal(v.GetString("APPLICATION_FEE"), decimal.NewFromInt(5000))
	feeMinor := v.GetInt64("APPLICATION_FEE_MINOR")
	if feeMinor <= 0 {
		feeMinor = fee.Shift(2).Round(0).IntPart()
	}
	cfg.Payment = PaymentConfig{
		FeeAmount:      fee,
		FeeAmountMinor: feeMinor,
		Currency:       v.GetString("PAYMENT_CURRENCY"),
		GatewayBaseURL: strings.TrimRight(v.GetString("PAYSTACK_BASE_URL"), "/"),
		GatewaySecret:  v.GetString("PAYSTACK_SECRET_KEY"),
		PublicKey:      v.GetString("PAYSTACK_PUBLIC_KEY"),
		CallbackURL:    v.GetString("PAYMENT_CALLBACK_URL"),
		VerifyTimeout:  parseDuration(v.GetString("PAYSTACK_TIMEOUT"), 30*time.Second),
	}

	cfg.Admission = AdmissionConfig{
		InstitutionName:      v.GetString("INSTITUTION_NAME"),
		NumberPrefix:         v.GetString("APPLICATION_NUMBER_PREFIX"),
		PassportMaxBytes:     positiveOr(v.GetInt64("PASSPORT_MAX_FILE_SIZE"), 2*1024*1024),
		DocumentMaxBytes:     positiveOr(v.GetInt64("DOCUMENT_MAX_FILE_SIZE"), 5*1024*1024),
		AllowedPhotoMIMEs:    splitAndTrim(v.GetString("PASSPORT_ALLOWED_MIME_TYPES")),
		AllowedDocumentMIMEs: splitAndTrim(v.GetString("DOCUMENT_ALLOWED_MIME_TYPES")),
	}

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:        v.GetString("STORAGE_DIR"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Region:        v.GetString("S3_REGION"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SignedURLSecret: v.GetString("SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.Summary = SummaryConfig{
		CacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 2*time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:           v.GetBool("ENABLE_RATE_LIMIT"),
		RequestsPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		Burst:             v.GetInt("RATE_LIMIT_BURST"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admission_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APPLICATION_FEE", "5000.00")
	v.SetDefault("APPLICATION_FEE_MINOR", 0)
	v.SetDefault("PAYMENT_CURRENCY", "NGN")
	v.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	v.SetDefault("PAYSTACK_SECRET_KEY", "")
	v.SetDefault("PAYSTACK_PUBLIC_KEY", "")
	// Checkout redirects the browser without a bearer token; the portal frontend
	// receives it and relays the reference to GET /payments/verify.
	v.SetDefault("PAYMENT_CALLBACK_URL", "http://localhost:3000/payment/callback")
	v.SetDefault("PAYSTACK_TIMEOUT", "30s")

	v.SetDefault("INSTITUTION_NAME", "COLLEGE OF HEALTH SCIENCES AND TECHNOLOGY HADEJIA")
	v.SetDefault("APPLICATION_NUMBER_PREFIX", "CHSTH")
	v.SetDefault("PASSPORT_MAX_FILE_SIZE", 2*1024*1024)
	v.SetDefault("DOCUMENT_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("PASSPORT_ALLOWED_MIME_TYPES", "image/jpeg,image/png")
	v.SetDefault("DOCUMENT_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_DIR", "./media")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "admissions")
	v.SetDefault("SIGNED_URL_SECRET", "dev_files_secret")
	v.SetDefault("SIGNED_URL_TTL", "15m")

	v.SetDefault("SUMMARY_CACHE_TTL", "2m")

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 10)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseDecimal(raw string, fallback decimal.Decimal) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return fallback
	}
	return d
}

func positiveOr(value, fallback int64) int64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
