package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Firebase FirebaseConfig
	Stripe   StripeConfig
	PayPal   PayPalConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	S3       S3Config
	RabbitMQ RabbitMQConfig
	Invoice  InvoiceConfig
	Reports  ReportsConfig
	OTEL     OTELConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	BodyLimitMB    int64
	IdempotencyTTL time.Duration
}

// LogConfig holds zerolog configuration
type LogConfig struct {
	Level  string
	Format string // json, console
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// JWTConfig holds service token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// FirebaseConfig holds Firebase Admin SDK configuration
type FirebaseConfig struct {
	ProjectID   string
	PrivateKey  string // Base64 encoded
	ClientEmail string
}

// Enabled reports whether Firebase login is configured
func (f FirebaseConfig) Enabled() bool {
	return f.ProjectID != "" && f.PrivateKey != "" && f.ClientEmail != ""
}

// StripeConfig holds Stripe API credentials
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// PayPalConfig holds PayPal REST credentials
type PayPalConfig struct {
	ClientID  string
	Secret    string
	Live      bool
	ReturnURL string
	CancelURL string
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMSConfig holds SMS carrier credentials. Hubtel is tried first, mNotify is the fallback.
type SMSConfig struct {
	SenderID           string
	HubtelClientID     string
	HubtelClientSecret string
	HubtelBaseURL      string
	MNotifyAPIKey      string
	MNotifyBaseURL     string
}

// S3Config holds object storage configuration for rendered invoices
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	// PresignTTL > 0 returns signed download URLs instead of public ones
	PresignTTL time.Duration
}

// Enabled reports whether rendered invoices should be uploaded
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// RabbitMQConfig holds the notification queue configuration
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// InvoiceConfig holds invoice rendering and numbering settings
type InvoiceConfig struct {
	OutputDir      string
	TaxRate        string // percentage, parsed as decimal
	DueDays        int
	Terms          string
	CompanyName    string
	CompanyAddress string
	CompanyEmail   string
	CompanyPhone   string
}

// ReportsConfig holds reconciliation settings
type ReportsConfig struct {
	OpsEmail     string
	AnalyticsTTL time.Duration
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	InstanceID     string
	Token          string
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			BodyLimitMB:    getEnvAsInt64("BODY_LIMIT_MB", 4),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "freightdesk"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
		},
		Firebase: FirebaseConfig{
			ProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
			PrivateKey:  getEnv("FIREBASE_PRIVATE_KEY", ""),
			ClientEmail: getEnv("FIREBASE_CLIENT_EMAIL", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		PayPal: PayPalConfig{
			ClientID:  getEnv("PAYPAL_CLIENT_ID", ""),
			Secret:    getEnv("PAYPAL_CLIENT_SECRET", ""),
			Live:      getEnv("PAYPAL_MODE", "sandbox") == "live",
			ReturnURL: getEnv("PAYPAL_RETURN_URL", "http://localhost:3000/payments/paypal/return"),
			CancelURL: getEnv("PAYPAL_CANCEL_URL", "http://localhost:3000/payments/paypal/cancel"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     int(getEnvAsInt64("SMTP_PORT", 587)),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "billing@freightdesk.local"),
		},
		SMS: SMSConfig{
			SenderID:           getEnv("SMS_SENDER_ID", "FreightDesk"),
			HubtelClientID:     getEnv("HUBTEL_CLIENT_ID", ""),
			HubtelClientSecret: getEnv("HUBTEL_CLIENT_SECRET", ""),
			HubtelBaseURL:      getEnv("HUBTEL_BASE_URL", "https://smsc.hubtel.com"),
			MNotifyAPIKey:      getEnv("MNOTIFY_API_KEY", ""),
			MNotifyBaseURL:     getEnv("MNOTIFY_BASE_URL", "https://api.mnotify.com"),
		},
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "invoices"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "any"),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "any"),
			PublicURL:       getEnv("S3_PUBLIC_URL", ""),
			PresignTTL:      getEnvAsDuration("S3_PRESIGN_TTL", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_NOTIFICATION_QUEUE", "notifications"),
		},
		Invoice: InvoiceConfig{
			OutputDir:      getEnv("INVOICE_OUTPUT_DIR", "storage/invoices"),
			TaxRate:        getEnv("INVOICE_TAX_RATE", "15"),
			DueDays:        int(getEnvAsInt64("INVOICE_DUE_DAYS", 30)),
			Terms:          getEnv("INVOICE_TERMS", "Payment is due within 30 days of the invoice date."),
			CompanyName:    getEnv("COMPANY_NAME", "FreightDesk Logistics"),
			CompanyAddress: getEnv("COMPANY_ADDRESS", ""),
			CompanyEmail:   getEnv("COMPANY_EMAIL", "billing@freightdesk.local"),
			CompanyPhone:   getEnv("COMPANY_PHONE", ""),
		},
		Reports: ReportsConfig{
			OpsEmail:     getEnv("OPS_EMAIL", "operations@freightdesk.local"),
			AnalyticsTTL: getEnvAsDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),
		},
		OTEL: OTELConfig{
			Enabled:        getEnv("OTEL_ENABLED", "false") == "true",
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "freightdesk-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Invoice.DueDays <= 0 {
		return fmt.Errorf("INVOICE_DUE_DAYS must be positive")
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
