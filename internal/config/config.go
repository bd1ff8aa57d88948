package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE no depende del zoneinfo del host

	"github.com/joho/godotenv"
)

// Config agrupa toda la configuración del servicio, leída desde env.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Stripe    StripeConfig
	Mail      MailConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cron      CronConfig
	Google    GoogleOAuthConfig
	CORS      CORSConfig
	Log       LogConfig
}

type AppConfig struct {
	Name              string
	PublicURL         string
	Timezone          string
	CommissionPercent float64
	ReferralRewardCts int64
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	Workers      int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Capacity      int
	RefillPerSec  float64
	AuthCapacity  int
	AuthRefillSec float64
}

type CronConfig struct {
	Secret  string
	Enabled bool
}

type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Load lee .env (si existe) y después las variables de entorno.
func Load() (*Config, error) {
	// .env es opcional: en producción todo viene del entorno.
	_ = godotenv.Load(".env")

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default es la config sin ningún env: memoria, modo dev, sin integraciones.
// La usan los tests y el router cuando no recibe config.
func Default() *Config {
	return build(func(string) string { return "" })
}

// FromEnv lee el entorno del proceso sin validar.
func FromEnv() *Config {
	return build(os.Getenv)
}

func build(lookup func(string) string) *Config {
	getEnv := func(key, def string) string { return envString(lookup, key, def) }
	getIntEnv := func(key string, def int) int { return envInt(lookup, key, def) }
	getFloatEnv := func(key string, def float64) float64 { return envFloat(lookup, key, def) }
	getBoolEnv := func(key string, def bool) bool { return envBool(lookup, key, def) }
	getDurationEnv := func(key string, def time.Duration) time.Duration { return envDuration(lookup, key, def) }
	getStringSliceEnv := func(key string, def []string) []string { return envStringSlice(lookup, key, def) }

	return &Config{
		App: AppConfig{
			Name:              getEnv("APP_NAME", "tailtribe"),
			PublicURL:         getEnv("APP_PUBLIC_URL", "http://localhost:3000"),
			Timezone:          getEnv("APP_TIMEZONE", "Europe/Brussels"),
			CommissionPercent: getFloatEnv("PLATFORM_COMMISSION_PERCENT", 15),
			ReferralRewardCts: int64(getIntEnv("REFERRAL_REWARD_CENTS", 1000)),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			TokenTTL: getDurationEnv("JWT_TTL", 7*24*time.Hour),
			Issuer:   getEnv("JWT_ISSUER", "tailtribe"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "eur")),
		},
		Mail: MailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("EMAIL_FROM", "no-reply@tailtribe.be"),
			FromName:     getEnv("EMAIL_FROM_NAME", "TailTribe"),
			Workers:      getIntEnv("MAIL_WORKERS", 4),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Capacity:      getIntEnv("RATE_LIMIT_CAPACITY", 60),
			RefillPerSec:  getFloatEnv("RATE_LIMIT_REFILL_PER_SEC", 1),
			AuthCapacity:  getIntEnv("RATE_LIMIT_AUTH_CAPACITY", 5),
			AuthRefillSec: getFloatEnv("RATE_LIMIT_AUTH_REFILL_PER_SEC", 0.1),
		},
		Cron: CronConfig{
			Secret:  getEnv("CRON_SECRET", ""),
			Enabled: getBoolEnv("CRON_ENABLED", false),
		},
		Google: GoogleOAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
		},
	}
}

// Validate revisa combinaciones inválidas. Los faltantes opcionales
// (Stripe, SMTP, Redis) degradan features pero no impiden arrancar.
func (c *Config) Validate() error {
	if c.App.CommissionPercent < 0 || c.App.CommissionPercent > 100 {
		return fmt.Errorf("PLATFORM_COMMISSION_PERCENT must be between 0 and 100")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if err := validateLimit("RATE_LIMIT", c.RateLimit.Capacity, c.RateLimit.RefillPerSec); err != nil {
		return err
	}
	if err := validateLimit("RATE_LIMIT_AUTH", c.RateLimit.AuthCapacity, c.RateLimit.AuthRefillSec); err != nil {
		return err
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	return nil
}

// validateLimit: la ventana remota (capacity/refill) se cuenta en ms enteros.
func validateLimit(prefix string, capacity int, refillPerSec float64) error {
	if capacity <= 0 || refillPerSec <= 0 {
		return fmt.Errorf("%s capacity and refill must be positive", prefix)
	}
	if float64(capacity)/refillPerSec < 0.001 {
		return fmt.Errorf("%s window (capacity/refill) must be at least 1ms", prefix)
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsStripeConfigured() bool {
	return c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret != ""
}

func (c *Config) IsMailConfigured() bool {
	return c.Mail.SMTPHost != "" && c.Mail.FromEmail != ""
}

func (c *Config) IsGoogleOAuthConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

func envString(lookup func(string) string, key, defaultValue string) string {
	if value := strings.TrimSpace(lookup(key)); value != "" {
		return value
	}
	return defaultValue
}

func envInt(lookup func(string) string, key string, defaultValue int) int {
	if value := lookup(key); value != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return v
		}
	}
	return defaultValue
}

func envFloat(lookup func(string) string, key string, defaultValue float64) float64 {
	if value := lookup(key); value != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func envBool(lookup func(string) string, key string, defaultValue bool) bool {
	if value := lookup(key); value != "" {
		if v, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return v
		}
	}
	return defaultValue
}

func envDuration(lookup func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := lookup(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func envStringSlice(lookup func(string) string, key string, defaultValue []string) []string {
	value := strings.TrimSpace(lookup(key))
	if value == "" {
		return defaultValue
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
