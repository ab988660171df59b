package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret = "change-me-jwt-secret"
	defaultTimezone  = "UTC"
)

// Config holds all runtime configuration values.
type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	AppPort  string `mapstructure:"APP_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Timezone string `mapstructure:"APP_TIMEZONE"`

	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns  int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns  int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnLifetime  string `mapstructure:"DB_CONN_MAX_LIFETIME"`
	DBAutoMigrate   bool   `mapstructure:"DB_AUTO_MIGRATE"`
	RequestTimeout  string `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout string `mapstructure:"SHUTDOWN_TIMEOUT"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTTTL    string `mapstructure:"JWT_TTL"`

	TaxRateBps                 int    `mapstructure:"BOOKING_TAX_RATE_BPS"`
	ChildWeightPercent         int    `mapstructure:"BOOKING_CHILD_WEIGHT_PERCENT"`
	DownPaymentOptions         string `mapstructure:"BOOKING_DP_OPTIONS"`
	WeekendDays                string `mapstructure:"BOOKING_WEEKEND_DAYS"`
	RequireFullPaymentCheckout bool   `mapstructure:"BOOKING_REQUIRE_FULL_PAYMENT_FOR_CHECKOUT"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	QuoteCacheTTL string `mapstructure:"QUOTE_CACHE_TTL"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
	MetricsPath    string `mapstructure:"METRICS_PATH"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and the process environment, in increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.AppEnv) == "" {
		cfg.AppEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_TIMEZONE", defaultTimezone)

	v.SetDefault("DATABASE_URL", "propertybook.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("BOOKING_TAX_RATE_BPS", 0)
	v.SetDefault("BOOKING_CHILD_WEIGHT_PERCENT", 50)
	v.SetDefault("BOOKING_DP_OPTIONS", "30,50,70,100")
	v.SetDefault("BOOKING_WEEKEND_DAYS", "saturday,sunday")
	v.SetDefault("BOOKING_REQUIRE_FULL_PAYMENT_FOR_CHECKOUT", false)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("QUOTE_CACHE_TTL", "5m")

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "propertybook.events")

	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	for name, raw := range map[string]string{
		"DB_CONN_MAX_LIFETIME": c.DBConnLifetime,
		"REQUEST_TIMEOUT":      c.RequestTimeout,
		"SHUTDOWN_TIMEOUT":     c.ShutdownTimeout,
		"JWT_TTL":              c.JWTTTL,
		"QUOTE_CACHE_TTL":      c.QuoteCacheTTL,
	} {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.TaxRateBps < 0 || c.TaxRateBps > 10000 {
		return fmt.Errorf("BOOKING_TAX_RATE_BPS must be within 0..10000")
	}
	if c.ChildWeightPercent < 0 || c.ChildWeightPercent > 100 {
		return fmt.Errorf("BOOKING_CHILD_WEIGHT_PERCENT must be within 0..100")
	}
	if _, err := c.DownPaymentPercentages(); err != nil {
		return err
	}
	if _, err := c.WeekendWeekdays(); err != nil {
		return err
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}

	if c.IsProduction() {
		if isEmptyOrDefault(c.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production" || c.AppEnv == "release"
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DownPaymentPercentages parses BOOKING_DP_OPTIONS ("30,50,70,100").
func (c *Config) DownPaymentPercentages() ([]int, error) {
	var out []int
	for _, part := range strings.Split(c.DownPaymentOptions, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 || n > 100 {
			return nil, fmt.Errorf("invalid BOOKING_DP_OPTIONS entry %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("BOOKING_DP_OPTIONS must not be empty")
	}
	return out, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeekendWeekdays parses BOOKING_WEEKEND_DAYS ("saturday,sunday").
func (c *Config) WeekendWeekdays() ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(c.WeekendDays, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		d, ok := weekdayNames[part]
		if !ok {
			return nil, fmt.Errorf("invalid BOOKING_WEEKEND_DAYS entry %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) ConnMaxLifetime() time.Duration         { return mustDuration(c.DBConnLifetime) }
func (c *Config) RequestTimeoutDuration() time.Duration  { return mustDuration(c.RequestTimeout) }
func (c *Config) ShutdownTimeoutDuration() time.Duration { return mustDuration(c.ShutdownTimeout) }
func (c *Config) JWTTTLDuration() time.Duration          { return mustDuration(c.JWTTTL) }
func (c *Config) QuoteCacheTTLDuration() time.Duration   { return mustDuration(c.QuoteCacheTTL) }

// mustDuration is only called after Validate has accepted the value.
func mustDuration(raw string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(raw))
	return d
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
