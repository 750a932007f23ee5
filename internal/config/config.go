// Package config resolves runtime settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv        string
	Port          string
	LogLevel      string
	LogFormat     string
	Timezone      string
	PublicBaseURL string

	JWTSecret       string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	CORSOrigins     []string
	TrustedProxies  []string
	DefaultQuota    int
	FallbackAdmin   string
	SubmitPerMinute int
	LoginPerMinute  int

	DB struct {
		Host        string
		Port        string
		User        string
		Password    string
		Name        string
		SSLMode     string
		AutoMigrate bool
	}

	RedisURL string

	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}

	Kafka struct {
		Brokers []string
		Topic   string
	}

	Storage struct {
		Driver      string
		LocalDir    string
		S3Endpoint  string
		S3Region    string
		S3Bucket    string
		S3AccessKey string
		S3SecretKey string
		S3PublicURL string
	}

	location *time.Location
}

var defaults = map[string]interface{}{
	"APP_ENV":                      "development",
	"PORT":                         "8080",
	"LOG_LEVEL":                    "info",
	"LOG_FORMAT":                   "",
	"TIMEZONE":                     "Asia/Bangkok",
	"PUBLIC_BASE_URL":              "http://localhost:5173",
	"JWT_SECRET":                   "",
	"JWT_ACCESS_TTL":               "24h",
	"JWT_REFRESH_TTL":              "168h",
	"CORS_ALLOWED_ORIGINS":         "http://localhost:5173,http://127.0.0.1:5173",
	"TRUSTED_PROXIES":              "",
	"DEFAULT_QUOTA_HOURS":          40,
	"FALLBACK_ADMIN_EMAIL":         "",
	"RATE_LIMIT_SUBMIT_PER_MINUTE": 10,
	"RATE_LIMIT_LOGIN_PER_MINUTE":  5,
	"DB_HOST":                      "localhost",
	"DB_PORT":                      "5432",
	"DB_USER":                      "postgres",
	"DB_PASSWORD":                  "postgres",
	"DB_NAME":                      "visit_tracker",
	"DB_SSLMODE":                   "disable",
	"DB_AUTO_MIGRATE":              false,
	"REDIS_URL":                    "",
	"SMTP_HOST":                    "",
	"SMTP_PORT":                    587,
	"SMTP_USERNAME":                "",
	"SMTP_PASSWORD":                "",
	"SMTP_FROM":                    "",
	"KAFKA_BROKERS":                "",
	"KAFKA_TOPIC":                  "visit-events",
	"STORAGE_DRIVER":               "local",
	"STORAGE_LOCAL_DIR":            "uploads",
	"S3_ENDPOINT":                  "",
	"S3_REGION":                    "us-east-1",
	"S3_BUCKET":                    "",
	"S3_ACCESS_KEY":                "",
	"S3_SECRET_KEY":                "",
	"S3_PUBLIC_URL":                "",
}

// devJWTSecret is only accepted outside production.
const devJWTSecret = "dev-insecure-jwt-secret"

// Load reads configs/.env and .env (both optional) and then the process environment,
// which always wins.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:          v.GetString("APP_ENV"),
		Port:            v.GetString("PORT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		Timezone:        v.GetString("TIMEZONE"),
		PublicBaseURL:   strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTAccessTTL:    v.GetDuration("JWT_ACCESS_TTL"),
		JWTRefreshTTL:   v.GetDuration("JWT_REFRESH_TTL"),
		CORSOrigins:     SplitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:  SplitList(v.GetString("TRUSTED_PROXIES")),
		DefaultQuota:    v.GetInt("DEFAULT_QUOTA_HOURS"),
		FallbackAdmin:   v.GetString("FALLBACK_ADMIN_EMAIL"),
		SubmitPerMinute: v.GetInt("RATE_LIMIT_SUBMIT_PER_MINUTE"),
		LoginPerMinute:  v.GetInt("RATE_LIMIT_LOGIN_PER_MINUTE"),
		RedisURL:        v.GetString("REDIS_URL"),
	}

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.DB.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")

	cfg.Kafka.Brokers = SplitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")

	cfg.Storage.Driver = v.GetString("STORAGE_DRIVER")
	cfg.Storage.LocalDir = v.GetString("STORAGE_LOCAL_DIR")
	cfg.Storage.S3Endpoint = v.GetString("S3_ENDPOINT")
	cfg.Storage.S3Region = v.GetString("S3_REGION")
	cfg.Storage.S3Bucket = v.GetString("S3_BUCKET")
	cfg.Storage.S3AccessKey = v.GetString("S3_ACCESS_KEY")
	cfg.Storage.S3SecretKey = v.GetString("S3_SECRET_KEY")
	cfg.Storage.S3PublicURL = v.GetString("S3_PUBLIC_URL")

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		problems = append(problems, "JWT_SECRET is required in production")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		problems = append(problems, "DB_HOST and DB_NAME are required")
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		problems = append(problems, "JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			problems = append(problems, "S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if c.DefaultQuota < 0 {
		problems = append(problems, "DEFAULT_QUOTA_HOURS must not be negative")
	}
	if c.SubmitPerMinute <= 0 || c.LoginPerMinute <= 0 {
		problems = append(problems, "rate limits must be positive")
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			problems = append(problems, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Location is the zone used for "today" and for naive date-times sent by clients.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DSN is the gorm/pgx connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

// DatabaseURL is the lib/pq URL used by the migration runner.
func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
