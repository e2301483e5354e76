package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"

	devJWTSecret = "dev-secret-key-change-in-production"
)

// Server is the main API configuration.
type Server struct {
	Addr                    string
	Environment             string
	LogLevel                string
	AllowedOrigins          []string
	TrustedProxies          []netip.Prefix
	JWT                     JWTConfig
	InternalToken           string
	AIEngineURL             string
	RulesFile               string
	LoginRateLimitPerMinute int
	SeedDemoData            bool
	Database                DatabaseConfig
	Redis                   RedisConfig
	Kafka                   KafkaConfig
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
	TokenTTL   time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	ClientID    string
	LedgerTopic string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// Engine is the legal-engine configuration.
type Engine struct {
	Addr               string
	Environment        string
	LogLevel           string
	AllowedOrigins     []string
	TrustedProxies     []netip.Prefix
	InternalToken      string
	RulesFile          string
	RateLimitPerMinute int
	Gemini             GeminiConfig
	Redis              RedisConfig
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	MaxOutputTokens int
	MaxRetries      int
	Timeout         time.Duration
}

// env collects parse errors so a bad deployment reports every problem at once.
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) list(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *env) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range e.list(key, nil) {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *env) require(cond bool, msg string) {
	if !cond {
		e.errs = append(e.errs, errors.New(msg))
	}
}

func (e *env) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(e.errs...))
}

var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

func redisFromEnv(e *env) RedisConfig {
	return RedisConfig{
		URL:          e.str("REDIS_URL", ""),
		PoolSize:     e.int("REDIS_POOL_SIZE", 10),
		MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

// FromEnv builds the main API config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	e := &env{}
	cfg := Server{
		Addr:           e.str("ADDR", ":8000"),
		Environment:    e.str("ENVIRONMENT", EnvLocal),
		LogLevel:       e.str("LOG_LEVEL", "info"),
		AllowedOrigins: e.list("ALLOWED_ORIGINS", defaultOrigins),
		TrustedProxies: e.prefixes("TRUSTED_PROXIES"),
		JWT: JWTConfig{
			SigningKey: e.str("JWT_SECRET", ""),
			Issuer:     e.str("JWT_ISSUER", "trustbridge"),
			TokenTTL:   e.duration("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		},
		InternalToken:           e.str("INTERNAL_TOKEN", ""),
		AIEngineURL:             strings.TrimRight(e.str("AI_ENGINE_URL", ""), "/"),
		RulesFile:               e.str("COMPLIANCE_RULES_FILE", ""),
		LoginRateLimitPerMinute: e.int("LOGIN_RATE_LIMIT_PER_MINUTE", 10),
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: redisFromEnv(e),
		Kafka: KafkaConfig{
			Brokers:     e.list("KAFKA_BROKERS", nil),
			ClientID:    e.str("KAFKA_CLIENT_ID", "trustbridge-api"),
			LedgerTopic: e.str("LEDGER_TOPIC", "trustbridge.ledger"),
		},
	}

	local := cfg.Environment == EnvLocal
	if cfg.JWT.SigningKey == "" && local {
		cfg.JWT.SigningKey = devJWTSecret
	}
	cfg.SeedDemoData = e.bool("SEED_DEMO_DATA", local && cfg.Database.URL == "")

	e.require(cfg.JWT.SigningKey != "", "JWT_SECRET is required outside the local environment")
	e.require(local || cfg.JWT.SigningKey != devJWTSecret, "JWT_SECRET must not use the development default")
	e.require(cfg.JWT.TokenTTL > 0, "ACCESS_TOKEN_TTL must be positive")
	e.require(cfg.LoginRateLimitPerMinute > 0, "LOGIN_RATE_LIMIT_PER_MINUTE must be positive")

	return cfg, e.err()
}

// EngineFromEnv builds the legal-engine config.
func EngineFromEnv() (Engine, error) {
	e := &env{}
	cfg := Engine{
		Addr:               e.str("ENGINE_ADDR", ":8001"),
		Environment:        e.str("ENVIRONMENT", EnvLocal),
		LogLevel:           e.str("LOG_LEVEL", "info"),
		AllowedOrigins:     e.list("ALLOWED_ORIGINS", defaultOrigins),
		TrustedProxies:     e.prefixes("TRUSTED_PROXIES"),
		InternalToken:      e.str("INTERNAL_TOKEN", ""),
		RulesFile:          e.str("COMPLIANCE_RULES_FILE", ""),
		RateLimitPerMinute: e.int("RATE_LIMIT_PER_MINUTE", 100),
		Gemini: GeminiConfig{
			APIKey:          e.str("GEMINI_API_KEY", ""),
			Model:           e.str("GEMINI_MODEL", "gemini-2.0-flash-exp"),
			BaseURL:         strings.TrimRight(e.str("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
			Temperature:     e.float("GEMINI_TEMPERATURE", 0.3),
			MaxOutputTokens: e.int("GEMINI_MAX_OUTPUT_TOKENS", 8192),
			MaxRetries:      e.int("GEMINI_MAX_RETRIES", 3),
			Timeout:         e.duration("GEMINI_TIMEOUT", 45*time.Second),
		},
		Redis: redisFromEnv(e),
	}

	e.require(cfg.RateLimitPerMinute > 0, "RATE_LIMIT_PER_MINUTE must be positive")
	e.require(cfg.Gemini.Temperature >= 0 && cfg.Gemini.Temperature <= 2, "GEMINI_TEMPERATURE must be between 0 and 2")
	e.require(cfg.Gemini.MaxRetries >= 1, "GEMINI_MAX_RETRIES must be at least 1")
	e.require(cfg.Gemini.MaxOutputTokens > 0, "GEMINI_MAX_OUTPUT_TOKENS must be positive")
	e.require(cfg.Environment == EnvLocal || cfg.InternalToken != "", "INTERNAL_TOKEN is required outside the local environment")

	return cfg, e.err()
}
