// Package config provides configuration for the task tracker server and
// its command-line client.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment      Environment
	ListenAddr       string
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	CORSOrigins      []string
	RateLimitRequest int64
	RateLimitPeriod  string
	RedisURL         string // optional; shared rate-limit store when set
	MaxBodyBytes     int64
	TrustProxy       bool // honour X-Forwarded-For from a fronting proxy

	// Attachments go to S3 when AttachmentBucket is set, otherwise they are
	// stored in the comments table.
	AttachmentBucket string
	AttachmentPrefix string
	AWSRegion        string
	S3Endpoint       string // optional; for S3-compatible stores
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":" + getEnv("PORT", "8080")
	}

	ttl := getEnvDuration("TOKEN_TTL", 24*time.Hour)
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	rateLimit := int64(getEnvInt("RATE_LIMIT_REQUESTS", 100))
	if rateLimit <= 0 {
		rateLimit = 100
	}

	maxBody := int64(getEnvInt("MAX_BODY_BYTES", 8<<20))
	if maxBody <= 0 {
		maxBody = 8 << 20
	}

	return ServerConfig{
		Environment:      env,
		ListenAddr:       listen,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         ttl,
		CORSOrigins:      getEnvList("CORS_ORIGINS"),
		RateLimitRequest: rateLimit,
		RateLimitPeriod:  getEnv("RATE_LIMIT_PERIOD", "1m"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MaxBodyBytes:     maxBody,
		TrustProxy:       getEnvBool("TRUST_PROXY", false),
		AttachmentBucket: os.Getenv("ATTACHMENT_BUCKET"),
		AttachmentPrefix: getEnv("ATTACHMENT_PREFIX", "attachments"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
	}
}

// Validate checks the settings the server cannot start without.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.Environment == EnvProduction && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
