// Package config loads process configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/jacentio/todo/auth"
	"github.com/jacentio/todo/store"
)

// Config is the configuration shared by every entry point.
type Config struct {
	TableName            string
	PageSize             int32
	MaxConcurrentBatches int

	// DynamoDBEndpoint overrides the service endpoint, e.g. for DynamoDB Local.
	DynamoDBEndpoint string
	Region           string

	JWKSURL            string
	Issuer             string
	Audience           string
	Leeway             time.Duration
	MinRefreshInterval time.Duration

	LogLevel slog.Level

	// Addr is the listen address of the dev server.
	Addr string
}

// Load reads .env from the working directory when present, then the environment.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are ignored and
// variables already set in the environment win.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	storeDefaults := store.DefaultConfig()
	authDefaults := auth.DefaultConfig()

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TableName:            getEnv("TABLE_NAME", storeDefaults.TableName),
		PageSize:             int32(getEnvAsInt("PAGE_SIZE", int(storeDefaults.PageSize))),
		MaxConcurrentBatches: getEnvAsInt("MAX_CONCURRENT_BATCHES", storeDefaults.MaxConcurrentBatches),
		DynamoDBEndpoint:     getEnv("DYNAMODB_ENDPOINT", ""),
		Region:               getEnv("AWS_REGION", ""),
		JWKSURL:              getEnv("JWKS_URL", ""),
		Issuer:               getEnv("JWT_ISSUER", ""),
		Audience:             getEnv("JWT_AUDIENCE", ""),
		Leeway:               getEnvAsDuration("JWT_LEEWAY", authDefaults.Leeway),
		MinRefreshInterval:   getEnvAsDuration("JWKS_MIN_REFRESH_INTERVAL", authDefaults.MinRefreshInterval),
		LogLevel:             level,
		Addr:                 getEnv("ADDR", ":8080"),
	}
	return cfg, nil
}

// Store returns the store configuration.
func (c *Config) Store() store.Config {
	return store.Config{
		TableName:            c.TableName,
		PageSize:             c.PageSize,
		MaxConcurrentBatches: c.MaxConcurrentBatches,
	}
}

// Auth returns the token verification configuration. It fails when no key
// set URL is configured.
func (c *Config) Auth() (auth.Config, error) {
	if c.JWKSURL == "" {
		return auth.Config{}, errors.New("JWKS_URL is required")
	}
	cfg := auth.DefaultConfig()
	cfg.JWKSURL = c.JWKSURL
	cfg.Issuer = c.Issuer
	cfg.Audience = c.Audience
	cfg.Leeway = c.Leeway
	cfg.MinRefreshInterval = c.MinRefreshInterval
	return cfg, nil
}

// Logger returns a JSON logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

// DynamoDB builds a client from the default AWS credential chain.
func (c *Config) DynamoDB(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(c.DynamoDBEndpoint)
		}
	}), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
