// Package config handles server configuration: defaults, an optional JSON
// file, environment variables and finally command-line flags, applied in
// that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Token lifetime profiles.
const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
)

// Config holds runtime settings for the chat relay server.
//
// Fields:
//   - EndpointAddrHTTP: bind address of the REST API.
//   - EndpointAddrGRPC: bind address of the gRPC health service; empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx).
//   - SecretKey: HMAC secret for signing access tokens (HS256).
//   - TokenProfile: which lifetime applies to issued tokens, "production" or "development".
//   - ProductionTokenLifetime / DevelopmentTokenLifetime: the two lifetimes.
//   - RelayURL / RelayTimeout: the upstream generation service.
//   - PasswordAlgorithm: "bcrypt" or "argon2id"; BcryptCost applies to bcrypt.
//   - MinPasswordLength: registration rejects shorter passwords.
//   - LogLevel / LogFile: log verbosity and an optional rotated log file.
//   - S3*: optional object storage for session exports; empty bucket disables exports.
type Config struct {
	EndpointAddrHTTP         string        `env:"HTTP_ADDR"`
	EndpointAddrGRPC         string        `env:"GRPC_HEALTH_ADDR"`
	DatabaseDSN              string        `env:"DATABASE_URL"`
	SecretKey                string        `env:"SECRET_KEY"`
	TokenProfile             string        `env:"TOKEN_PROFILE"`
	ProductionTokenLifetime  time.Duration `env:"PRODUCTION_TOKEN_LIFETIME"`
	DevelopmentTokenLifetime time.Duration `env:"DEVELOPMENT_TOKEN_LIFETIME"`
	RelayURL                 string        `env:"RELAY_URL"`
	RelayTimeout             time.Duration `env:"RELAY_TIMEOUT"`
	PasswordAlgorithm        string        `env:"PASSWORD_ALGORITHM"`
	BcryptCost               int           `env:"BCRYPT_COST"`
	MinPasswordLength        int           `env:"MIN_PASSWORD_LENGTH"`
	LogLevel                 string        `env:"LOG_LEVEL"`
	LogFile                  string        `env:"LOG_FILE"`
	S3RootUser               string        `env:"S3_ROOT_USER"`
	S3RootPassword           string        `env:"S3_ROOT_PASSWORD"`
	S3Bucket                 string        `env:"S3_BUCKET"`
	S3Region                 string        `env:"S3_REGION"`
	S3BaseEndpoint           string        `env:"S3_BASE_ENDPOINT"`
}

// LoadDefaults populates Config with development defaults. The secret key and
// DSN are deliberately left empty so that Validate fails until they are set.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8000"
	c.EndpointAddrGRPC = ":50051"
	c.TokenProfile = ProfileProduction
	c.ProductionTokenLifetime = 30 * time.Minute
	c.DevelopmentTokenLifetime = 24 * time.Hour
	c.RelayURL = "http://localhost:9000/generate"
	c.RelayTimeout = 30 * time.Second
	c.PasswordAlgorithm = "bcrypt"
	c.BcryptCost = 12
	c.MinPasswordLength = 1
	c.LogLevel = "info"
	c.S3Region = "us-east-1"
}

// AccessTokenLifetime returns the lifetime of the active token profile.
func (c *Config) AccessTokenLifetime() time.Duration {
	if c.TokenProfile == ProfileDevelopment {
		return c.DevelopmentTokenLifetime
	}
	return c.ProductionTokenLifetime
}

// ExportsEnabled reports whether session exports have somewhere to go.
func (c *Config) ExportsEnabled() bool {
	return c.S3Bucket != ""
}

// Validate reports every setting that would keep the server from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.TokenProfile != ProfileProduction && c.TokenProfile != ProfileDevelopment {
		errs = append(errs, fmt.Errorf("unknown token profile %q", c.TokenProfile))
	}
	if c.AccessTokenLifetime() <= 0 {
		errs = append(errs, errors.New("token lifetime must be positive"))
	}
	if c.RelayURL == "" {
		errs = append(errs, errors.New("relay URL is required"))
	}
	if c.RelayTimeout <= 0 {
		errs = append(errs, errors.New("relay timeout must be positive"))
	}
	if c.PasswordAlgorithm != "bcrypt" && c.PasswordAlgorithm != "argon2id" {
		errs = append(errs, fmt.Errorf("unsupported password algorithm %q", c.PasswordAlgorithm))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then overlaying the JSON
// file, the environment (after merging in an optional .env file) and finally
// command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := parseDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	return cfg, nil
}
