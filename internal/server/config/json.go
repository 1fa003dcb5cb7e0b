package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nazarriya/chatrelay/internal/flagx"
	"github.com/nazarriya/chatrelay/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// "30s"-style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP         string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC         string         `json:"endpoint_addr_grpc"`
	DatabaseDSN              string         `json:"database_dsn"`
	SecretKey                string         `json:"secret_key"`
	TokenProfile             string         `json:"token_profile"`
	ProductionTokenLifetime  timex.Duration `json:"production_token_lifetime"`
	DevelopmentTokenLifetime timex.Duration `json:"development_token_lifetime"`
	RelayURL                 string         `json:"relay_url"`
	RelayTimeout             timex.Duration `json:"relay_timeout"`
	PasswordAlgorithm        string         `json:"password_algorithm"`
	BcryptCost               int            `json:"bcrypt_cost"`
	MinPasswordLength        int            `json:"min_password_length"`
	LogLevel                 string         `json:"log_level"`
	LogFile                  string         `json:"log_file"`
	S3RootUser               string         `json:"s3_root_user"`
	S3RootPassword           string         `json:"s3_root_password"`
	S3Bucket                 string         `json:"s3_bucket"`
	S3Region                 string         `json:"s3_region"`
	S3BaseEndpoint           string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config in args, if any, and copies
// every field the file sets into config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.TokenProfile, c.TokenProfile)
	setString(&config.RelayURL, c.RelayURL)
	setString(&config.PasswordAlgorithm, c.PasswordAlgorithm)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFile, c.LogFile)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.ProductionTokenLifetime.Duration > 0 {
		config.ProductionTokenLifetime = c.ProductionTokenLifetime.Duration
	}
	if c.DevelopmentTokenLifetime.Duration > 0 {
		config.DevelopmentTokenLifetime = c.DevelopmentTokenLifetime.Duration
	}
	if c.RelayTimeout.Duration > 0 {
		config.RelayTimeout = c.RelayTimeout.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MinPasswordLength > 0 {
		config.MinPasswordLength = c.MinPasswordLength
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
