// Package config handles configuration for the bundle server: defaults,
// an optional JSON file and command-line flags, applied in that order.
package config

import "time"

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds runtime settings for the server.
//
// DatabaseDSN selects the tree cache and lock store: empty keeps both in
// memory, a postgres:// URL uses PostgreSQL, anything else is a SQLite file.
// MaxBundleSize is in bytes; zero disables the limit.
type Config struct {
	HTTPAddr                    string
	DataDir                     string
	StorageBackend              string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	MaxBundleSize               int64
	ReadOnly                    bool
	LogLevel                    string
	LogFormat                   string
	ShutdownTimeout             time.Duration
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key and S3 credentials must be overridden in production.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DataDir = "data"
	c.StorageBackend = BackendLocal
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 60 * time.Minute
	c.MaxBundleSize = 512 << 20
	c.ReadOnly = false
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.ShutdownTimeout = 10 * time.Second
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "davbundle"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
