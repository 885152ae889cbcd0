package config

import "time"

// Config holds runtime settings for the upload client.
//
// Fields:
//   - ServerURL: base URL of the bundle server.
//   - User: owner of the files home uploads go to.
//   - AccessToken: bearer token; prompted for when empty.
//   - RequestTimeout: upper bound for one bundle request, 0 = none.
type Config struct {
	ServerURL      string
	User           string
	AccessToken    string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.User = ""
	c.AccessToken = ""
	c.RequestTimeout = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
