// Package config loads the TOML configuration shared by inferd and inferctl.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Environment overrides applied after the file is read.
const (
	EnvLogLevel  = "INFER_RPC_LOG_LEVEL"
	EnvLogFormat = "INFER_RPC_LOG_FORMAT"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Host           string  `toml:"host"` // "*" listens on all interfaces
	Port           int     `toml:"port"`
	MaxBodyBytes   int64   `toml:"max_body_bytes"`
	WriteTimeoutMS int     `toml:"write_timeout_ms"`
	RateLimit      float64 `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst      int     `toml:"rate_burst"`
	MetricsAddr    string  `toml:"metrics_addr"`
	LockDir        string  `toml:"lock_dir"`
	Node           string  `toml:"node"`
	PingMessage    string  `toml:"ping_message"`
}

type ClientConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	TimeoutMS int    `toml:"timeout_ms"`
	Codec     string `toml:"codec"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	Development bool   `toml:"development"`
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Log.Level = value
	}
	if value, ok := os.LookupEnv(EnvLogFormat); ok && strings.TrimSpace(value) != "" {
		c.Log.Format = value
	}
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	c.Client.Codec = strings.ToLower(strings.TrimSpace(c.Client.Codec))
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Client.Host = strings.TrimSpace(c.Client.Host)
}

// Address is the host:port the server binds.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
