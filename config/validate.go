package config

import (
	"errors"
	"fmt"
	"math"

	"infer-rpc/codec"
	"infer-rpc/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.Host == "" {
		return errors.New("server.host must be set (use \"*\" for all interfaces)")
	}
	if err := validatePort("server.port", s.Port); err != nil {
		return err
	}
	if s.MaxBodyBytes <= 0 || s.MaxBodyBytes > math.MaxUint32 {
		return fmt.Errorf("server.max_body_bytes must be in (0, %d]", uint32(math.MaxUint32))
	}
	if s.WriteTimeoutMS <= 0 {
		return errors.New("server.write_timeout_ms must be positive")
	}
	if s.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if s.RateLimit > 0 && s.RateBurst <= 0 {
		return errors.New("server.rate_burst must be positive when rate_limit is set")
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Client.Host == "" {
		return errors.New("client.host must be set")
	}
	if err := validatePort("client.port", c.Client.Port); err != nil {
		return err
	}
	if c.Client.TimeoutMS <= 0 {
		return errors.New("client.timeout_ms must be positive")
	}
	if _, err := codec.ParseType(c.Client.Codec); err != nil {
		return fmt.Errorf("client.codec: %w", err)
	}
	return nil
}

func (c *Config) validateLog() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "auto", "console", "json":
		return nil
	}
	return fmt.Errorf("log.format: unsupported value %q", c.Log.Format)
}

func validatePort(field string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", field, port)
	}
	return nil
}
