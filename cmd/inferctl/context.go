package main

import (
	"strings"
	"sync"
	"time"

	"infer-rpc/client"
	"infer-rpc/codec"
	"infer-rpc/config"
	"infer-rpc/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type commandContext struct {
	configFlag  string
	hostFlag    string
	portFlag    int
	timeoutFlag time.Duration
	codecFlag   string

	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error
}

// ensureConfig loads the file once and layers explicitly set flags on top.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		flags := cmd.Flags()
		if flags.Changed("host") {
			cfg.Client.Host = c.hostFlag
		}
		if flags.Changed("port") {
			cfg.Client.Port = c.portFlag
		}
		if flags.Changed("timeout") {
			cfg.Client.TimeoutMS = int(c.timeoutFlag / time.Millisecond)
		}
		if flags.Changed("codec") {
			cfg.Client.Codec = strings.ToLower(strings.TrimSpace(c.codecFlag))
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:       cfg.Log.Level,
			Format:      cfg.Log.Format,
			Development: cfg.Log.Development,
		})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// withClient runs fn against a client built from the resolved config.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(*client.Client) error) error {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return err
	}
	codecType, err := codec.ParseType(cfg.Client.Codec)
	if err != nil {
		return err
	}
	cl := client.New(cfg.Client.Host, cfg.Client.Port,
		client.WithTimeout(cfg.Client.Timeout()),
		client.WithCodec(codecType),
		client.WithLogger(c.logger),
	)
	defer cl.Close()
	defer func() { _ = c.logger.Sync() }()
	return fn(cl)
}
