package main

import (
	"fmt"
	"strings"

	"infer-rpc/config"
	"infer-rpc/logging"
	"infer-rpc/middleware"
	"infer-rpc/observability"
	"infer-rpc/policy"
	"infer-rpc/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flags struct {
	config    string
	host      string
	port      int
	policy    string
	actionKey string
	actionDim int
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "inferd",
		Short:         "Serve a policy over infer-rpc",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
				Development: cfg.Log.Development,
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p, err := buildPolicy(f.policy, f.actionKey, f.actionDim)
			if err != nil {
				return err
			}
			return run(cfg, p, logger)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&f.host, "host", "", "Host to bind (\"*\" for all interfaces)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Port to bind")
	cmd.Flags().StringVar(&f.policy, "policy", "constant", "Policy to host: constant or echo")
	cmd.Flags().StringVar(&f.actionKey, "action-key", "action", "Action field name for the constant policy")
	cmd.Flags().IntVar(&f.actionDim, "action-dim", 7, "Action dimension for the constant policy")
	return cmd
}

// loadConfig reads the file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(f.config))
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = f.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = f.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildPolicy(name, actionKey string, actionDim int) (policy.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "constant":
		action, err := policy.ZeroAction(actionKey, actionDim)
		if err != nil {
			return nil, err
		}
		return policy.NewConstant(action), nil
	case "echo":
		return policy.Func(policy.Echo), nil
	}
	return nil, fmt.Errorf("unknown policy %q (want constant or echo)", name)
}

// newServer assembles the server from config without binding it.
func newServer(cfg *config.Config, p policy.Policy, logger *zap.Logger) (*server.Server, error) {
	srv := server.NewServer(
		server.WithLogger(logger),
		server.WithMaxBodyLen(uint32(cfg.Server.MaxBodyBytes)),
		server.WithWriteTimeout(cfg.Server.WriteTimeout()),
		server.WithPingMessage(cfg.Server.PingMessage),
		server.WithNode(cfg.Server.Node),
	)

	mws := []middleware.Middleware{middleware.LoggingMiddleware(logger)}
	if cfg.Server.MetricsAddr != "" {
		mws = append(mws, middleware.MetricsMiddleware(cfg.Server.Node))
	}
	if cfg.Server.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}
	for _, mw := range mws {
		if err := srv.Use(mw); err != nil {
			return nil, err
		}
	}

	if err := policy.Register(srv, p); err != nil {
		return nil, err
	}
	if err := srv.RegisterEndpoint("echo", policy.Echo, true); err != nil {
		return nil, err
	}
	return srv, nil
}

func run(cfg *config.Config, p policy.Policy, logger *zap.Logger) error {
	if cfg.Server.LockDir != "" {
		lock, err := acquireLock(cfg.Server.LockDir, cfg.Server.Port)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("failed to release instance lock", zap.Error(err))
			}
		}()
		logger.Info("instance lock acquired", zap.String("lock", lock.Path()))
	}

	srv, err := newServer(cfg, p, logger)
	if err != nil {
		return err
	}

	if cfg.Server.MetricsAddr != "" {
		metrics := observability.ServeMetrics(cfg.Server.MetricsAddr, logger)
		defer metrics.Close()
	}

	if err := srv.Bind(cfg.Server.Address()); err != nil {
		return err
	}
	return srv.Serve()
}
