package config

const (
	defaultServerHost     = "*"
	defaultClientHost     = "localhost"
	defaultPort           = 5555
	defaultTimeoutMS      = 15000
	defaultWriteTimeoutMS = 10000
	defaultMaxBodyBytes   = 64 << 20
	defaultCodec          = "binary"
	defaultNode           = "inferd"
	defaultPingMessage    = "Server is running"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           defaultServerHost,
			Port:           defaultPort,
			MaxBodyBytes:   defaultMaxBodyBytes,
			WriteTimeoutMS: defaultWriteTimeoutMS,
			Node:           defaultNode,
			PingMessage:    defaultPingMessage,
		},
		Client: ClientConfig{
			Host:      defaultClientHost,
			Port:      defaultPort,
			TimeoutMS: defaultTimeoutMS,
			Codec:     defaultCodec,
		},
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
