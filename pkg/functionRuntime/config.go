package functionRuntime

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTPAddress is where the CloudEvents endpoint listens.
	HTTPAddress string
	// GRPCAddress enables the gRPC endpoint when set.
	GRPCAddress string
	// RequestTimeout bounds a single invocation including its transfers.
	RequestTimeout time.Duration
	// MaxBodyBytes limits the size of a task descriptor.
	MaxBodyBytes int64
	// ShutdownTimeout is how long in-flight invocations get after the server is told to stop.
	ShutdownTimeout time.Duration
	Log             LogConfig
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

const (
	EnvHTTPAddress    = "OAAS_HTTP_ADDRESS"
	EnvGRPCAddress    = "OAAS_GRPC_ADDRESS"
	EnvRequestTimeout = "OAAS_REQUEST_TIMEOUT"
	EnvMaxBodyBytes   = "OAAS_MAX_BODY_BYTES"
	EnvLogLevel       = "OAAS_LOG_LEVEL"
	EnvLogFormat      = "OAAS_LOG_FORMAT"
	EnvLogFile        = "OAAS_LOG_FILE"
)

// applyDefaults configures the config with default values if not set.
func (c *Config) applyDefaults() {
	if c.HTTPAddress == "" {
		c.HTTPAddress = ":8080"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// SettingsFromEnv reads the runtime configuration from OAAS_* environment variables.
// Unset variables keep their defaults.
func SettingsFromEnv() (Config, error) {
	var c Config
	c.HTTPAddress = os.Getenv(EnvHTTPAddress)
	c.GRPCAddress = os.Getenv(EnvGRPCAddress)
	c.Log.Level = os.Getenv(EnvLogLevel)
	c.Log.Format = os.Getenv(EnvLogFormat)
	c.Log.File = os.Getenv(EnvLogFile)

	if v, ok := os.LookupEnv(EnvRequestTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("functionRuntime: invalid %s %q: %w", EnvRequestTimeout, v, err)
		}
		c.RequestTimeout = d
	}
	if v, ok := os.LookupEnv(EnvMaxBodyBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, fmt.Errorf("functionRuntime: invalid %s %q: %w", EnvMaxBodyBytes, v, err)
		}
		c.MaxBodyBytes = n
	}

	c.applyDefaults()
	return c, nil
}
