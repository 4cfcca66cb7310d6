package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	// Address on which the service will be run
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"3001"`

	// Database to connect to, 'postgres://...' or 'sqlite://...'
	DatabaseDSN string `env:"DATABASE_URI"`

	// Secret keys to sign JWT
	// Refresh key is derived from the access one if empty
	SecretKey        string `env:"JWT_ACCESS_SECRET"`
	RefreshSecretKey string `env:"JWT_REFRESH_SECRET"`

	// Allowed CORS origin
	WebOrigin string `env:"WEB_ORIGIN" envDefault:"*"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`

	// How many live refresh tokens one user may have
	MaxSessions int `env:"MAX_SESSIONS" envDefault:"5"`

	// Upper bound for one service call
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`

	// How often expired and revoked refresh tokens are deleted
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`

	// OTLP/HTTP collector url, tracing disabled if empty
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load config: defaults, then '.env' file in working directory, then process environment, then flags
// environ: process environment in 'KEY=value' form as os.Environ returns
func LoadConfig(environ []string, getwd func() (string, error), args []string) (*Config, error) {
	vars, err := readDotEnv(getwd)
	if err != nil {
		return nil, fmt.Errorf("error while reading .env file. Err: %w", err)
	}
	maps.Copy(vars, env.ToMap(environ))

	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("error while parsing environment. Err: %w", err)
	}

	if err := c.ParseFlags(args); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("taskmanager", pflag.ContinueOnError)

	fs.StringVarP(&c.Host, "host", "H", c.Host, "Server listen host")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "Server listen port")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string (postgres://... or sqlite://...)")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVar(&c.RefreshSecretKey, "refresh-secret-key", c.RefreshSecretKey, "Secret key to sign refresh tokens")
	fs.StringVarP(&c.WebOrigin, "web-origin", "o", c.WebOrigin, "Allowed CORS origin")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, production)")
	fs.IntVar(&c.MaxSessions, "max-sessions", c.MaxSessions, "Max live refresh tokens per user")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Timeout of one service call")
	fs.DurationVar(&c.TokenSweepInterval, "token-sweep-interval", c.TokenSweepInterval, "How often stale refresh tokens are deleted")
	fs.StringVar(&c.OtelEndpoint, "otel-endpoint", c.OtelEndpoint, "OTLP/HTTP traces collector url")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	return errors.Join(errs...)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Read '.env' file located at working directory
// Missing file is not an error
func readDotEnv(getwd func() (string, error)) (map[string]string, error) {
	wd, err := getwd()
	if err != nil {
		return nil, err
	}

	vars, err := godotenv.Read(filepath.Join(wd, ".env"))
	switch {
	case err == nil:
		return vars, nil
	case errors.Is(err, os.ErrNotExist):
		return map[string]string{}, nil
	default:
		return nil, err
	}
}
