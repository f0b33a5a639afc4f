// Package config loads runtime settings from a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/greenscreen/internal/session"
)

// Defaults.
const (
	DefaultPort         = 23
	DefaultModel        = "3279-2"
	DefaultCodePage     = "cp037"
	DefaultTimeout      = 30 * time.Second
	DefaultConnectDelay = 3 * time.Second
	DefaultDatabasePath = "greenscreen.db"
	DefaultHTTPAddr     = ":8080"
	DefaultScreensDir   = "screens"
)

// Credentials are the sign-on values handed to credentials steps as the
// username and password parameters.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the full runtime configuration.
type Config struct {
	Session      session.Options `yaml:"session"`
	Credentials  Credentials     `yaml:"credentials"`
	DatabasePath string          `yaml:"database_path"`
	HTTPAddr     string          `yaml:"http_addr"`
	ScreensDir   string          `yaml:"screens_dir"`
	ArtifactsDir string          `yaml:"artifacts_dir"`
	LogLevel     string          `yaml:"log_level"`
	LogFormat    string          `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Session: session.Options{
			Transport:    session.TransportS3270,
			Port:         DefaultPort,
			Model:        DefaultModel,
			CodePage:     DefaultCodePage,
			Timeout:      DefaultTimeout,
			ConnectDelay: DefaultConnectDelay,
		},
		DatabasePath: DefaultDatabasePath,
		HTTPAddr:     DefaultHTTPAddr,
		ScreensDir:   DefaultScreensDir,
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Load builds a Config from defaults, the optional YAML file at path, a
// .env file in the working directory if present, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Check()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("TN5250_HOST", &c.Session.Host)
	str("TN5250_MODEL", &c.Session.Model)
	str("TN5250_CODEPAGE", &c.Session.CodePage)
	str("TN5250_USERNAME", &c.Credentials.Username)
	str("TN5250_PASSWORD", &c.Credentials.Password)
	str("GREENSCREEN_TRANSPORT", &c.Session.Transport)
	str("DATABASE_URL", &c.DatabasePath)
	str("DATABASE_PATH", &c.DatabasePath)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("GREENSCREEN_SCREENS_DIR", &c.ScreensDir)
	str("GREENSCREEN_ARTIFACTS_DIR", &c.ArtifactsDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	c.DatabasePath = strings.TrimPrefix(c.DatabasePath, "sqlite:///")

	if v, ok := lookup("TN5250_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TN5250_PORT: %w", err)
		}
		c.Session.Port = port
	}
	if v, ok := lookup("TN5250_SSL"); ok && v != "" {
		tls, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TN5250_SSL: %w", err)
		}
		c.Session.TLS = tls
	}
	if v, ok := lookup("TN5250_TIMEOUT"); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("TN5250_TIMEOUT: %w", err)
		}
		c.Session.Timeout = d
	}
	return nil
}

// parseSeconds accepts a Go duration ("45s") or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Check reports settings that can never work.
func (c Config) Check() error {
	if c.Session.Port <= 0 || c.Session.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Session.Port)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s", c.Session.Timeout)
	}
	switch c.Session.Transport {
	case session.TransportS3270, session.TransportTmux:
	default:
		return fmt.Errorf("unknown transport %q", c.Session.Transport)
	}
	return nil
}

// Params returns the credentials as runtime parameters, omitting empty ones.
func (c Config) Params() map[string]string {
	params := map[string]string{}
	if c.Credentials.Username != "" {
		params["username"] = c.Credentials.Username
	}
	if c.Credentials.Password != "" {
		params["password"] = c.Credentials.Password
	}
	return params
}
