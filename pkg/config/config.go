// pkg/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	DefaultHTTPPort = 5000

	// PathEnv names the config file when no path is given explicitly.
	PathEnv = "EXTHOST_CONFIG"
)

type Config struct {
	Host   Host   `toml:"host" yaml:"host"`
	Listen Listen `toml:"listen" yaml:"listen"`
	Auth   Auth   `toml:"auth" yaml:"auth"`
	Types  Types  `toml:"types" yaml:"types"`
}

type Host struct {
	Service           string `toml:"service" yaml:"service"`
	LogDir            string `toml:"log_dir" yaml:"log_dir"`
	LogLevel          string `toml:"log_level" yaml:"log_level"`
	ShutdownTimeoutMS int    `toml:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms"`
	CallTimeoutMS     int    `toml:"call_timeout_ms" yaml:"call_timeout_ms"`
}

// Listen picks the transport endpoint: Socket, then Pipe, else the loopback
// HTTPPort.
type Listen struct {
	Socket   string `toml:"socket" yaml:"socket"`
	Pipe     string `toml:"pipe" yaml:"pipe"`
	HTTPPort int    `toml:"http" yaml:"http"`
	Protocol string `toml:"protocol" yaml:"protocol"`
}

type Auth struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	SecretEnv     string `toml:"secret_env" yaml:"secret_env"`
	Issuer        string `toml:"issuer" yaml:"issuer"`
	Audience      string `toml:"audience" yaml:"audience"`
	LeewaySeconds int    `toml:"leeway_seconds" yaml:"leeway_seconds"`
}

type Types struct {
	Name        string `toml:"name" yaml:"name"`
	Version     string `toml:"version" yaml:"version"`
	IsSingleton bool   `toml:"is_singleton" yaml:"is_singleton"`
}

func Default() Config {
	return Config{
		Host: Host{
			Service:           "exthost",
			LogDir:            "log",
			LogLevel:          "info",
			ShutdownTimeoutMS: 10000,
		},
		Listen: Listen{HTTPPort: DefaultHTTPPort, Protocol: ProtocolGRPC},
		Auth:   Auth{SecretEnv: "EXTHOST_AUTH_SECRET", LeewaySeconds: 30},
		Types:  Types{Name: "extension", Version: "0.0.1"},
	}
}

// Load reads path over the defaults, choosing the decoder by extension, then
// applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(b, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PathOr returns explicit, else $EXTHOST_CONFIG, else "".
func PathOr(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(PathEnv)
}

// ApplyEnv overlays EXTHOST_* environment variables. Malformed values are
// reported rather than skipped.
func (c *Config) ApplyEnv() error {
	var errs *multierror.Error
	if v := os.Getenv("EXTHOST_SOCKET"); v != "" {
		c.Listen.Socket = v
	}
	if v := os.Getenv("EXTHOST_PIPE"); v != "" {
		c.Listen.Pipe = v
	}
	if v := os.Getenv("EXTHOST_HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("env EXTHOST_HTTP_PORT: %q is not a port number", v))
		} else {
			c.Listen.HTTPPort = p
		}
	}
	if v := os.Getenv("EXTHOST_PROTOCOL"); v != "" {
		c.Listen.Protocol = strings.ToLower(v)
	}
	if v := os.Getenv("EXTHOST_LOG_DIR"); v != "" {
		c.Host.LogDir = v
	}
	return errs.ErrorOrNil()
}

func (c Config) Validate() error {
	var errs *multierror.Error
	if c.Listen.Socket != "" && c.Listen.Pipe != "" {
		errs = multierror.Append(errs, errors.New("listen: socket and pipe are mutually exclusive"))
	}
	if c.Listen.Socket == "" && c.Listen.Pipe == "" && (c.Listen.HTTPPort <= 0 || c.Listen.HTTPPort > 65535) {
		errs = multierror.Append(errs, fmt.Errorf("listen: http port %d out of range", c.Listen.HTTPPort))
	}
	switch c.Listen.Protocol {
	case ProtocolGRPC, ProtocolHTTP:
	default:
		errs = multierror.Append(errs, fmt.Errorf("listen: unknown protocol %q", c.Listen.Protocol))
	}
	if c.Host.CallTimeoutMS < 0 || c.Host.ShutdownTimeoutMS < 0 {
		errs = multierror.Append(errs, errors.New("host: timeouts must not be negative"))
	}
	if c.Auth.Enabled && c.Auth.SecretEnv == "" {
		errs = multierror.Append(errs, errors.New("auth: secret_env is required when auth is enabled"))
	}
	if c.Types.Name == "" {
		errs = multierror.Append(errs, errors.New("types: name is required"))
	}
	return errs.ErrorOrNil()
}

func (h Host) CallTimeout() time.Duration {
	return time.Duration(h.CallTimeoutMS) * time.Millisecond
}

func (h Host) ShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownTimeoutMS) * time.Millisecond
}
