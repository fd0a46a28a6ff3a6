// Package config loads the service configuration from defaults, an
// optional YAML file, the environment and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "ESTATE_"

// Config is the configuration of the server and the CLI.
type Config struct {
	// Chain
	RPCEndpoint   string        `env:"RPC_ENDPOINT" envDefault:"http://127.0.0.1:8545" yaml:"rpc_endpoint"`
	ChainID       int64         `env:"CHAIN_ID" envDefault:"31337" yaml:"chain_id"`
	ArtifactsDir  string        `env:"ARTIFACTS_DIR" envDefault:"artifacts" yaml:"artifacts_dir"`
	RPCMaxRetries int           `env:"RPC_MAX_RETRIES" envDefault:"3" yaml:"rpc_max_retries"`
	RPCRetryDelay time.Duration `env:"RPC_RETRY_DELAY" envDefault:"500ms" yaml:"rpc_retry_delay"`

	// Wallet. Secrets are read from the environment only.
	PrivateKey         string        `env:"PRIVATE_KEY" yaml:"-"`
	KeystoreFile       string        `env:"KEYSTORE_FILE" yaml:"keystore_file"`
	KeystorePassphrase string        `env:"KEYSTORE_PASSPHRASE" yaml:"-"`
	ChainCheckInterval time.Duration `env:"CHAIN_CHECK_INTERVAL" envDefault:"5s" yaml:"chain_check_interval"`

	// Storage
	UseMemory     bool   `env:"USE_MEMORY" envDefault:"true" yaml:"use_memory"`
	PostgresDSN   string `env:"POSTGRES_DSN" yaml:"postgres_dsn"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN" yaml:"clickhouse_dsn"`

	// HTTP. The API is unauthenticated and signs with the wallet key, so
	// binding beyond loopback hands the key to anyone who can connect.
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080" yaml:"http_addr"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s" yaml:"refresh_interval"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"2" yaml:"rate_limit_rps"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"5" yaml:"rate_limit_burst"`
	DefaultLang     string        `env:"DEFAULT_LANG" envDefault:"zh-TW" yaml:"default_lang"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:"," yaml:"trusted_proxies"` // CIDRs

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console" yaml:"log_format"`
}

// Load builds the configuration. path is an optional YAML file; variables
// from a .env file in the working directory are exported first without
// overriding the real environment.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// Defaults are already in place; only variables that are set apply.
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:              EnvPrefix,
		DefaultValueTagName: "noDefault",
	}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for required values.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RPCEndpoint) == "" {
		errs = append(errs, errors.New("rpc endpoint is required"))
	}
	if c.ChainID <= 0 {
		errs = append(errs, errors.New("chain id must be positive"))
	}
	if c.ArtifactsDir == "" {
		errs = append(errs, errors.New("artifacts dir is required"))
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		errs = append(errs, errors.New("postgres and clickhouse DSNs are required unless use_memory is set"))
	}
	if c.PrivateKey != "" && c.KeystoreFile != "" {
		errs = append(errs, errors.New("private key and keystore file are mutually exclusive"))
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	return errors.Join(errs...)
}

// TrustedProxyNets parses TrustedProxies. A bare IP is a single host.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", raw)
			}
			bits := 8 * len(ip.To16())
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// HasWallet reports whether a key is configured for Restore.
func (c *Config) HasWallet() bool {
	return c.PrivateKey != "" || c.KeystoreFile != ""
}

// LoadEnvFile exports KEY=VALUE lines of path. Missing files are ignored
// and variables already set are kept.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}
