// Package config loads relay configuration from a YAML file with
// environment variable overrides, the same two-step pattern the teacher
// uses for its microservice (file defaults, env wins for secrets and
// per-deploy values).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relaynet/txrelay/internal/models"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Relay     RelayConfig     `yaml:"relay"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// AuthConfig is the "optional bearer-style header check" of spec §6.1.
// ExpectedHeader empty means auth is disabled entirely.
type AuthConfig struct {
	ExpectedHeader string `yaml:"-"`
}

type DatabaseConfig struct {
	URL string `yaml:"-"`
}

// ChainConfig is one entry of the static chain allow-list (spec §6.4).
type ChainConfig struct {
	Chain          models.ChainID `yaml:"chain"`
	Name           string         `yaml:"name"`
	RPCURL         string         `yaml:"-"`
	BlockFrequency int            `yaml:"block_frequency"`
}

type RelayConfig struct {
	PrivateKeyHex string        `yaml:"-"`
	Chains        []ChainConfig `yaml:"chains"`
}

// Load reads config from the YAML file at path (if it exists) and then
// applies environment variable overrides, mirroring the teacher's
// internal/config.Load.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if pk := os.Getenv("PK"); pk != "" {
		cfg.Relay.PrivateKeyHex = strings.TrimPrefix(pk, "0x")
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if auth := os.Getenv("EXPECTED_AUTH_HEADER"); auth != "" {
		cfg.Auth.ExpectedHeader = auth
	}

	if allowlist := os.Getenv("CHAIN_ALLOWLIST"); allowlist != "" {
		cfg.Relay.Chains = parseAllowlist(allowlist)
	}
	for i := range cfg.Relay.Chains {
		envKey := fmt.Sprintf("%s_RPC_URL", strings.ToUpper(cfg.Relay.Chains[i].Name))
		if url := os.Getenv(envKey); url != "" {
			cfg.Relay.Chains[i].RPCURL = url
		}
		if cfg.Relay.Chains[i].BlockFrequency == 0 {
			cfg.Relay.Chains[i].BlockFrequency = 1
		}
	}
}

// parseAllowlist accepts "name:chainid:rpc_url,name:chainid:rpc_url,...".
func parseAllowlist(raw string) []ChainConfig {
	var chains []ChainConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			continue
		}
		id, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			continue
		}
		cc := ChainConfig{
			Name:           parts[0],
			Chain:          models.ChainID(id),
			BlockFrequency: 1,
		}
		if len(parts) >= 3 {
			cc.RPCURL = parts[2]
		}
		chains = append(chains, cc)
	}
	return chains
}

func (c *Config) Validate() error {
	if c.Relay.PrivateKeyHex == "" {
		return fmt.Errorf("PK is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.Relay.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for _, chain := range c.Relay.Chains {
		if chain.RPCURL == "" {
			return fmt.Errorf("chain %s: rpc url is required", chain.Name)
		}
	}
	return nil
}
