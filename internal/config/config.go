// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, and command-line flags, in increasing order of precedence.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Hasher choices.
const (
	HasherSHA256   = "sha256"
	HasherArgon2id = "argon2id"
)

// Config holds the server configuration.
type Config struct {
	// MetricsAddr is the metrics/health HTTP listen address. Empty disables
	// the observability server.
	MetricsAddr string `koanf:"metrics_addr"`

	// Store selects the record store backend: memory, postgres, or redis.
	Store string `koanf:"store"`

	// DatabaseURL is the PostgreSQL connection string (store=postgres).
	DatabaseURL string `koanf:"database_url"`

	// RedisURL is the Redis connection URL (store=redis).
	RedisURL string `koanf:"redis_url"`

	// TokenSecret signs session tokens. Required.
	TokenSecret string `koanf:"token_secret"`

	// Hasher selects the password hasher: sha256 (legacy) or argon2id.
	Hasher string `koanf:"hasher"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		MetricsAddr: "127.0.0.1:9100",
		Store:       StoreMemory,
		Hasher:      HasherSHA256,
		LogFormat:   "json",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the given flag set. Flags only override when actually
// set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Flags use dashes (--metrics-addr); config keys use underscores.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "unmarshal").
			Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is self-consistent.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token_secret is required")
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database_url is required when store is %q", StorePostgres)
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("redis_url is required when store is %q", StoreRedis)
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("store", c.Store).
			Errorf("store must be one of %q, %q, %q", StoreMemory, StorePostgres, StoreRedis)
	}

	if c.Hasher != HasherSHA256 && c.Hasher != HasherArgon2id {
		return oops.Code("CONFIG_INVALID").
			With("hasher", c.Hasher).
			Errorf("hasher must be %q or %q", HasherSHA256, HasherArgon2id)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text'")
	}
	return nil
}
