// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

// Package config loads service configuration from, in order of
// precedence, command-line flags, PIPIT_* environment variables, and an
// optional YAML file.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/pipit-social/pipit/internal/token"
)

// envPrefix namespaces the environment variables read by Load,
// e.g. PIPIT_DATABASE_URL and PIPIT_TOKEN_SECRET.
const envPrefix = "PIPIT_"

// Defaults for optional settings.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
)

// Config holds the service configuration. TokenSecret is the process-wide
// signing secret: it is read once at startup and a missing or short value
// is a fatal condition, never a per-request error.
type Config struct {
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`
	TokenSecret string `koanf:"token_secret"`
	LogFormat   string `koanf:"log_format"`
}

// Validate checks that the configuration is complete and well-formed.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token_secret is required")
	}
	if len(c.TokenSecret) < token.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("min_bytes", token.MinSecretLength).
			Errorf("token_secret must be at least %d bytes", token.MinSecretLength)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	return nil
}

// Load reads configuration from the optional YAML file at path, then
// PIPIT_* environment variables, then the given flag set. Flags that were
// not changed do not override values from lower-precedence sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		// Flag names use dashes (--listen-addr); map them onto the
		// underscore config keys. An unchanged flag must not clobber a
		// value already loaded from the file or environment.
		provider := posflag.ProviderWithValue(flags, ".", nil, func(key, value string) (string, any) {
			mapped := strings.ReplaceAll(key, "-", "_")
			if !flags.Changed(key) && k.Exists(mapped) {
				return mapped, k.Get(mapped)
			}
			return mapped, value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := &Config{
		ListenAddr:  DefaultListenAddr,
		MetricsAddr: DefaultMetricsAddr,
		LogFormat:   DefaultLogFormat,
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
