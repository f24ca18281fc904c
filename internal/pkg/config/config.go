/*
Copyright 2026 The Dispatchkit Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the engine's toml configuration via koanf and
// feeds logger settings to the loggerfactory, with hot reload of the
// logger file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dispatchkit/httpdispatch/internal/pkg/loggerfactory"
)

const (
	loggerConfigFile     = "LoggerConfig.toml"
	deploymentConfigFile = "deployment.toml"
)

// ServerConfig is the [server] section of deployment.toml.
type ServerConfig struct {
	Hostname string `koanf:"hostname"`
	Port     int    `koanf:"port"`
	// Offset shifts the listen port, matching multi-instance
	// deployments that share one base config.
	Offset int `koanf:"offset"`
}

// Addr returns the listen address, offset applied.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port+s.Offset)
}

// RoutingConfig is the [routing] section.
type RoutingConfig struct {
	// Mode is "legacy" (default) or "strict".
	Mode string `koanf:"mode"`
}

// CORSConfig is the [cors] section.
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	ExposeHeaders    []string `koanf:"expose_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// MetricsConfig is the [metrics] section.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Config is the deployment configuration for one engine instance.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Routing RoutingConfig `koanf:"routing"`
	CORS    CORSConfig    `koanf:"cors"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// Validate checks the constraints that must hold before serving.
func (c *Config) Validate() error {
	if c.Server.Hostname == "" {
		return fmt.Errorf("server hostname cannot be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got: %d", c.Server.Port)
	}
	if c.Server.Offset < 0 {
		return fmt.Errorf("server offset must be non-negative, got: %d", c.Server.Offset)
	}
	switch c.Routing.Mode {
	case "", "legacy", "strict":
	default:
		return fmt.Errorf("unknown routing mode %q", c.Routing.Mode)
	}
	return nil
}

// File wraps a loaded koanf instance for one config file.
type File struct {
	koanf *koanf.Koanf
	path  string
}

// ReadFile loads a toml config file.
func ReadFile(path string) (*File, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	return &File{koanf: k, path: path}, nil
}

// IsSet reports whether key exists in the file.
func (f *File) IsSet(key string) bool {
	return f.koanf.Exists(key)
}

// Unmarshal decodes the subtree at key into out.
func (f *File) Unmarshal(key string, out interface{}) error {
	if err := f.koanf.Unmarshal(key, out); err != nil {
		return fmt.Errorf("cannot unmarshal config for key %q: %w", key, err)
	}
	return nil
}

// Watch re-reads the file on change and pushes the logger settings to
// the loggerfactory, re-issuing loggers to registered components.
func (f *File) Watch() {
	provider := file.Provider(f.path)
	provider.Watch(func(event interface{}, err error) {
		if err != nil {
			slog.Error("config watch error", slog.String("error", err.Error()))
			return
		}
		k := koanf.New(".")
		if err := k.Load(provider, toml.Parser()); err != nil {
			slog.Error("error reloading config", slog.String("error", err.Error()))
			return
		}
		f.koanf = k
		applyLoggerConfig(f)
	})
}

func applyLoggerConfig(f *File) {
	var levelMap map[string]string
	var handlerConfig loggerfactory.SlogHandlerConfig
	if f.IsSet("logger") {
		if err := f.Unmarshal("logger.level.components", &levelMap); err != nil {
			slog.Error("invalid logger level config", slog.String("error", err.Error()))
		}
		if err := f.Unmarshal("logger.handler", &handlerConfig); err != nil {
			slog.Error("invalid logger handler config", slog.String("error", err.Error()))
		}
	}
	cm := loggerfactory.GetConfigManager()
	cm.SetLogLevelMap(levelMap)
	cm.SetSlogHandlerConfig(handlerConfig)
}

// Initialize reads LoggerConfig.toml and deployment.toml from the
// given directory, applies and watches the logger configuration, and
// returns the validated deployment config. LoggerConfig.toml is
// optional; deployment.toml is not.
func Initialize(confDirPath string) (*Config, error) {
	entries, err := os.ReadDir(confDirPath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no config files found in %s", confDirPath)
	}

	loggerPath := filepath.Join(confDirPath, loggerConfigFile)
	if _, err := os.Stat(loggerPath); err == nil {
		loggerFile, err := ReadFile(loggerPath)
		if err != nil {
			return nil, err
		}
		applyLoggerConfig(loggerFile)
		loggerFile.Watch()
	}

	deploymentFile, err := ReadFile(filepath.Join(confDirPath, deploymentConfigFile))
	if err != nil {
		return nil, err
	}
	if !deploymentFile.IsSet("server") {
		return nil, fmt.Errorf("server configuration section is required in %s", deploymentConfigFile)
	}
	cfg := &Config{}
	if err := deploymentFile.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
