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

// Package loggerfactory hands out slog loggers with per-component
// levels. Components that keep a logger can implement LoggerUser to be
// re-issued one when the logging configuration is reloaded.
package loggerfactory

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// SlogHandlerConfig selects the handler backing issued loggers.
type SlogHandlerConfig struct {
	// Format is "json" or "text". Empty means text.
	Format string `koanf:"format"`
	// OutputPath is "stdout" or "stderr". Empty means stdout.
	OutputPath string `koanf:"outputPath"`
}

// LoggerUser is implemented by components that hold on to a logger and
// need a fresh one after a configuration reload.
type LoggerUser interface {
	UpdateLogger()
}

// ConfigManager holds the logging configuration and the components to
// notify on change.
type ConfigManager struct {
	mu                   sync.RWMutex
	levelMap             map[string]string
	handlerConfig        SlogHandlerConfig
	registeredComponents map[string]LoggerUser
}

var (
	configManagerInstance *ConfigManager
	once                  sync.Once
)

// GetConfigManager returns the process-wide configuration manager.
func GetConfigManager() *ConfigManager {
	once.Do(func() {
		configManagerInstance = &ConfigManager{
			levelMap:             make(map[string]string),
			registeredComponents: make(map[string]LoggerUser),
		}
	})
	return configManagerInstance
}

// SetLogLevelMap replaces the per-component level map and notifies
// registered components.
func (cm *ConfigManager) SetLogLevelMap(levelMap map[string]string) {
	cm.mu.Lock()
	if levelMap == nil {
		levelMap = make(map[string]string)
	}
	cm.levelMap = levelMap
	toNotify := cm.componentsLocked()
	cm.mu.Unlock()

	for _, c := range toNotify {
		c.UpdateLogger()
	}
}

// SetSlogHandlerConfig replaces the handler configuration and notifies
// registered components.
func (cm *ConfigManager) SetSlogHandlerConfig(config SlogHandlerConfig) {
	cm.mu.Lock()
	cm.handlerConfig = config
	toNotify := cm.componentsLocked()
	cm.mu.Unlock()

	for _, c := range toNotify {
		c.UpdateLogger()
	}
}

// componentsLocked copies the registered components so notification
// happens outside the lock.
func (cm *ConfigManager) componentsLocked() []LoggerUser {
	toNotify := make([]LoggerUser, 0, len(cm.registeredComponents))
	for _, c := range cm.registeredComponents {
		toNotify = append(toNotify, c)
	}
	return toNotify
}

// RegisterLoggerUser records a component for reload notifications.
func (cm *ConfigManager) RegisterLoggerUser(componentName string, component LoggerUser) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.registeredComponents[componentName]; !ok {
		cm.registeredComponents[componentName] = component
	}
}

func (cm *ConfigManager) levelFor(componentName string) slog.Leveler {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if levelStr, ok := cm.levelMap[componentName]; ok {
		return LevelFromString(levelStr)
	}
	return slog.LevelInfo
}

func (cm *ConfigManager) handler() slog.Handler {
	cm.mu.RLock()
	config := cm.handlerConfig
	cm.mu.RUnlock()

	out := os.Stdout
	if config.OutputPath == "stderr" {
		out = os.Stderr
	}
	if config.Format == "json" {
		return slog.NewJSONHandler(out, nil)
	}
	return slog.NewTextHandler(out, nil)
}

// LevelFromString maps a config string to a slog level. Unknown
// strings map to Info.
func LevelFromString(levelStr string) slog.Leveler {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// GetLogger returns a logger for the named component, registering the
// component for reload notifications when it implements LoggerUser.
func GetLogger(componentName string, component interface{}) *slog.Logger {
	cm := GetConfigManager()
	if loggerUser, ok := component.(LoggerUser); ok {
		cm.RegisterLoggerUser(componentName, loggerUser)
	}
	handler := NewLevelHandler(cm.levelFor(componentName), cm.handler())
	return slog.New(handler).With(slog.String("component", componentName))
}

// A LevelHandler wraps a Handler with an Enabled method that returns
// false for levels below a minimum.
type LevelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

// NewLevelHandler returns a LevelHandler with the given level. All
// methods except Enabled delegate to h.
func NewLevelHandler(level slog.Leveler, h slog.Handler) *LevelHandler {
	// Avoid chains of LevelHandlers.
	if lh, ok := h.(*LevelHandler); ok {
		h = lh.Handler()
	}
	return &LevelHandler{level, h}
}

func (h *LevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LevelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *LevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewLevelHandler(h.level, h.handler.WithAttrs(attrs))
}

func (h *LevelHandler) WithGroup(name string) slog.Handler {
	return NewLevelHandler(h.level, h.handler.WithGroup(name))
}

// Handler returns the Handler wrapped by h.
func (h *LevelHandler) Handler() slog.Handler {
	return h.handler
}
