/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

// LogConfig controls every logger created by NewLogger.
type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Format      string `json:"format" yaml:"format"` // text、json
	Color       bool   `json:"color" yaml:"color"`
	FileEnabled bool   `json:"file_enabled" yaml:"file_enabled"`
	FileDir     string `json:"file_dir" yaml:"file_dir"`
	FileFormat  string `json:"file_format" yaml:"file_format"`
	MaxAgeDays  int    `json:"max_age_days" yaml:"max_age_days"`
}

// DefaultLogConfig returns the settings taken from LIMA_LOG_* environment
// variables.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       EnvDefaultString("LIMA_LOG_LEVEL", "info"),
		Format:      EnvDefaultString("LIMA_LOG_FORMAT", "text"),
		Color:       EnvDefaultBool("LIMA_LOG_COLOR", true),
		FileEnabled: EnvDefaultBool("LIMA_LOG_FILE_ENABLED", false),
		FileDir:     EnvDefaultString("LIMA_LOG_DIR", "logs"),
		FileFormat:  EnvDefaultString("LIMA_LOG_FILE_FORMAT", "text"),
		MaxAgeDays:  EnvDefaultInt("LIMA_LOG_MAX_AGE_DAYS", 7),
	}
}

var settingsMu sync.RWMutex

var (
	settings LogConfig = DefaultLogConfig()
	console  io.Writer = os.Stdout
)

var (
	registryMu sync.RWMutex
	registry   = map[string]*logrus.Logger{}
)

// Configure replaces the logging settings. Levels apply to existing loggers
// at once; formats and file output apply to loggers created afterwards.
func Configure(cfg LogConfig) {
	settingsMu.Lock()
	settings = cfg
	settingsMu.Unlock()
	SetAllLoggersLevel(ParseLogLevel(cfg.Level))
}

// SetConsoleOutput redirects console output of every logger.
func SetConsoleOutput(w io.Writer) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	console = w
}

func currentSettings() (LogConfig, io.Writer) {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings, console
}

// NewLogger returns a logrus logger tagged with name and registers it so its
// level can be changed by name later.
func NewLogger(name string) *logrus.Logger {
	cfg, _ := currentSettings()

	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(ParseLogLevel(cfg.Level))
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name, cfg.Format, cfg.Color))
	l.AddHook(&consoleHook{formatter: l.Formatter})
	if cfg.FileEnabled {
		if err := AddDailyRollingFileHook(l, name, cfg.FileDir, cfg.MaxAgeDays, cfg.FileFormat); err != nil {
			l.WithError(err).Warn("file logging disabled")
		}
	}

	registryMu.Lock()
	registry[name] = l
	registryMu.Unlock()
	return l
}

func newFormatter(name, format string, color bool) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &JSONLogFormatter{LoggerName: name}
	}
	return &TextLogFormatter{LoggerName: name, Color: color, NameWidth: 10}
}

type consoleHook struct {
	formatter logrus.Formatter
}

func (h *consoleHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, w := currentSettings()
	_, err = w.Write(b)
	return err
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// SetAllLoggersLevel applies lvl to every registered logger.
func SetAllLoggersLevel(lvl logrus.Level) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, lg := range registry {
		lg.SetLevel(lvl)
	}
}

// SetLoggerLevel changes the level of the logger registered under name.
func SetLoggerLevel(name string, lvlStr string) bool {
	registryMu.RLock()
	lg, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	lg.SetLevel(ParseLogLevel(lvlStr))
	return true
}
