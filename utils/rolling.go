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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// levelFileHook writes each entry to the file of its level.
type levelFileHook struct {
	writers   map[logrus.Level]io.Writer
	formatter logrus.Formatter
}

func (h *levelFileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *levelFileHook) Fire(e *logrus.Entry) error {
	w, ok := h.writers[e.Level]
	if !ok {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// dailyFileWriter appends to <dir>/<yyyy-mm-dd>/<name>.log and removes day
// directories older than maxAgeDays when the day changes.
type dailyFileWriter struct {
	dir        string
	name       string
	maxAgeDays int
	now        func() time.Time

	mu      sync.Mutex
	curDate string
	file    *os.File
}

func newDailyFileWriter(dir, name string, maxAgeDays int) *dailyFileWriter {
	return &dailyFileWriter{dir: dir, name: name, maxAgeDays: maxAgeDays, now: time.Now}
}

func (w *dailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().Format("2006-01-02")
	if w.file == nil || w.curDate != date {
		if err := w.rotate(date); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *dailyFileWriter) rotate(date string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	day := filepath.Join(w.dir, date)
	if err := os.MkdirAll(day, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(day, w.name+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.curDate = date
	w.cleanup()
	return nil
}

func (w *dailyFileWriter) cleanup() {
	if w.maxAgeDays <= 0 {
		return
	}
	cutoff := w.now().AddDate(0, 0, -w.maxAgeDays).Format("2006-01-02")
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse("2006-01-02", e.Name()); err != nil {
			continue
		}
		if e.Name() < cutoff {
			_ = os.RemoveAll(filepath.Join(w.dir, e.Name()))
		}
	}
}

// Close closes the current file.
func (w *dailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// AddDailyRollingFileHook makes l also write to per-level daily files under
// dir. Fatal and panic entries go to the error file.
func AddDailyRollingFileHook(l *logrus.Logger, name, dir string, maxAgeDays int, format string) error {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	var formatter logrus.Formatter = &TextLogFormatter{LoggerName: name, NameWidth: 10}
	if strings.EqualFold(format, "json") {
		formatter = &JSONLogFormatter{LoggerName: name}
	}

	errorW := newDailyFileWriter(dir, "error", maxAgeDays)
	l.AddHook(&levelFileHook{
		writers: map[logrus.Level]io.Writer{
			logrus.TraceLevel: newDailyFileWriter(dir, "trace", maxAgeDays),
			logrus.DebugLevel: newDailyFileWriter(dir, "debug", maxAgeDays),
			logrus.InfoLevel:  newDailyFileWriter(dir, "info", maxAgeDays),
			logrus.WarnLevel:  newDailyFileWriter(dir, "warn", maxAgeDays),
			logrus.ErrorLevel: errorW,
			logrus.FatalLevel: errorW,
			logrus.PanicLevel: errorW,
		},
		formatter: formatter,
	})
	return nil
}
