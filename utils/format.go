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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// TextLogFormatter writes Log4j-style lines:
//
//	2026-01-02 15:04:05.000    INFO 4242   ---   DATABASE dir/file.go:42 : message key=value
type TextLogFormatter struct {
	LoggerName string
	Color      bool
	NameWidth  int
}

func (f *TextLogFormatter) paint(attr color.Attribute, s string) string {
	if !f.Color {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (f *TextLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Time.Format(timestampFormat))
	b.WriteByte(' ')
	b.WriteString(f.paint(levelColor(entry.Level), fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String()))))
	b.WriteByte(' ')
	b.WriteString(f.paint(color.FgMagenta, fmt.Sprintf("%-6d", os.Getpid())))
	b.WriteString(" --- ")
	b.WriteString(f.paint(color.FgCyan, fmt.Sprintf("%*s", f.NameWidth, limitRunes(f.LoggerName, f.NameWidth))))
	if entry.Caller != nil {
		b.WriteByte(' ')
		b.WriteString(f.paint(color.Faint, fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)))
	}
	b.WriteString(" : ")
	b.WriteString(entry.Message)
	for _, k := range sortedFieldKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func levelColor(level logrus.Level) color.Attribute {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return color.FgRed
	case logrus.WarnLevel:
		return color.FgYellow
	case logrus.InfoLevel:
		return color.FgGreen
	case logrus.DebugLevel:
		return color.FgBlue
	default:
		return color.FgMagenta
	}
}

// JSONLogFormatter writes one JSON object per line.
type JSONLogFormatter struct {
	LoggerName string
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(timestampFormat),
		Level:   entry.Level.String(),
		Logger:  f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = fmt.Sprintf("%s:%d", shortPath(entry.Caller.File), entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func sortedFieldKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

// shortPath keeps the last directory and the file name.
func shortPath(p string) string {
	p = filepath.ToSlash(p)
	parts := strings.Split(p, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return p
}
