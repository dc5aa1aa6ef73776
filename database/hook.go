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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var silent atomic.Bool

// SetQueryLogSilent mutes the query log and slow query hooks process-wide.
func SetQueryLogSilent(b bool) {
	silent.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var operationHighlights = map[string]*color.Color{
	"SELECT": color.New(color.BgGreen, color.FgHiWhite),
	"INSERT": color.New(color.BgBlue, color.FgHiWhite),
	"UPDATE": color.New(color.BgYellow, color.FgHiWhite),
	"DELETE": color.New(color.BgMagenta, color.FgHiWhite),
}

var (
	otherOperation     = color.New(color.FgRed)
	otherHighlight     = color.New(color.BgRed, color.FgHiWhite)
	queryTag           = color.New(color.FgCyan)
	slowTag            = color.New(color.FgYellow)
	errorHighlight     = color.New(color.BgRed)
	queryLogTimeLayout = "2006-01-02 15:04:05.000"
)

func paintQuery(event *bun.QueryEvent, highlight bool) string {
	op := event.Operation()
	if highlight {
		if c, ok := operationHighlights[op]; ok {
			return c.Sprint(event.Query)
		}
		return otherHighlight.Sprint(event.Query)
	}
	if c, ok := operationColors[op]; ok {
		return c.Sprint(event.Query)
	}
	return otherOperation.Sprint(event.Query)
}

func queryLine(tag string, tagColor *color.Color, d time.Duration, query string) []interface{} {
	return []interface{}{
		time.Now().Format(queryLogTimeLayout),
		tagColor.Sprintf("%12s", tag),
		fmt.Sprintf("%12s", d.Round(time.Microsecond)),
		" ", query,
	}
}

// QueryHook prints failed queries, or every query when verbose, colour-coded
// by operation. The environment variable named by envName overrides the
// switches at query time: unset keeps them, "0" or empty disables, "2"
// enables verbose, anything else enables failures only.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook creates a query log hook writing to w (os.Stdout when nil).
func NewQueryHook(envName string, enabled, verbose bool, w io.Writer) *QueryHook {
	if w == nil {
		w = os.Stdout
	}
	return &QueryHook{envName: envName, enabled: enabled, verbose: verbose, writer: w}
}

func (h *QueryHook) switches() (enabled, verbose bool) {
	if env, ok := os.LookupEnv(h.envName); ok {
		return env != "" && env != "0", env == "2"
	}
	return h.enabled, h.verbose
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() {
		return
	}
	enabled, verbose := h.switches()
	if !enabled {
		return
	}
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) && !errors.Is(event.Err, sql.ErrTxDone)
	if !failed && !verbose {
		return
	}

	line := queryLine("[BUN]", queryTag, time.Since(event.StartTime), paintQuery(event, false))
	if failed {
		_, kind := IsSqlError(event.Err)
		line = append(line, "\t", errorHighlight.Sprintf(" %s: %s ", kind, event.Err))
	}
	_, _ = fmt.Fprintln(h.writer, line...)
}

// SlowQueryHook reports successful queries slower than threshold through the
// logger and, when a writer is set, as a highlighted console line.
type SlowQueryHook struct {
	threshold time.Duration
	logger    Logger
	writer    io.Writer
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

// NewSlowQueryHook creates a slow query hook with the given threshold.
func NewSlowQueryHook(threshold time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{threshold: threshold, logger: logger}
}

// WithWriter additionally prints slow queries to w.
func (h *SlowQueryHook) WithWriter(w io.Writer) *SlowQueryHook {
	h.writer = w
	return h
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() || event.Err != nil {
		return
	}
	elapsed := time.Since(event.StartTime)
	if elapsed <= h.threshold {
		return
	}
	if h.logger != nil {
		h.logger.Warn("Database slow query detected",
			"duration", elapsed,
			"slow_threshold", h.threshold,
			"query", event.Query,
		)
	}
	if h.writer != nil {
		_, _ = fmt.Fprintln(h.writer, queryLine("[BUN_SLOW]", slowTag, elapsed, paintQuery(event, true))...)
	}
}
