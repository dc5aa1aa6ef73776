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

package types

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are the textual timestamp formats produced by the supported
// drivers and dialects.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsInt64 converts a driver or caller value to int64.
func AsInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case []byte:
		return AsInt64(string(n))
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return AsInt64(f)
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case float32:
		return AsInt64(float64(n))
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("integer overflow: %d", u)
		}
		return int64(u), nil
	case reflect.String:
		return AsInt64(rv.String())
	case reflect.Float32, reflect.Float64:
		return AsInt64(rv.Float())
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

// AsFloat64 converts a driver or caller value to float64.
func AsFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case []byte:
		return AsFloat64(string(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return AsFloat64(rv.String())
	}
	i, err := AsInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
	return float64(i), nil
}

// AsString converts a driver or caller value to string.
func AsString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case bool:
		return strconv.FormatBool(s), nil
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := AsInt64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(i, 10), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

// AsBool converts a driver or caller value to bool.
func AsBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case []byte:
		return AsBool(string(b))
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", b)
		}
		return p, nil
	}
	i, err := AsInt64(v)
	if err != nil || (i != 0 && i != 1) {
		return false, fmt.Errorf("cannot convert %T(%v) to boolean", v, v)
	}
	return i == 1, nil
}

// AsTime converts a driver or caller value to a UTC time.Time. Integers are
// read as Unix seconds.
func AsTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("nil time")
		}
		return t.UTC(), nil
	case []byte:
		return AsTime(string(t))
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("not a timestamp: %q", t)
	}
	i, err := AsInt64(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
	return time.Unix(i, 0).UTC(), nil
}

// NullInt64 returns nil for a NULL value, otherwise the converted integer.
func NullInt64(v interface{}) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	i, err := AsInt64(v)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// NullString returns nil for a NULL value, otherwise the converted string.
func NullString(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := AsString(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// NullTime returns nil for a NULL value, otherwise the converted time.
func NullTime(v interface{}) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := AsTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
