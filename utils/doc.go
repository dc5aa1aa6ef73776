// Package utils provides the named logrus loggers used across the module:
// text or JSON console output, optional per-level daily log files and
// runtime level changes by logger name.
package utils
