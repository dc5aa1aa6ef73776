// Package database provides connection management, YAML and environment
// configuration, query log / slow query / metrics hooks, health checks,
// driver error classification and logging built on top of Bun.
package database
