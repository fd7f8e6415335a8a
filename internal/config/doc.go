// Package config loads, normalizes, and validates snag's TOML configuration.
//
// Configuration sections by subsystem:
//   - Paths: working directories, daemon socket, and API bind address
//   - Provision: binary distribution endpoints and timeouts
//   - Download: fetcher output preferences
//   - Logging: log format and level
//
// Load applies defaults for missing values, expands "~" in path fields, and
// rejects unusable combinations before the daemon starts.
package config
