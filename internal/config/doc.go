// Package config loads, normalizes, and validates fetchd configuration from
// TOML files with FETCHD_* environment overrides.
package config
