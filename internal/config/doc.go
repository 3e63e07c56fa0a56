// Package config loads asrsub's TOML configuration, applies defaults and
// ASRSUB_* environment overrides, and validates the result.
package config
