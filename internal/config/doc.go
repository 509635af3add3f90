// Package config loads, normalizes, and validates intake's TOML
// configuration.
//
// Defaults live in defaults.go and the embedded sample_config.toml; Load
// resolves the config file (explicit path, ~/.config/intake/config.toml, or
// ./intake.toml), decodes it over the defaults, expands ~ in path fields,
// and validates the result. All duration-like settings are stored as integer
// seconds in TOML and exposed as time.Duration accessors.
package config
