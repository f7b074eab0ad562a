// Package config loads, normalizes, and validates burstline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours .env files plus BURSTLINE_*
// environment overrides for the database and notification settings. The
// Config type centralizes every knob the daemon and CLI need: storage
// locations, the SQL backend, variant sizes, external tool binaries, lane
// worker counts and retry policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
