// Package config loads, normalizes, and validates oracletom configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TOM_USERNAME, TOM_PASSWORD, TOM_PASSWORD_FILE, and ORACLE_MODEL_PATH. The
// Config type centralizes every knob the CLI needs: TOM credentials, the
// hot-transient query, the model backend, and output locations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
