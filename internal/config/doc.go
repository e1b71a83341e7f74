// Package config loads, normalizes, and validates mixtape configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as MIXTAPE_FFMPEG and MINIO_SECRET_KEY. The
// Config type centralizes every knob the batch pipeline and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
