// Package config loads, normalizes, and validates arcmigrate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ARCMIGRATE_CATALOG_USER and ARCMIGRATE_CATALOG_PASSWORD. The Config type
// centralizes every knob the migration run and CLI need, so the media root,
// staging area and collaborator endpoints are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
