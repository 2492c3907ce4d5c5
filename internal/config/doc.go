// Package config loads and validates the service configuration from a
// YAML file with ${VAR:-default} environment variable substitution.
package config
