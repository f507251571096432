// Package config handles loading and validation of the service configuration
// from a YAML file, with environment-variable overrides for API keys.
package config
