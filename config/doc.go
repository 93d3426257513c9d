// Package config loads deployment configuration from YAML and
// GUARDRAIL_-prefixed environment variables, with defaults matching
// each component's zero-value behavior. DSNs may reference environment
// variables with ${VAR} syntax; loading fails fast on missing ones.
package config
