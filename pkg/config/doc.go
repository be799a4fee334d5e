// Package config loads service settings from DD_* environment variables.
// Loading never fails; commands that need the full environment call
// ValidateServer and fail fast on anything missing.
package config
