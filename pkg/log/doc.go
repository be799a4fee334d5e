/*
Package log provides structured logging for Datadex using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

Initializing the logger:

	import "github.com/cuemby/datadex/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
	})

Simple logging:

	log.Info("catalog migrated")
	log.Error("failed to pull messages")

Structured logging:

	log.Logger.Info().
		Str("dataset", "sales").
		Int64("size", 2048).
		Msg("partition registered")

Component loggers:

	ingestLog := log.WithComponent("ingest")
	ingestLog.Error().Err(err).Str("message_id", id).Msg("dispatch failed")

# Integration Points

This package integrates with:

  - pkg/catalog: logs query failures and migration progress
  - pkg/ingest: logs pull/ack outcomes with message IDs
  - pkg/api: logs request handling errors
  - pkg/bucket: logs descriptor upload failures

Never log passwords or password hashes; handlers log only emails and API-key
UUIDs.

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
