// Package logging provides structured logging for meshgate core.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same shape: JSON in production, text in development,
// and the service and version fields on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("gateway authenticated", "gateway_id", gw.ID)
//
// # Security
//
// Never log gateway secrets, relay passwords or admin tokens.
// Log the stored key prefix instead:
//
//	logger.Warn("publish denied", "key_prefix", gw.APIKeyPrefix)
package logging
