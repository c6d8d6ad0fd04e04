// Package logger provides structured logging built on log/slog.
//
//   - logger.go: handler setup, runtime level changes, default logger
//   - context.go: request-scoped loggers and request IDs
//   - redact.go: masking of capability tokens and secrets
//
// Account tokens are credentials. Any attribute that carries one is
// replaced by its fingerprint before it reaches the handler.
package logger
