// Package httpserver serves the counter API over HTTP or HTTPS.
//
// Routes:
//
//   - POST /accounts, GET /accounts/{token}
//   - POST|GET /accounts/{token}/counters, GET /accounts/{token}/counters/{id}
//   - POST /accounts/{token}/counters/{id}/increment
//   - GET /health, /ready, /metrics
//
// Every request passes Recover, RequestID, Audit and Metrics middleware.
// Tokens never appear in logs; paths are logged with the token replaced by
// its fingerprint.
package httpserver
