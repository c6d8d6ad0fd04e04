// Package connection is the HTTP client tally-cli uses to reach a server.
//
// It unwraps the response envelope: data is decoded into the caller's
// target and error envelopes become *APIError.
package connection
