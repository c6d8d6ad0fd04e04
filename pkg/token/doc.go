// Package token mints capability tokens for anonymous accounts.
//
// Token format:
//
//   - 32 bytes drawn from crypto/rand
//   - digested with SHA-256
//   - encoded as 64 lower-case hex characters
//
// A token is the only credential an account has, so it is never logged in
// clear. Use Fingerprint to correlate log lines.
package token
