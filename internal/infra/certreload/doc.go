// Package certreload serves a TLS key pair from disk and swaps it in when
// the files change, so certificates can be rotated without a restart.
package certreload
