// Package service provides the account service of Tally.
//
// AccountService is the boundary-facing facade over an AccountStore. It
// mints tokens, validates counter names before they reach the store,
// defaults increment dates to today in the configured zone, and records
// per-operation metrics.
//
// Services are stateless and safe for concurrent use; all state lives in
// the injected store.
package service
