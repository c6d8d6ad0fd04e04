// Package config defines the tally-server configuration.
//
//   - spec.go: the configuration tree and its koanf keys
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: a copy safe to log
//
// Loading is done by internal/infra/confloader.
package config
