// Package config holds tally-cli defaults stored in ~/.tally/cli.yaml.
//
// The file remembers the server address, the preferred output format and
// optionally the token of the account in use, so that
// "tally-cli counter inc visits" needs no flags.
package config
