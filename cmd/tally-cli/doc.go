// Command tally-cli talks to a tally-server over HTTP.
//
// Usage:
//
//	tally-cli account create --save
//	tally-cli counter create "Daily Visits"
//	tally-cli counter inc daily-visits --date 2026-01-15
//	tally-cli -o json counter show daily-visits
//
// The server address and account token come from flags, then TALLY_SERVER
// and TALLY_TOKEN, then ~/.tally/cli.yaml.
package main
