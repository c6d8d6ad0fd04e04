// Command tally-server runs the counter API.
//
// Usage:
//
//	tally-server -config /etc/tally-server/config.yaml
//
// Every setting may also come from the environment with the TALLY_ prefix,
// using "__" for nesting:
//
//	TALLY_STORAGE__BACKEND=sqlite TALLY_LOG__LEVEL=debug tally-server
//
// The process stops on SIGINT or SIGTERM, closing the HTTP listener first
// and the store last.
package main
