// Package handler implements the JSON endpoints of the counter API.
//
// Every response uses the envelope {code, message, request_id, timestamp,
// data}. Unknown accounts and unknown counters answer with the same 404 so
// a caller cannot probe which tokens exist.
package handler
