// Package metric owns the Prometheus registry of the server.
//
// Metrics:
//
//   - tally_operations_total{op,result}: store operations by outcome code
//   - tally_operation_duration_seconds{op}: store operation latency
//   - tally_store_retries_total{backend}: transient conflicts retried
//   - tally_http_requests_total{route,status}: HTTP requests by route pattern
//   - tally_accounts: accounts held by backends that can count them
//
// Labels never carry tokens or counter ids.
package metric
