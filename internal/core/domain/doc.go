// Package domain defines the core models of the counter store.
//
// Models are plain values without IO dependencies:
//
//   - Account: an anonymous, token-addressed owner of counters
//   - Counter: a named series of dated entries
//   - Entry: the count recorded for one calendar date
//   - Date: a civil date used as the aggregation bucket
//
// Values handed out by stores are deep copies; mutating them never changes
// stored state.
package domain
