// Package storage opens the configured account store.
//
// Five backends implement service.AccountStore:
//
//   - memory: sharded in-process maps, nothing survives a restart
//   - wal: the memory store made durable by a write-ahead log and
//     periodic snapshots (Engine), optionally encrypted at rest
//   - badger: an embedded Badger database (badgerstore)
//   - postgres, sqlite: a SQL database through database/sql (sqlstore)
//
// Open picks one from Options and returns it as a Backend.
package storage
