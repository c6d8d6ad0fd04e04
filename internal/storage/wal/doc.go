// Package wal provides the write-ahead log of the durable engine.
//
// Every mutation is appended here before it is applied in memory, so the
// state after a crash is the last snapshot plus a replay of the log from the
// snapshot's offset.
//
// Record types:
//
//   - CREATE_ACCOUNT: token and creation time
//   - CREATE_COUNTER: token and the new counter (id, name, creation time)
//   - INCREMENT: token, counter id and calendar date
//
// Segment layout:
//
//	wal-<segment-id>.log
//	[magic:8 "TALYWAL\x01"]
//	[frame]*
//	[checksum:32 SHA-256 of all bytes above] (absent on a segment that was never closed)
//
// Frame layout:
//
//	[length:4][crc32:4][type:1][body:length-5]
//
// length counts crc, type and body (big-endian). The CRC (IEEE) covers
// type and body. The body is JSON; when a cipher is configured it is sealed
// with the cipher, the type byte carries FlagEncrypted, and the type byte is
// bound as additional data.
//
// A writer never appends to a segment left open by a previous process; it
// starts the next one. A torn frame at the tail of a crashed segment
// therefore only ends that segment, and the reader moves on.
package wal
