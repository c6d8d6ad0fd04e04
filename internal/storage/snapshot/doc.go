// Package snapshot writes and loads full dumps of the account state.
//
// A snapshot records the WAL offset it covers, so recovery loads the newest
// valid snapshot and replays the log from that offset only.
//
// File layout:
//
//	snapshot-<yyyymmddhhmmss>-<seq>.snap
//	[magic:8 "TALYSNAP"]
//	[headerLen:4][header JSON]
//	[dataLen:4][data]   JSON accounts, sealed when a cipher is configured
//	[checksum:32 SHA-256 of all bytes above]
//
// Files are written to a temporary name, fsynced and renamed into place.
// A snapshot whose checksum does not match is skipped in favour of the
// next older one.
package snapshot
