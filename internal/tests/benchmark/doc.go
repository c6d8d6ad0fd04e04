// Package benchmark holds performance benchmarks for the counter stores,
// the write-ahead log and snapshots.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run with specific account counts:
//
//	go test -bench=BenchmarkIncrement -benchmem -benchtime=10s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
