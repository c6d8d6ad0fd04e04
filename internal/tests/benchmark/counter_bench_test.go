package benchmark

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/storage/memory"
)

func BenchmarkCreateAccount(b *testing.B) {
	runWithAccountCounts(b, SmallAccountCounts, func(b *testing.B, count int) {
		ctx := context.Background()
		store := memory.New()
		prefillStore(b, ctx, store, count)
		svc := service.NewAccountService(store)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := svc.CreateAccount(ctx); err != nil {
				b.Fatalf("CreateAccount() error = %v", err)
			}
		}
	})
}

func BenchmarkGetAccount(b *testing.B) {
	runWithAccountCounts(b, AccountCounts, func(b *testing.B, count int) {
		ctx := context.Background()
		store := memory.New()
		tokens := prefillStore(b, ctx, store, count)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := store.GetAccount(ctx, tokens[i%count]); err != nil {
				b.Fatalf("GetAccount() error = %v", err)
			}
		}
	})
}

func BenchmarkCreateCounter(b *testing.B) {
	ctx := context.Background()
	store := memory.New()
	tok := newToken(b)
	if _, err := store.CreateAccount(ctx, tok); err != nil {
		b.Fatal(err)
	}
	names := make([]string, b.N)
	for i := range names {
		names[i] = uniqueName()
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := store.CreateCounter(ctx, tok, names[i]); err != nil {
			b.Fatalf("CreateCounter() error = %v", err)
		}
	}
}

func BenchmarkIncrement(b *testing.B) {
	runWithAccountCounts(b, AccountCounts, func(b *testing.B, count int) {
		ctx := context.Background()
		store := memory.New()
		tokens := prefillStore(b, ctx, store, count)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := store.Increment(ctx, tokens[i%count], "signups", baseDate.AddDays(i%30)); err != nil {
				b.Fatalf("Increment() error = %v", err)
			}
		}
	})
}

// BenchmarkIncrementParallel measures increments spread over many accounts.
func BenchmarkIncrementParallel(b *testing.B) {
	ctx := context.Background()
	store := memory.New()
	tokens := prefillStore(b, ctx, store, 10000)
	var next atomic.Uint64

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := next.Add(1)
			if _, err := store.Increment(ctx, tokens[n%uint64(len(tokens))], "errors", baseDate); err != nil {
				b.Errorf("Increment() error = %v", err)
				return
			}
		}
	})
}

// BenchmarkIncrementContended measures increments on a single counter.
func BenchmarkIncrementContended(b *testing.B) {
	ctx := context.Background()
	store := memory.New()
	tok := prefillStore(b, ctx, store, 1)[0]

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := store.Increment(ctx, tok, "daily-visits", baseDate); err != nil {
				b.Errorf("Increment() error = %v", err)
				return
			}
		}
	})
}

func BenchmarkListCounters(b *testing.B) {
	runWithAccountCounts(b, SmallAccountCounts, func(b *testing.B, count int) {
		ctx := context.Background()
		store := memory.New()
		tokens := prefillStore(b, ctx, store, count)

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := store.ListCounters(ctx, tokens[i%count]); err != nil {
				b.Fatalf("ListCounters() error = %v", err)
			}
		}
	})
}

func BenchmarkStoreMemory(b *testing.B) {
	runWithAccountCounts(b, AccountCounts, func(b *testing.B, count int) {
		for i := 0; i < b.N; i++ {
			store := memory.New()
			prefillStore(b, context.Background(), store, count)
			reportMemory(b, "heap")
		}
	})
}
