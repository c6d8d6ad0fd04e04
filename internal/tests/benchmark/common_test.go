package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/storage/memory"
	"github.com/yndnr/tally-go/internal/telemetry/logger"
	"github.com/yndnr/tally-go/pkg/token"
)

// AccountCounts are the store sizes benchmarks run against.
var AccountCounts = []int{1000, 10000, 50000, 100000}

// SmallAccountCounts for quick benchmarks.
var SmallAccountCounts = []int{1000, 5000, 10000}

// counterNames are created on every prefilled account.
var counterNames = []string{"Daily Visits", "Signups", "Errors"}

var baseDate = domain.MustParseDate("2026-01-01")

func init() {
	// Keep service logging out of benchmark output.
	logger.SetDefault(logger.NewNop())
}

// newToken returns a fresh account token.
func newToken(b *testing.B) string {
	tok, err := token.NewToken()
	if err != nil {
		b.Fatalf("NewToken() error = %v", err)
	}
	return tok
}

// uniqueName returns a counter name that never collides.
func uniqueName() string {
	return "c-" + strings.ToLower(ulid.Make().String())
}

// prefillStore creates count accounts, each with counterNames and a week of
// increments, and returns their tokens.
func prefillStore(b *testing.B, ctx context.Context, store *memory.Store, count int) []string {
	b.Helper()
	tokens := make([]string, count)
	for i := range tokens {
		tok := newToken(b)
		if _, err := store.CreateAccount(ctx, tok); err != nil {
			b.Fatalf("CreateAccount() error = %v", err)
		}
		for _, name := range counterNames {
			c, err := store.CreateCounter(ctx, tok, name)
			if err != nil {
				b.Fatalf("CreateCounter() error = %v", err)
			}
			for d := 0; d < 7; d++ {
				if _, err := store.Increment(ctx, tok, c.ID, baseDate.AddDays(d)); err != nil {
					b.Fatalf("Increment() error = %v", err)
				}
			}
		}
		tokens[i] = tok
	}
	return tokens
}

// accounts returns the prefilled accounts of a store.
func accounts(b *testing.B, count int) []*domain.Account {
	b.Helper()
	store := memory.New()
	prefillStore(b, context.Background(), store, count)
	return store.All()
}

// reportMemory reports heap usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithAccountCounts runs benchFn once per account count.
func runWithAccountCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("accounts_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
