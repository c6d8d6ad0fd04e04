package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/storage/memory"
	"github.com/yndnr/tally-go/pkg/token"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

type fixedTokens struct{ tok string }

func (f fixedTokens) NewToken() (string, error) { return f.tok, nil }

type opRecord struct {
	op, result string
}

type recordingRecorder struct {
	mu   sync.Mutex
	seen []opRecord
}

func (r *recordingRecorder) ObserveOperation(op, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, opRecord{op, result})
}

// brokenStore fails every call with a non-domain error.
type brokenStore struct{ err error }

func (b brokenStore) CreateAccount(context.Context, string) (*domain.Account, error) {
	return nil, b.err
}
func (b brokenStore) GetAccount(context.Context, string) (*domain.Account, error) {
	return nil, b.err
}
func (b brokenStore) CreateCounter(context.Context, string, string) (*domain.Counter, error) {
	return nil, b.err
}
func (b brokenStore) ListCounters(context.Context, string) ([]domain.Counter, error) {
	return nil, b.err
}
func (b brokenStore) Increment(context.Context, string, string, domain.Date) (*domain.Counter, error) {
	return nil, b.err
}

func newTestService(t *testing.T, opts ...Option) (*AccountService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewAccountService(store, opts...), store
}

func TestAccountService_CreateAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if len(acct.Token) != token.Length {
		t.Errorf("token length = %d, want %d", len(acct.Token), token.Length)
	}
	if len(acct.Counters) != 0 {
		t.Errorf("new account has %d counters", len(acct.Counters))
	}
	if !store.HasAccount(acct.Token) {
		t.Error("account not stored")
	}
}

func TestAccountService_CreateAccount_RandomSourceFailure(t *testing.T) {
	svc, store := newTestService(t, WithTokenSource(token.Generator{Reader: failingReader{}}))

	_, err := svc.CreateAccount(context.Background())
	if !errors.Is(err, domain.ErrRandomSourceUnavailable) {
		t.Fatalf("error = %v, want ErrRandomSourceUnavailable", err)
	}
	if !errors.Is(err, token.ErrRandomSourceUnavailable) {
		t.Error("cause should keep token.ErrRandomSourceUnavailable")
	}
	if store.Count() != 0 {
		t.Errorf("store has %d accounts after failure", store.Count())
	}
}

func TestAccountService_CreateAccount_DuplicateToken(t *testing.T) {
	svc, _ := newTestService(t, WithTokenSource(fixedTokens{tok: "fixed"}))
	ctx := context.Background()

	if _, err := svc.CreateAccount(ctx); err != nil {
		t.Fatalf("first CreateAccount() error = %v", err)
	}
	if _, err := svc.CreateAccount(ctx); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("second CreateAccount() error = %v, want ErrDuplicateToken", err)
	}
}

func TestAccountService_CreateCounter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)

	c, err := svc.CreateCounter(ctx, &CreateCounterRequest{Token: acct.Token, Name: "Daily Visits"})
	if err != nil {
		t.Fatalf("CreateCounter() error = %v", err)
	}
	if c.ID != "daily-visits" || c.Name != "Daily Visits" {
		t.Errorf("counter = %+v", c)
	}

	tests := []struct {
		name string
		req  *CreateCounterRequest
		want error
	}{
		{"same normalized name", &CreateCounterRequest{Token: acct.Token, Name: "  Daily   Visits!! "}, domain.ErrDuplicateCounter},
		{"blank name", &CreateCounterRequest{Token: acct.Token, Name: "  !!  "}, domain.ErrInvalidName},
		{"unknown token", &CreateCounterRequest{Token: "nope", Name: "x"}, domain.ErrAccountNotFound},
		{"empty token", &CreateCounterRequest{Name: "x"}, domain.ErrAccountNotFound},
		{"nil request", nil, domain.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateCounter(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("CreateCounter() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAccountService_Increment_DefaultsToToday(t *testing.T) {
	// 23:30 UTC is already the next day in Tokyo.
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	svc, _ := newTestService(t, WithClock(func() time.Time { return now }), WithLocation(tokyo))
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)
	c, _ := svc.CreateCounter(ctx, &CreateCounterRequest{Token: acct.Token, Name: "hits"})

	got, err := svc.Increment(ctx, &IncrementRequest{Token: acct.Token, CounterID: c.ID})
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	want := domain.MustParseDate("2024-03-10")
	if len(got.Entries) != 1 || got.Entries[0].Date != want || got.Entries[0].Count != 1 {
		t.Errorf("entries = %+v, want one entry on %s", got.Entries, want)
	}
	if svc.Today() != want {
		t.Errorf("Today() = %s, want %s", svc.Today(), want)
	}
}

func TestAccountService_Increment_ExplicitDate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)
	c, _ := svc.CreateCounter(ctx, &CreateCounterRequest{Token: acct.Token, Name: "hits"})

	d := domain.MustParseDate("2020-02-29")
	for i := 0; i < 3; i++ {
		if _, err := svc.Increment(ctx, &IncrementRequest{Token: acct.Token, CounterID: c.ID, Date: &d}); err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
	}

	got, err := svc.GetCounter(ctx, acct.Token, c.ID)
	if err != nil {
		t.Fatalf("GetCounter() error = %v", err)
	}
	if e, ok := got.EntryFor(d); !ok || e.Count != 3 {
		t.Errorf("entry for %s = %+v, %v; want count 3", d, e, ok)
	}
}

func TestAccountService_Increment_Errors(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)
	zero := domain.Date{}

	tests := []struct {
		name string
		req  *IncrementRequest
		want error
	}{
		{"unknown token", &IncrementRequest{Token: "nonexistent", CounterID: "x"}, domain.ErrAccountNotFound},
		{"unknown counter", &IncrementRequest{Token: acct.Token, CounterID: "x"}, domain.ErrCounterNotFound},
		{"empty counter id", &IncrementRequest{Token: acct.Token}, domain.ErrCounterNotFound},
		{"zero date", &IncrementRequest{Token: acct.Token, CounterID: "x", Date: &zero}, domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Increment(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Increment() error = %v, want %v", err, tt.want)
			}
		})
	}

	if store.Count() != 1 {
		t.Errorf("store has %d accounts, want 1", store.Count())
	}
}

func TestAccountService_GetCounter_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)

	if _, err := svc.GetCounter(ctx, acct.Token, "missing"); !errors.Is(err, domain.ErrCounterNotFound) {
		t.Errorf("GetCounter() error = %v, want ErrCounterNotFound", err)
	}
	if _, err := svc.GetCounter(ctx, "", "missing"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("GetCounter(empty token) error = %v, want ErrAccountNotFound", err)
	}
}

func TestAccountService_ListCounters_CreationOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)

	for _, name := range []string{"b", "a", "c"} {
		if _, err := svc.CreateCounter(ctx, &CreateCounterRequest{Token: acct.Token, Name: name}); err != nil {
			t.Fatalf("CreateCounter(%q) error = %v", name, err)
		}
	}

	cs, err := svc.ListCounters(ctx, acct.Token)
	if err != nil {
		t.Fatalf("ListCounters() error = %v", err)
	}
	var ids []string
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "a" || ids[2] != "c" {
		t.Errorf("ids = %v, want [b a c]", ids)
	}
}

func TestAccountService_StoreFailureWrapped(t *testing.T) {
	cause := errors.New("disk on fire")
	svc := NewAccountService(brokenStore{err: cause})
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, "tok")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved")
	}

	canceled := NewAccountService(brokenStore{err: context.Canceled})
	if _, err := canceled.ListCounters(ctx, "tok"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("cancelled error = %v, want ErrStoreUnavailable", err)
	}
}

func TestAccountService_Recorder(t *testing.T) {
	rec := &recordingRecorder{}
	svc, _ := newTestService(t, WithRecorder(rec))
	ctx := context.Background()

	acct, _ := svc.CreateAccount(ctx)
	_, _ = svc.GetAccount(ctx, "missing")
	_, _ = svc.ListCounters(ctx, acct.Token)

	want := []opRecord{
		{OpCreateAccount, "ok"},
		{OpGetAccount, domain.ErrAccountNotFound.Code},
		{OpListCounters, "ok"},
	}
	if len(rec.seen) != len(want) {
		t.Fatalf("recorded %v, want %v", rec.seen, want)
	}
	for i := range want {
		if rec.seen[i] != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, rec.seen[i], want[i])
		}
	}
}

func TestAccountService_ConcurrentIncrements(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct, _ := svc.CreateAccount(ctx)
	c, _ := svc.CreateCounter(ctx, &CreateCounterRequest{Token: acct.Token, Name: "hits"})
	d := domain.MustParseDate("2024-01-01")

	const workers, perWorker = 16, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := svc.Increment(ctx, &IncrementRequest{Token: acct.Token, CounterID: c.ID, Date: &d}); err != nil {
					t.Errorf("Increment() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := svc.GetCounter(ctx, acct.Token, c.ID)
	if e, _ := got.EntryFor(d); e.Count != workers*perWorker {
		t.Errorf("count = %d, want %d", e.Count, workers*perWorker)
	}
}
