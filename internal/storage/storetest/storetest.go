// Package storetest holds the behavioural suite every AccountStore backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/pkg/token"
)

// Opener returns a fresh, empty store. Cleanup is registered on t.
type Opener func(t *testing.T) service.AccountStore

// Concurrency knobs shared by the concurrent cases.
const (
	Workers   = 8
	PerWorker = 25
)

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(*testing.T, service.AccountStore)
	}{
		{"CreateAndGetAccount", testCreateAndGetAccount},
		{"DuplicateToken", testDuplicateToken},
		{"UnknownTokenHasNoSideEffects", testUnknownToken},
		{"CreateCounterNormalizes", testCreateCounterNormalizes},
		{"InvalidName", testInvalidName},
		{"ConcurrentCreateCounter", testConcurrentCreateCounter},
		{"ConcurrentIncrement", testConcurrentIncrement},
		{"DistinctDates", testDistinctDates},
		{"AccountIsolation", testAccountIsolation},
		{"CreationOrder", testCreationOrder},
		{"ReturnsCopies", testReturnsCopies},
		{"IncrementReturnsUpdatedCounter", testIncrementReturnsUpdatedCounter},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

// NewToken returns a fresh random token or fails the test.
func NewToken(t *testing.T) string {
	t.Helper()
	tok, err := token.NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	return tok
}

// MustAccount creates an account with a fresh token.
func MustAccount(t *testing.T, s service.AccountStore) string {
	t.Helper()
	tok := NewToken(t)
	if _, err := s.CreateAccount(context.Background(), tok); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return tok
}

// MustCounter creates a counter and returns its id.
func MustCounter(t *testing.T, s service.AccountStore, tok, name string) string {
	t.Helper()
	c, err := s.CreateCounter(context.Background(), tok, name)
	if err != nil {
		t.Fatalf("CreateCounter(%q) error = %v", name, err)
	}
	return c.ID
}

// FindCounter returns the counter with id from a listing.
func FindCounter(t *testing.T, s service.AccountStore, tok, id string) domain.Counter {
	t.Helper()
	cs, err := s.ListCounters(context.Background(), tok)
	if err != nil {
		t.Fatalf("ListCounters() error = %v", err)
	}
	for _, c := range cs {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("counter %q not listed", id)
	return domain.Counter{}
}

var day = domain.MustParseDate("2024-05-01")

func testCreateAndGetAccount(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := NewToken(t)

	created, err := s.CreateAccount(ctx, tok)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if created.Token != tok || created.CreatedAt.IsZero() || len(created.Counters) != 0 {
		t.Fatalf("CreateAccount() = %+v", created)
	}

	got, err := s.GetAccount(ctx, tok)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got.Token != tok || len(got.Counters) != 0 {
		t.Errorf("GetAccount() = %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func testDuplicateToken(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)
	id := MustCounter(t, s, tok, "kept")

	if _, err := s.CreateAccount(ctx, tok); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Fatalf("CreateAccount(dup) error = %v, want ErrDuplicateToken", err)
	}
	// The original account is untouched.
	FindCounter(t, s, tok, id)
}

func testUnknownToken(t *testing.T, s service.AccountStore) {
	ctx := context.Background()

	if _, err := s.GetAccount(ctx, "nonexistent"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("GetAccount() error = %v, want ErrAccountNotFound", err)
	}
	if _, err := s.Increment(ctx, "nonexistent", "x", day); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Increment() error = %v, want ErrAccountNotFound", err)
	}
	if _, err := s.CreateCounter(ctx, "nonexistent", "x"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("CreateCounter() error = %v, want ErrAccountNotFound", err)
	}
	if _, err := s.ListCounters(ctx, "nonexistent"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("ListCounters() error = %v, want ErrAccountNotFound", err)
	}
	// Still absent afterwards.
	if _, err := s.GetAccount(ctx, "nonexistent"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("GetAccount() after misses error = %v", err)
	}

	tok := MustAccount(t, s)
	if _, err := s.Increment(ctx, tok, "missing", day); !errors.Is(err, domain.ErrCounterNotFound) {
		t.Errorf("Increment(unknown counter) error = %v, want ErrCounterNotFound", err)
	}
	if cs, _ := s.ListCounters(ctx, tok); len(cs) != 0 {
		t.Errorf("counters after miss = %+v", cs)
	}
}

func testCreateCounterNormalizes(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)

	c, err := s.CreateCounter(ctx, tok, "Daily Visits")
	if err != nil {
		t.Fatalf("CreateCounter() error = %v", err)
	}
	if c.ID != "daily-visits" || c.Name != "Daily Visits" || len(c.Entries) != 0 {
		t.Errorf("CreateCounter() = %+v", c)
	}
	if got := domain.NormalizeName("  Daily   Visits!! "); got != c.ID {
		t.Errorf("NormalizeName() = %q, want %q", got, c.ID)
	}
	if _, err := s.CreateCounter(ctx, tok, "  Daily   Visits!! "); !errors.Is(err, domain.ErrDuplicateCounter) {
		t.Errorf("CreateCounter(same id) error = %v, want ErrDuplicateCounter", err)
	}
}

func testInvalidName(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)

	for _, name := range []string{"", "   ", "!!!", "--"} {
		if _, err := s.CreateCounter(ctx, tok, name); !errors.Is(err, domain.ErrInvalidName) {
			t.Errorf("CreateCounter(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
	if cs, _ := s.ListCounters(ctx, tok); len(cs) != 0 {
		t.Errorf("counters after invalid names = %+v", cs)
	}
}

func testConcurrentCreateCounter(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.CreateCounter(ctx, tok, "Daily Visits")
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateCounter):
			dup++
		default:
			t.Errorf("CreateCounter() unexpected error = %v", err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Errorf("successes = %d, duplicates = %d; want 1 and 1", ok, dup)
	}
	if cs, _ := s.ListCounters(ctx, tok); len(cs) != 1 {
		t.Errorf("listed %d counters, want 1", len(cs))
	}
}

func testConcurrentIncrement(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)
	id := MustCounter(t, s, tok, "hits")
	other := MustCounter(t, s, tok, "other")

	var wg sync.WaitGroup
	for w := 0; w < Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			target := id
			if w%4 == 3 {
				target = other
			}
			for i := 0; i < PerWorker; i++ {
				if _, err := s.Increment(ctx, tok, target, day); err != nil {
					t.Errorf("Increment() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	otherWorkers := Workers / 4
	want := map[string]int64{
		id:    int64((Workers - otherWorkers) * PerWorker),
		other: int64(otherWorkers * PerWorker),
	}
	for cid, n := range want {
		c := FindCounter(t, s, tok, cid)
		if len(c.Entries) != 1 {
			t.Fatalf("%s has %d entries, want 1: %+v", cid, len(c.Entries), c.Entries)
		}
		if c.Entries[0].Count != n {
			t.Errorf("%s count = %d, want %d", cid, c.Entries[0].Count, n)
		}
	}
}

func testDistinctDates(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)
	id := MustCounter(t, s, tok, "hits")

	// Out of order and concurrent, two increments per date.
	offsets := []int{5, 0, 9, 2, 7, 1, 8, 3, 6, 4}
	var wg sync.WaitGroup
	for _, off := range offsets {
		for rep := 0; rep < 2; rep++ {
			wg.Add(1)
			go func(off int) {
				defer wg.Done()
				if _, err := s.Increment(ctx, tok, id, day.AddDays(off)); err != nil {
					t.Errorf("Increment() error = %v", err)
				}
			}(off)
		}
	}
	wg.Wait()

	c := FindCounter(t, s, tok, id)
	if len(c.Entries) != len(offsets) {
		t.Fatalf("entries = %d, want %d", len(c.Entries), len(offsets))
	}
	for i, e := range c.Entries {
		if want := day.AddDays(i); e.Date != want {
			t.Errorf("entry[%d].Date = %s, want %s", i, e.Date, want)
		}
		if e.Count != 2 {
			t.Errorf("entry[%d].Count = %d, want 2", i, e.Count)
		}
	}
}

func testAccountIsolation(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	a := MustAccount(t, s)
	b := MustAccount(t, s)
	idA := MustCounter(t, s, a, "hits")
	idB := MustCounter(t, s, b, "hits")
	if idA != idB {
		t.Fatalf("ids differ: %q vs %q", idA, idB)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Increment(ctx, a, idA, day); err != nil {
			t.Fatalf("Increment(a) error = %v", err)
		}
	}

	if c := FindCounter(t, s, a, idA); c.Total() != 3 {
		t.Errorf("a total = %d, want 3", c.Total())
	}
	if c := FindCounter(t, s, b, idB); len(c.Entries) != 0 {
		t.Errorf("b entries = %+v, want none", c.Entries)
	}
}

func testCreationOrder(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)
	for _, name := range []string{"b", "a", "c"} {
		MustCounter(t, s, tok, name)
	}
	if _, err := s.Increment(ctx, tok, "a", day.AddDays(2)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Increment(ctx, tok, "a", day); err != nil {
		t.Fatal(err)
	}

	cs, err := s.ListCounters(ctx, tok)
	if err != nil {
		t.Fatalf("ListCounters() error = %v", err)
	}
	var ids []string
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, ids); diff != "" {
		t.Errorf("ListCounters() order mismatch (-want +got):\n%s", diff)
	}

	got := cs[1].Entries
	want := []domain.Entry{{Date: day, Count: 1}, {Date: day.AddDays(2), Count: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	acct, err := s.GetAccount(ctx, tok)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if len(acct.Counters) != 3 || acct.Counters[0].ID != "b" {
		t.Errorf("GetAccount().Counters = %+v", acct.Counters)
	}
}

func testReturnsCopies(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)
	id := MustCounter(t, s, tok, "hits")
	if _, err := s.Increment(ctx, tok, id, day); err != nil {
		t.Fatal(err)
	}

	cs, _ := s.ListCounters(ctx, tok)
	cs[0].Entries[0].Count = 999
	cs[0].Name = "mutated"
	cs[0].Entries = append(cs[0].Entries, domain.Entry{Date: day.AddDays(1), Count: 5})

	acct, _ := s.GetAccount(ctx, tok)
	acct.Counters[0].Entries[0].Count = 777

	c := FindCounter(t, s, tok, id)
	want := []domain.Entry{{Date: day, Count: 1}}
	if diff := cmp.Diff(want, c.Entries); diff != "" {
		t.Errorf("store mutated through returned value (-want +got):\n%s", diff)
	}
	if c.Name != "hits" {
		t.Errorf("Name = %q, want hits", c.Name)
	}
}

func testIncrementReturnsUpdatedCounter(t *testing.T, s service.AccountStore) {
	ctx := context.Background()
	tok := MustAccount(t, s)
	id := MustCounter(t, s, tok, "hits")

	for i := 1; i <= 3; i++ {
		c, err := s.Increment(ctx, tok, id, day)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if c.ID != id || len(c.Entries) != 1 || c.Entries[0].Count != int64(i) {
			t.Fatalf("Increment() #%d = %+v", i, c)
		}
	}
}

// Reopener closes the store it was handed and opens another one over the
// same location.
type Reopener func(t *testing.T, s service.AccountStore) service.AccountStore

// RunDurable checks that state survives closing and reopening a backend.
func RunDurable(t *testing.T, open Opener, reopen Reopener) {
	t.Helper()
	ctx := context.Background()

	s := open(t)
	tok := MustAccount(t, s)
	ids := make([]string, 0, 3)
	for _, name := range []string{"Zeta", "Alpha", "Mid Point"} {
		ids = append(ids, MustCounter(t, s, tok, name))
	}
	for i := 0; i < 4; i++ {
		if _, err := s.Increment(ctx, tok, ids[0], day); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Increment(ctx, tok, ids[0], day.AddDays(-1)); err != nil {
		t.Fatal(err)
	}
	before, err := s.GetAccount(ctx, tok)
	if err != nil {
		t.Fatal(err)
	}

	s = reopen(t, s)

	after, err := s.GetAccount(ctx, tok)
	if err != nil {
		t.Fatalf("GetAccount() after reopen error = %v", err)
	}
	if diff := cmp.Diff(before, after, timeEqual, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("account changed across reopen (-before +after):\n%s", diff)
	}

	// Same date still bumps the existing entry.
	c, err := s.Increment(ctx, tok, ids[0], day)
	if err != nil {
		t.Fatalf("Increment() after reopen error = %v", err)
	}
	if e, _ := c.EntryFor(day); e.Count != 5 || len(c.Entries) != 2 {
		t.Errorf("after reopen entries = %+v", c.Entries)
	}

	if _, err := s.CreateCounter(ctx, tok, "zeta"); !errors.Is(err, domain.ErrDuplicateCounter) {
		t.Errorf("CreateCounter(zeta) after reopen error = %v, want ErrDuplicateCounter", err)
	}
	if _, err := s.CreateAccount(ctx, tok); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("CreateAccount() after reopen error = %v, want ErrDuplicateToken", err)
	}
}

// timeEqual compares timestamps by instant; backends may drop the
// monotonic reading or the location.
var timeEqual = cmp.Comparer(func(a, b time.Time) bool {
	return a.Equal(b)
})
