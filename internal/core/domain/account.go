package domain

import (
	"sort"
	"time"
)

// Account is an anonymous owner of counters, addressed by its token.
type Account struct {
	// Token is the capability that identifies and authorizes the account.
	Token string `json:"token"`

	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"created_at"`

	// Counters in creation order.
	Counters []Counter `json:"counters"`
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := &Account{
		Token:     a.Token,
		CreatedAt: a.CreatedAt,
		Counters:  make([]Counter, len(a.Counters)),
	}
	for i := range a.Counters {
		out.Counters[i] = a.Counters[i].Clone()
	}
	return out
}

// Counter is a named series of per-date counts.
type Counter struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// Entries ordered by date ascending, at most one per date.
	Entries []Entry `json:"entries"`
}

// Entry is the number of increments recorded for one date.
type Entry struct {
	Date  Date  `json:"date"`
	Count int64 `json:"count"`
}

// NewCounter builds an empty counter from a raw display name.
func NewCounter(name string, createdAt time.Time) (Counter, error) {
	display, id, err := CounterID(name)
	if err != nil {
		return Counter{}, err
	}
	return Counter{
		ID:        id,
		Name:      display,
		CreatedAt: createdAt,
		Entries:   []Entry{},
	}, nil
}

// Clone returns a deep copy.
func (c Counter) Clone() Counter {
	out := c
	out.Entries = make([]Entry, len(c.Entries))
	copy(out.Entries, c.Entries)
	return out
}

// Record adds one to the entry for d, inserting it in date order when absent.
// Callers must hold whatever lock guards c.
func (c *Counter) Record(d Date) Entry {
	return c.RecordN(d, 1)
}

// RecordN adds n to the entry for d. Used when replaying aggregated state.
func (c *Counter) RecordN(d Date, n int64) Entry {
	i := sort.Search(len(c.Entries), func(i int) bool {
		return !c.Entries[i].Date.Before(d)
	})
	if i < len(c.Entries) && c.Entries[i].Date == d {
		c.Entries[i].Count += n
		return c.Entries[i]
	}

	c.Entries = append(c.Entries, Entry{})
	copy(c.Entries[i+1:], c.Entries[i:])
	c.Entries[i] = Entry{Date: d, Count: n}
	return c.Entries[i]
}

// Total sums all entry counts.
func (c Counter) Total() int64 {
	var n int64
	for _, e := range c.Entries {
		n += e.Count
	}
	return n
}

// EntryFor returns the entry for d.
func (c Counter) EntryFor(d Date) (Entry, bool) {
	i := sort.Search(len(c.Entries), func(i int) bool {
		return !c.Entries[i].Date.Before(d)
	})
	if i < len(c.Entries) && c.Entries[i].Date == d {
		return c.Entries[i], true
	}
	return Entry{}, false
}
