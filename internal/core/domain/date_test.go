package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if d != (Date{Year: 2024, Month: time.February, Day: 29}) {
		t.Errorf("ParseDate() = %+v", d)
	}

	for _, bad := range []string{"", "2023-02-29", "2024/01/01", "24-1-1", "2024-01-01T00:00:00Z"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) succeeded, want error", bad)
		}
	}
}

func TestDate_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-01", "2024-01-01", 0},
		{"2024-01-01", "2024-01-02", -1},
		{"2024-02-01", "2024-01-31", 1},
		{"2023-12-31", "2024-01-01", -1},
	}

	for _, tt := range tests {
		a, b := MustParseDate(tt.a), MustParseDate(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := a.Before(b); got != (tt.want < 0) {
			t.Errorf("%s.Before(%s) = %v", tt.a, tt.b, got)
		}
	}
}

func TestDate_AddDays(t *testing.T) {
	if got := MustParseDate("2024-02-28").AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays = %s, want 2024-03-01", got)
	}
	if got := MustParseDate("2024-01-01").AddDays(-1).String(); got != "2023-12-31" {
		t.Errorf("AddDays(-1) = %s, want 2023-12-31", got)
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

	if got := Today(now, nil).String(); got != "2024-03-10" {
		t.Errorf("Today(UTC) = %s", got)
	}

	east := time.FixedZone("UTC+2", 2*60*60)
	if got := Today(now, east).String(); got != "2024-03-11" {
		t.Errorf("Today(UTC+2) = %s, want 2024-03-11", got)
	}
}

func TestDate_JSON(t *testing.T) {
	in := Entry{Date: MustParseDate("2024-05-06"), Count: 3}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"date":"2024-05-06","count":3}` {
		t.Errorf("Marshal() = %s", b)
	}

	var out Entry
	if err := json.Unmarshal([]byte(`{"date":"2024-05-07","count":1}`), &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.Date.String() != "2024-05-07" {
		t.Errorf("Unmarshal() date = %s", out.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"yesterday"}`), &out); err == nil {
		t.Error("Unmarshal() accepted a malformed date")
	}
}
