package token

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func isLowerHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func TestNewToken_Format(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	if len(tok) != Length {
		t.Errorf("NewToken() length = %d, want %d", len(tok), Length)
	}
	if !isLowerHex(tok) {
		t.Errorf("NewToken() = %q, want lower-case hex", tok)
	}
}

func TestNewToken_Uniqueness(t *testing.T) {
	const n = 10000

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken() error = %v", err)
		}
		if len(tok) != Length || !isLowerHex(tok) {
			t.Fatalf("NewToken() = %q, malformed", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("NewToken() produced duplicate after %d tokens", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestNewToken_Concurrent(t *testing.T) {
	const workers, perWorker = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tok, err := NewToken()
				if err != nil {
					t.Errorf("NewToken() error = %v", err)
					return
				}
				mu.Lock()
				seen[tok] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("unique tokens = %d, want %d", len(seen), workers*perWorker)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestGenerator_RandomSourceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		reader io.Reader
	}{
		{"read error", failingReader{err: errors.New("entropy pool closed")}},
		{"short read", strings.NewReader("too short")},
		{"empty", strings.NewReader("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := Generator{Reader: tt.reader}.NewToken()
			if !errors.Is(err, ErrRandomSourceUnavailable) {
				t.Errorf("NewToken() error = %v, want ErrRandomSourceUnavailable", err)
			}
			if tok != "" {
				t.Errorf("NewToken() = %q on failure, want empty", tok)
			}
		})
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	src := strings.Repeat("a", EntropyBytes)

	a, err := Generator{Reader: strings.NewReader(src)}.NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	b, err := Generator{Reader: strings.NewReader(src)}.NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	if a != b {
		t.Errorf("same entropy produced %q and %q", a, b)
	}
	if a != Hash(src) {
		t.Errorf("NewToken() = %q, want sha256 of entropy %q", a, Hash(src))
	}
}

func TestFingerprint(t *testing.T) {
	tok, _ := NewToken()

	fp := Fingerprint(tok)
	if len(fp) != FingerprintLength {
		t.Errorf("Fingerprint() length = %d, want %d", len(fp), FingerprintLength)
	}
	if strings.Contains(tok, fp) {
		t.Error("Fingerprint() leaks a substring of the token")
	}
	if Fingerprint(tok) != fp {
		t.Error("Fingerprint() is not stable")
	}
	if Fingerprint("") != "" {
		t.Error("Fingerprint(\"\") should be empty")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("abc", "abc") {
		t.Error("Equal(abc, abc) = false")
	}
	if Equal("abc", "abd") {
		t.Error("Equal(abc, abd) = true")
	}
}

func BenchmarkNewToken(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = NewToken()
	}
}
