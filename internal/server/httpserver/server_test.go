package httpserver

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := New(Config{
		Address:      ":8080",
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	}, handler)
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.httpServer.ReadTimeout != time.Second || s.httpServer.WriteTimeout != 2*time.Second || s.httpServer.IdleTimeout != 3*time.Second {
		t.Errorf("timeouts not applied: %+v", s.httpServer)
	}
	if s.TLSEnabled() {
		t.Error("TLSEnabled() = true without cert and key")
	}
}

func TestServer_TLSEnabled(t *testing.T) {
	tests := []struct {
		cert, key string
		want      bool
	}{
		{"", "", false},
		{"cert.pem", "", false},
		{"", "key.pem", false},
		{"cert.pem", "key.pem", true},
	}
	for _, tt := range tests {
		s := New(Config{TLSCertFile: tt.cert, TLSKeyFile: tt.key}, http.NotFoundHandler())
		if got := s.TLSEnabled(); got != tt.want {
			t.Errorf("TLSEnabled(%q, %q) = %v, want %v", tt.cert, tt.key, got, tt.want)
		}
	}

	s := New(Config{TLSConfig: &tls.Config{}, TLSCertFile: "ignored.pem"}, http.NotFoundHandler())
	if !s.TLSEnabled() {
		t.Error("TLSEnabled() = false with a TLS config")
	}
	if cert, key := s.certFiles(); cert != "" || key != "" {
		t.Errorf("certFiles() = %q, %q, want empty with a TLS config", cert, key)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	s := New(Config{Address: l.Addr().String()}, handler)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(l)
	}()

	resp, err := http.Get("http://" + l.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Serve returned %v after Shutdown, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}
