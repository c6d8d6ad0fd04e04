package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// Config holds listener settings.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string

	// TLSConfig, when set, serves TLS with its certificates and the file
	// fields are ignored.
	TLSConfig *tls.Config
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
}

// New creates a new HTTP server.
func New(cfg Config, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			TLSConfig:         cfg.TLSConfig,
		},
		cfg: cfg,
	}
}

// TLSEnabled reports whether a TLS config or both a certificate and key
// are configured.
func (s *Server) TLSEnabled() bool {
	return s.cfg.TLSConfig != nil || (s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "")
}

// certFiles returns the files handed to the TLS serve calls.
func (s *Server) certFiles() (string, string) {
	if s.cfg.TLSConfig != nil {
		return "", ""
	}
	return s.cfg.TLSCertFile, s.cfg.TLSKeyFile
}

// ListenAndServe starts the server, using TLS when configured. It returns
// nil after Shutdown.
func (s *Server) ListenAndServe() error {
	var err error
	if s.TLSEnabled() {
		err = s.httpServer.ListenAndServeTLS(s.certFiles())
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve accepts connections on l. It returns nil after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	var err error
	if s.TLSEnabled() {
		certFile, keyFile := s.certFiles()
		err = s.httpServer.ServeTLS(l, certFile, keyFile)
	} else {
		err = s.httpServer.Serve(l)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
