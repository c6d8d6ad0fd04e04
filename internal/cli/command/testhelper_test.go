package command

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/server/httpserver"
	"github.com/yndnr/tally-go/internal/storage/memory"
)

// harness runs the CLI against a real router over an in-memory store.
type harness struct {
	t       *testing.T
	srv     *httptest.Server
	cfgPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("TALLY_TOKEN", "")
	t.Setenv("TALLY_SERVER", "")

	store := memory.New()
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Service: service.NewAccountService(store),
		Backend: store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &harness{
		t:       t,
		srv:     srv,
		cfgPath: filepath.Join(t.TempDir(), "cli.yaml"),
	}
}

// run executes tally-cli with the harness server and config file.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard

	full := append([]string{"tally-cli", "--config", h.cfgPath, "--server", h.srv.URL}, args...)
	err := app.Run(full)
	return out.String(), err
}

// mustRun fails the test on error.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("tally-cli %v: %v", args, err)
	}
	return out
}

// decode parses JSON output.
func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	return v
}

// createAccount returns the token of a new account.
func (h *harness) createAccount() string {
	h.t.Helper()
	return decode[accountView](h.t, h.mustRun("-o", "json", "account", "create")).Token
}
