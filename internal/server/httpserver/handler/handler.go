package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/telemetry/logger"
)

const (
	// CodeNotFound replaces both account and counter misses on the wire.
	CodeNotFound = "TL-NF-4040"

	// maxBodyBytes bounds request bodies; both request types are tiny.
	maxBodyBytes = 64 << 10
)

// Pinger reports whether the storage backend can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler routes the counter API to the account service.
type Handler struct {
	svc    *service.AccountService
	ready  Pinger
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Handler. ready may be nil, in which case /ready always
// succeeds.
func New(svc *service.AccountService, ready Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:    svc,
		ready:  ready,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("POST /accounts", h.handleCreateAccount)
	h.mux.HandleFunc("GET /accounts/{token}", h.handleGetAccount)
	h.mux.HandleFunc("POST /accounts/{token}/counters", h.handleCreateCounter)
	h.mux.HandleFunc("GET /accounts/{token}/counters", h.handleListCounters)
	h.mux.HandleFunc("GET /accounts/{token}/counters/{id}", h.handleGetCounter)
	h.mux.HandleFunc("POST /accounts/{token}/counters/{id}/increment", h.handleIncrement)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	requestID := getRequestID(r)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details)); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// getRequestID prefers the ID assigned by the RequestID middleware.
func getRequestID(r *http.Request) string {
	if reqID := logger.RequestIDFromContext(r.Context()); reqID != "" {
		return reqID
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsNotFound(err) {
		h.writeError(w, r, http.StatusNotFound, CodeNotFound, "not found", "")
		return
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		details := de.Details
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed",
				"request_id", getRequestID(r), "code", de.Code, "error", err)
			details = ""
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	h.logger.Error("internal error", "request_id", getRequestID(r), "error", err)
	h.writeError(w, r, http.StatusInternalServerError,
		domain.ErrInternal.Code, domain.ErrInternal.Message, "")
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes by suffix.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidArgument.WithDetails("invalid request body").WithCause(err)
	}
	if dec.More() {
		return domain.ErrInvalidArgument.WithDetails("trailing data after request body")
	}
	return nil
}
