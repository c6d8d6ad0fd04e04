package handler

import (
	"net/http"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/core/service"
)

// handleCreateAccount handles POST /accounts.
func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.CreateAccount(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toAccountResponse(acct))
}

// handleGetAccount handles GET /accounts/{token}.
func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.GetAccount(r.Context(), r.PathValue("token"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toAccountResponse(acct))
}

// handleCreateCounter handles POST /accounts/{token}/counters.
func (h *Handler) handleCreateCounter(w http.ResponseWriter, r *http.Request) {
	var req CreateCounterRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	c, err := h.svc.CreateCounter(r.Context(), &service.CreateCounterRequest{
		Token: r.PathValue("token"),
		Name:  req.Name,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toCounterResponse(c))
}

// handleListCounters handles GET /accounts/{token}/counters.
func (h *Handler) handleListCounters(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCounters(r.Context(), r.PathValue("token"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ListCountersResponse{Counters: toCounterResponses(cs)})
}

// handleGetCounter handles GET /accounts/{token}/counters/{id}.
func (h *Handler) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCounter(r.Context(), r.PathValue("token"), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toCounterResponse(c))
}

// handleIncrement handles POST /accounts/{token}/counters/{id}/increment.
func (h *Handler) handleIncrement(w http.ResponseWriter, r *http.Request) {
	var req IncrementRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	svcReq := &service.IncrementRequest{
		Token:     r.PathValue("token"),
		CounterID: r.PathValue("id"),
	}
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date)
		if err != nil {
			h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("date must be YYYY-MM-DD").WithCause(err))
			return
		}
		svcReq.Date = &d
	}

	c, err := h.svc.Increment(r.Context(), svcReq)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toCounterResponse(c))
}
