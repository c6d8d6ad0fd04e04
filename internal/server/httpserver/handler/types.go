package handler

import (
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
)

// CodeOK is the envelope code of every successful response.
const CodeOK = "OK"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   string `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      CodeOK,
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message, details string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CreateCounterRequest is the request body for POST /accounts/{token}/counters.
type CreateCounterRequest struct {
	Name string `json:"name"`
}

// IncrementRequest is the request body for
// POST /accounts/{token}/counters/{id}/increment. An empty body or an
// omitted date increments today.
type IncrementRequest struct {
	Date string `json:"date,omitempty"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	Token     string            `json:"token"`
	CreatedAt time.Time         `json:"created_at"`
	Counters  []CounterResponse `json:"counters"`
}

// CounterResponse represents a counter in API responses.
type CounterResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	Total     int64          `json:"total"`
	Entries   []domain.Entry `json:"entries"`
}

// ListCountersResponse is the response body for GET /accounts/{token}/counters.
type ListCountersResponse struct {
	Counters []CounterResponse `json:"counters"`
}

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		Token:     a.Token,
		CreatedAt: a.CreatedAt,
		Counters:  toCounterResponses(a.Counters),
	}
}

func toCounterResponses(cs []domain.Counter) []CounterResponse {
	out := make([]CounterResponse, len(cs))
	for i := range cs {
		out[i] = toCounterResponse(&cs[i])
	}
	return out
}

func toCounterResponse(c *domain.Counter) CounterResponse {
	entries := c.Entries
	if entries == nil {
		entries = []domain.Entry{}
	}
	return CounterResponse{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		Total:     c.Total(),
		Entries:   entries,
	}
}
