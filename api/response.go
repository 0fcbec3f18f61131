package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/gateway"
	"github.com/youssefsiam38/activitypg/listing"
)

// Response wraps all API responses.
type Response struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
	Meta  *Meta     `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains pagination metadata.
type Meta struct {
	HasMore bool `json:"has_more"`
	Limit   int  `json:"limit,omitempty"`
	Offset  int  `json:"offset"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

// writeJSONWithMeta writes a JSON response with metadata.
func writeJSONWithMeta(w http.ResponseWriter, status int, data any, meta *Meta) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data, Meta: meta})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Error: &APIError{Code: code, Message: message},
	})
}

// writeErr maps a gateway or auth error to a status and error code.
// Unexpected errors are logged and reported without detail.
func (rt *router) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, gateway.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, gateway.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "record already exists")
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, gateway.ErrUnauthenticated), errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session_expired", "session expired")
	default:
		rt.config.Logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	return true
}

// parseInt parses an integer from a query parameter with a default.
// It applies bounds validation to prevent resource exhaustion.
func parseInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return gateway.ValidateLimit(i)
}

// parseOffset parses an offset from a query parameter with a default.
func parseOffset(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return gateway.ValidateOffset(i)
}

// listQuery reads the shared list parameters. Sort fields are validated by
// the gateway.
func (rt *router) listQuery(r *http.Request) listing.Query {
	q := r.URL.Query()
	return listing.Query{
		Filter: q.Get("q"),
		Sort: listing.Sort{
			Field: q.Get("order_by"),
			Dir:   listing.Direction(gateway.ValidateOrderDir(q.Get("order_dir"))),
		},
		Limit:  parseInt(r, "limit", rt.config.PageSize),
		Offset: parseOffset(r, "offset", 0),
	}
}

func pageMeta(q listing.Query, count int) *Meta {
	return &Meta{HasMore: count >= q.Limit, Limit: q.Limit, Offset: q.Offset}
}
