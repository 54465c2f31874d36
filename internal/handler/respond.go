// Package handler implements the JSON resource endpoints for customers,
// grocery lists and grocery items.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/grocer/internal/payload"
	"github.com/dukerupert/grocer/internal/store"
)

// envelope is the uniform response body.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Status: "success", Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Status: "error", Data: msg})
}

// WriteTooManyRequests renders the 429 envelope used by the rate limiter.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, "Too many requests")
}

func msgFound(id string) string    { return fmt.Sprintf("Record with id '%s' was found", id) }
func msgNotFound(id string) string { return fmt.Sprintf("Record with id '%s' was not found", id) }
func msgInserted(id string) string { return "Record inserted with this id: " + id }
func msgPatched(id string) string  { return fmt.Sprintf("Record with id '%s' was patched", id) }
func msgDeleted(id string) string  { return fmt.Sprintf("Record with id '%s' was deleted", id) }
func msgNothingToPatch(id string) string {
	return fmt.Sprintf("Payload had no data to patch requested record '%s' with", id)
}

const msgMissingID = "Missing id in url"

// pathID returns the {id} path value, writing the 404 envelope when it is
// empty.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if id == "" {
		writeError(w, http.StatusNotFound, msgMissingID)
		return "", false
	}
	return id, true
}

// extract reads the body, writing the 406 envelope on failure.
func extract(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	fields, err := payload.Extract(r)
	if err != nil {
		writeError(w, http.StatusNotAcceptable, "JSON parse error: "+parseDetail(err))
		return nil, false
	}
	return fields, true
}

func parseDetail(err error) string {
	return strings.TrimPrefix(err.Error(), payload.ErrMalformedBody.Error()+": ")
}

// requireAny writes the 404 envelope unless one of the required fields is
// present and truthy.
func requireAny(w http.ResponseWriter, fields map[string]any, required []string) bool {
	if len(required) == 0 || payload.AnyTruthy(fields, required) {
		return true
	}
	writeError(w, http.StatusNotFound, "Payload was missing one or more required fields: "+strings.Join(required, ", "))
	return false
}

func invalidPayload(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, "Invalid payload: "+err.Error())
}

// storeError maps repository failures onto envelopes. Anything that is not
// a known constraint violation is logged and hidden behind a 500.
func storeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Record conflicts with an existing record")
	case errors.Is(err, store.ErrInvalidReference):
		writeError(w, http.StatusNotFound, "Payload referenced a record that does not exist")
	default:
		logger.Error(op, "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
