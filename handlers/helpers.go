package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sasta-kro/labuh-go/errs"
)

// writeJsonAndRespond serializes the given payload to JSON and writes it
// to the response, setting Content-Type and the given status code.
// all handlers use this instead of calling json.NewEncoder directly, so
// the response envelope stays consistent across the entire API.
func writeJsonAndRespond(responseWriter http.ResponseWriter, statusCode int, dataPayload any) {
	responseWriter.Header().Set("Content-Type", "application/json")

	serializedData, err := json.Marshal(dataPayload)
	if err != nil {
		http.Error(responseWriter, `{"error":"internal encoding error"}`, http.StatusInternalServerError)
		return
	}

	responseWriter.WriteHeader(statusCode)
	responseWriter.Write(serializedData) // nolint:errcheck -- write errors are not actionable server-side
}

// writeErrorJsonAndLogIt logs the error at level ERROR and writes
// {"error": message} at the given status. The message is always a
// controlled string, never a raw Go error, to avoid leaking internals.
func writeErrorJsonAndLogIt(w http.ResponseWriter, statusCode int, message string, logger *slog.Logger) {
	logger.Error("request error", "status", statusCode, "message", message)
	writeJsonAndRespond(w, statusCode, map[string]string{"error": message})
}

// writeAppError maps any error to its errs.AppError status (or 500 if
// unrecognized) and writes it, logging the full underlying error server
// side but never echoing it to the client.
func writeAppError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status := errs.StatusFor(err)
	logger.Error("request failed", "status", status, "error", err)
	writeJsonAndRespond(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON reads and decodes a JSON request body into dest, rejecting
// unknown fields so typos in client payloads surface as 400s instead of
// being silently ignored.
func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
