package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"photowall/internal/gallery"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}, the shape used by the submission routes.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeMessage writes {"message": msg}, the shape used by the admin routes.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		// An empty body decodes as an empty object.
		return nil
	}
	return err
}

// statusFor maps a service error kind onto an HTTP status.
func statusFor(err error) int {
	switch gallery.KindOf(err) {
	case gallery.KindValidation, gallery.KindConflict:
		return http.StatusBadRequest
	case gallery.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
