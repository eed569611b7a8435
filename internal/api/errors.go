package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matheus3301/chatsync/internal/protocol"
	"go.uber.org/zap"
)

// httpError is an error with a status code and a message safe to show users.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error   { return &httpError{http.StatusBadRequest, msg} }
func unauthorized(msg string) error { return &httpError{http.StatusUnauthorized, msg} }
func forbidden(msg string) error    { return &httpError{http.StatusForbidden, msg} }
func notFound(msg string) error     { return &httpError{http.StatusNotFound, msg} }

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with {"message": ...}. Errors that are not *httpError
// are logged and reported as a 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	if !errors.As(err, &he) {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		he = &httpError{http.StatusInternalServerError, "Internal server error"}
	}
	writeJSON(w, he.status, protocol.ErrorBody{Message: he.message})
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("Invalid request body")
	}
	return nil
}
