package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/bbernstein/lacylights-patch/internal/patch"
	"github.com/bbernstein/lacylights-patch/internal/services/show"
)

// errBadRequest marks malformed input: bad JSON or a bad path parameter.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, fixture.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, patch.ErrNotFound), errors.Is(err, show.ErrCueNotFound), errors.Is(err, show.ErrDefinitionNotFound):
		return http.StatusNotFound
	case errors.Is(err, patch.ErrAddressConflict), errors.Is(err, patch.ErrIDInUse),
		errors.Is(err, show.ErrDefinitionExists), errors.Is(err, show.ErrDefinitionInUse):
		return http.StatusConflict
	case errors.Is(err, fixture.ErrInvalidAddress), errors.Is(err, patch.ErrOutOfUniverse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
