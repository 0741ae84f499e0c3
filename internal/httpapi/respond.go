package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	herrors "hashpass/errors"
)

// respondWithJSON writes a JSON payload to a request.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("httpapi: failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes a JSON error message to a request, choosing
// the status code from the error's kind when it is one of ours.
func respondWithError(w http.ResponseWriter, err error) {
	respondWithJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

// statusForError maps an herrors.Error's kind to the HTTP status the
// original service returned for the equivalent condition.
func statusForError(err error) int {
	var herr herrors.Error
	if !errors.As(err, &herr) {
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(herr, herrors.SessionMissing), errors.Is(herr, herrors.SessionExpired):
		return http.StatusUnauthorized
	case errors.Is(herr, herrors.IdentityMismatch):
		return http.StatusForbidden
	case errors.Is(herr, herrors.IPBanned):
		return http.StatusForbidden
	case errors.Is(herr, herrors.UserAgentRejected):
		return http.StatusForbidden
	case errors.Is(herr, herrors.StaleSeed):
		return http.StatusConflict
	case errors.Is(herr, herrors.InvalidProof):
		return http.StatusBadRequest
	case errors.Is(herr, herrors.LimitExceeded):
		return http.StatusBadRequest
	case errors.Is(herr, herrors.AdminUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(herr, herrors.OperatorError):
		return http.StatusBadRequest
	case errors.Is(herr, herrors.ChallengeUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(herr, herrors.VerifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
