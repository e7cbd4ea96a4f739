package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/HammerMeetNail/kinship/internal/apperror"
	"github.com/HammerMeetNail/kinship/internal/logging"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation, apperror.KindInvalidOperation:
		return http.StatusBadRequest
	case apperror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a service failure. Untagged errors are logged and,
// in production, replaced by a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, production bool) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.Kind == apperror.KindInternal {
		logging.Error("Request failed", map[string]interface{}{
			"error":  err.Error(),
			"method": r.Method,
			"path":   r.URL.Path,
		})
		message := err.Error()
		if production {
			message = "Internal server error"
		}
		writeError(w, http.StatusInternalServerError, message)
		return
	}

	writeJSON(w, StatusForKind(appErr.Kind), ErrorResponse{
		Error:   appErr.Message,
		Details: appErr.Fields,
	})
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}
