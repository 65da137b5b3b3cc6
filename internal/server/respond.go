package server

import (
	"encoding/json"
	"net/http"

	"github.com/koustreak/relschema/internal/errs"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput, errs.ErrKindInvalidField, errs.ErrKindDanglingReference:
		return http.StatusBadRequest
	case errs.ErrKindConstraint, errs.ErrKindAlreadyExists, errs.ErrKindDuplicateEntity:
		return http.StatusConflict
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorWith("request failed", err, map[string]any{"method": r.Method, "path": r.URL.Path})
	}
	writeJSON(w, status, map[string]errorBody{
		"error": {Kind: errs.KindOf(err).String(), Message: err.Error()},
	})
}
