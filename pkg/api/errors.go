package api

import (
	"net/http"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/logging"
)

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// StatusFor maps an error to its HTTP status. A disallowed type anywhere in
// the cause chain is a 422, even when a hook wrapped it.
func StatusFor(err error) int {
	switch {
	case err == errBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errors.ErrCodeDisallowedClass):
		return http.StatusUnprocessableEntity
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDisallowedClass:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidTag,
		errors.ErrCodeInvalidKey, errors.ErrCodeCodec, errors.ErrCodeUnknownType,
		errors.ErrCodeMalformedReference, errors.ErrCodeCycle, errors.ErrCodeDepthExceeded:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "err", err)
		msg = "internal error"
	} else {
		logging.FromContext(r.Context()).Warn("request rejected", "code", code, "err", err)
	}
	writeJSON(w, status, errorBody{
		Error:     errorDetail{Code: code, Message: msg},
		RequestID: RequestID(r.Context()),
	})
}
