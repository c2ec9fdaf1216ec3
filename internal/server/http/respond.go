package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/service"
	"go.uber.org/zap"
)

// CodeInvalidBody is returned when the request body is not valid JSON.
const CodeInvalidBody = "INVALID_REQUEST_BODY"

const maxBodyBytes = 1 << 20

// envelope is the uniform response body.
type envelope struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
	Payload       any    `json:"payload,omitempty"`
	ConflictField string `json:"conflictField,omitempty"`
	Validation    any    `json:"validation,omitempty"`
	Details       any    `json:"details,omitempty"`
	SavedTo       string `json:"savedTo,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, status int, msg string, payload any) {
	writeJSON(w, status, envelope{Success: true, Message: msg, Payload: payload})
}

// fail maps err onto the envelope. Anything that is not an *errs.Error is
// logged and answered with a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e, isCoded := errs.As(err)
	if !isCoded {
		s.log.Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.Error(err),
		)
		e = errs.Internal(service.CodeInternal, "Internal server error", err)
	}

	body := envelope{Message: e.Message, Code: e.Code, ConflictField: e.ConflictField}
	switch d := e.Details.(type) {
	case nil:
	case service.PasswordCheck:
		body.Validation = d
	case map[string]any:
		if secs, found := d["retryAfterSeconds"].(int); found && secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		body.Details = d
	default:
		body.Details = d
	}
	writeJSON(w, e.Status, body)
}

// decode reads a JSON body into dst. An empty body leaves dst zero-valued.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.BadRequest(CodeInvalidBody, "Request body must be valid JSON")
	}
	return nil
}
