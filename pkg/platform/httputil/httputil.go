// Package httputil provides shared helpers for JSON HTTP handlers: response
// writing, error envelope mapping, and request decoding with validation.
//
// Error envelope contract:
//
//	{"error": "<code>", "error_description": "<message>"}
//
// The description is omitted for 5xx codes so internal details never leak to
// clients. Codes come from pkg/domain-errors and are stable API strings.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "provenance/pkg/domain-errors"
)

// maxRequestBody caps JSON request bodies. Evidence payloads can carry web
// search results, so this is generous.
const maxRequestBody = 1 << 20 // 1 MiB

// errorResponse is the JSON error envelope returned by all handlers.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// statusForCode maps domain error codes to HTTP statuses. Unknown codes fall
// back to 500.
func statusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the JSON error envelope for err. The domain error code
// selects the HTTP status; 5xx responses omit the message so internal
// details never reach clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusForCode(code)

	resp := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}

	WriteJSON(w, status, resp)
}

// Validatable is implemented by request DTOs. Validate returns a domain
// error (typically CodeBadRequest or CodeInvalidInput) describing the first
// problem found.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON request body into T, validates it, and
// writes the error response itself when anything fails. Handlers call it as:
//
//	req, ok := httputil.DecodeAndPrepare[StartRunRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	req := PT(new(T))

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(req); err != nil {
		var maxErr *http.MaxBytesError
		msg := "invalid request body"
		if errors.As(err, &maxErr) {
			msg = "request body too large"
		}
		logger.InfoContext(ctx, "request decode failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}

	if err := req.Validate(); err != nil {
		logger.InfoContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}

	return (*T)(req), true
}
