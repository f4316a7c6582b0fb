package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/mediaproxy"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error envelope
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	if err := WriteJSON(w, code, Envelope{
		OK:    false,
		Error: &ErrorBody{Code: errCode, Message: message},
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteData writes a JSON success envelope around data
func WriteData(w http.ResponseWriter, code int, data any) error {
	return WriteJSON(w, code, Envelope{OK: true, Data: data})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// HandleError writes the error envelope matching err. internalMsg is used
// for backend failures that have no dedicated code; detail never reaches
// the caller.
func HandleError(w http.ResponseWriter, err error, internalMsg string) {
	status, code, message := classify(err)
	if code == CodeInternal && internalMsg != "" {
		message = internalMsg
	}
	WriteError(w, status, code, message)
}

// HandleBackendError is HandleError for operations that address no existing
// object (list, presign, upload). A not-found from the backend there means a
// missing bucket or similar fault, so it is reported as INTERNAL.
func HandleBackendError(w http.ResponseWriter, err error, internalMsg string) {
	if mediaproxy.KindOf(err) == mediaproxy.KindNotFound {
		WriteError(w, http.StatusInternalServerError, CodeInternal, internalMsg)
		return
	}
	HandleError(w, err, internalMsg)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, mediaproxy.ErrInvalidInput):
		return http.StatusBadRequest, CodeBadRequest, "Bad request"
	case errors.Is(err, mediaproxy.ErrMissingContentType):
		return http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Missing Content-Type header"
	case errors.Is(err, mediaproxy.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "Unsupported Media Type"
	case errors.Is(err, mediaproxy.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Payload too large"
	}

	switch mediaproxy.KindOf(err) {
	case mediaproxy.KindNotFound:
		return http.StatusNotFound, CodeNotFound, msgFileNotFound
	case mediaproxy.KindInvalidKey:
		return http.StatusBadRequest, CodeBadRequest, msgInvalidKey
	case mediaproxy.KindTimeout:
		return http.StatusGatewayTimeout, CodeTimeout, msgTimeout
	default:
		return http.StatusInternalServerError, CodeInternal, msgInternal
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, CodeNotFound, msgRouteNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, msgMethodNotAllowed)
}
