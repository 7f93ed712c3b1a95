package http

import (
	"encoding/json"
	"net/http"

	"finsight/internal/log"
)

// jsonResponse is a small builder for JSON replies.
type jsonResponse struct {
	statusCode int
	headers    map[string]string
	body       any
}

func newJSONResponse(body any) *jsonResponse {
	return &jsonResponse{statusCode: http.StatusOK, headers: map[string]string{}, body: body}
}

func (b *jsonResponse) Status(code int) *jsonResponse {
	b.statusCode = code
	return b
}

func (b *jsonResponse) Header(name, value string) *jsonResponse {
	b.headers[name] = value
	return b
}

func (b *jsonResponse) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err.Error())
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func errorResponse(r *http.Request, code int, message string) *jsonResponse {
	return newJSONResponse(errorBody{Error: message, RequestID: log.RequestID(r.Context())}).Status(code)
}
