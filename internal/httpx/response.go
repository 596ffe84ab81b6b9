package httpx

import (
	"encoding/json"
	"net/http"
)

// Response is the buffered outcome of a proxied or validated request.
// Handlers return it instead of writing to the ResponseWriter directly so the
// idempotency coordinator can capture and replay it.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// HandlerFunc produces a buffered response for a request. A non-nil error
// means the handler itself failed unexpectedly; expected failures (client
// input, upstream errors) are encoded in the Response status.
type HandlerFunc func(r *http.Request) (*Response, error)

// Error builds a Response carrying the standard error envelope.
func Error(status int, code string) *Response {
	return &Response{Status: status, ContentType: "application/json", Body: ErrorBody(code)}
}

// ErrorBody renders the gateway's error envelope: {"error":"<code>"}.
func ErrorBody(code string) []byte {
	b, _ := json.Marshal(map[string]string{"error": code})
	return b
}

// WriteResponse writes a buffered response to w.
func WriteResponse(w http.ResponseWriter, resp *Response) {
	ct := resp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// WriteError writes the error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(ErrorBody(code))
}

// WriteJSON marshals v and writes it with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
