package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// apiError es el cuerpo de todo error de la API.
type apiError struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Reasons          []string `json:"reasons,omitempty"`
	RequestID        string   `json:"request_id,omitempty"`
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	writeAPIError(w, status, apiError{Error: code, ErrorDescription: desc})
}

func writeAPIError(w http.ResponseWriter, status int, e apiError) {
	e.RequestID = w.Header().Get("X-Request-ID")
	WriteJSON(w, status, e)
}

// ReadJSON: decodifica JSON de forma tolerante (NO falla por campos desconocidos).
// Valida Content-Type y limita el tamaño del body a 1MB.
// Devuelve false si ya escribió el error HTTP.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusUnsupportedMediaType, "invalid_request", "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid_json", "malformed body")
		return false
	}
	return true
}
