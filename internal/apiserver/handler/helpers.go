package handler

import (
	"encoding/json"
	"net/http"

	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

const (
	codeNotFound = "not_found"

	// request bodies are small JSON documents
	maxBodyBytes = 64 << 10
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// writeJSON is a shared helper for all handlers.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeRecommendError maps err to its status and stable code. Internal
// details stay in the logs.
func writeRecommendError(w http.ResponseWriter, err error) {
	re := recommend.AsError(err)
	writeError(w, re.Status, re.Code, re.Message)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
