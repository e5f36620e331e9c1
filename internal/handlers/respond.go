package handlers

import (
	"encoding/json"
	"net/http"

	"media-library/internal/logging"
)

type statusBody struct {
	Status string `json:"status"`
}

type errorBody struct {
	Error string `json:"error"`
}

// respond writes v as the JSON body of a status response. Admin responses
// describe live state and are never cached. A nil v writes headers only.
func respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func respondStatus(w http.ResponseWriter, code int, status string) {
	respond(w, code, statusBody{Status: status})
}

func respondError(w http.ResponseWriter, code int, message string) {
	respond(w, code, errorBody{Error: message})
}
