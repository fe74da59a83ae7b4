package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/docrag/internal/core"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("HTTP: encode response failed", "error", err)
	}
}

// writeError answers with the status carried by err (500 when it has none).
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, core.StatusCode(err), errorBody{Error: err.Error()})
}
