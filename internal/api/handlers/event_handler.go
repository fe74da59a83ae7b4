package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/markdave123-py/docrag/internal/core/ingestion_engine"
)

// EventHandler feeds storage notifications posted over HTTP into the router.
type EventHandler struct {
	ingestor ingestion_engine.Ingestor
}

func NewEventHandler(ing ingestion_engine.Ingestor) *EventHandler {
	return &EventHandler{ingestor: ing}
}

type queuedResponse struct {
	Queued int `json:"queued"`
}

// Events handles POST /api/events with an S3 notification body. With
// ?async=true the records go to the worker pool and the call returns 202.
func (h *EventHandler) Events(w http.ResponseWriter, r *http.Request) {
	var ev events.S3Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request format"})
		return
	}
	batch := ingestion_engine.StorageEvents(ev)
	if len(batch) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no storage records in event"})
		return
	}

	if r.URL.Query().Get("async") == "true" {
		for i, e := range batch {
			if err := h.ingestor.Enqueue(r.Context(), e); err != nil {
				slog.Warn("HTTP: enqueue interrupted", "queued", i, "total", len(batch), "error", err)
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{Queued: len(batch)})
		return
	}

	writeJSON(w, http.StatusOK, h.ingestor.HandleBatch(r.Context(), batch))
}

// Backfill handles POST /api/backfill.
func (h *EventHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	res, err := h.ingestor.Backfill(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
