package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sharedpad/config"
	"sharedpad/internal/document/model"
	"sharedpad/internal/document/service"
	"sharedpad/pkg/logger"
)

type DocumentHandler struct {
	Service           *service.DocumentService
	HeartbeatInterval time.Duration
	MaxBodyBytes      int64
}

func NewDocumentHandler(service *service.DocumentService, cfg config.Config) *DocumentHandler {
	return &DocumentHandler{
		Service:           service,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	}
}

// GetContent handles GET /content.
func (h *DocumentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, h.Service.Content())
}

// SaveContent handles POST /content with a {"text": "..."} body.
func (h *DocumentHandler) SaveContent(w http.ResponseWriter, r *http.Request) {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	// Malformed payloads stop here and never reach the store or the bus.
	var req model.WriteRequest
	if err := model.DecodeStrict(raw, &req); err != nil {
		logger.Sugar.Debugw("Rejected write", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == nil {
		http.Error(w, "Missing text field", http.StatusBadRequest)
		return
	}

	snap := h.Service.Save(*req.Text)
	logger.Sugar.Debugw("Document updated", "revision", snap.Revision, "length", len(snap.Text))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Updated"))
}

// StreamUpdates handles GET /content/events as Server-Sent Events. Each
// accepted write becomes one "update" event; a comment line is sent every
// HeartbeatInterval so dead connections are noticed.
func (h *DocumentHandler) StreamUpdates(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	sub, err := h.Service.Subscribe(r.Context())
	if err != nil {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Opens the stream on the client before the first update.
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Sugar.Errorf("SSE not supported by response writer: %v", err)
		return
	}

	heartbeat := h.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = config.Default().HeartbeatInterval
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case text, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(model.Event{Text: text})
			if err != nil {
				logger.Sugar.Errorf("Error marshalling update event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: update\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// Status handles GET /healthz.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.Status())
}
