// events.go — SSE-поток состояния прогона.
// Событие state отправляется при подключении, при каждом изменении
// состояния (включая индикатор прогресса) и не реже SSEInterval.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/generation-workbench/internal/service"
)

// StreamEvents — GET /api/v1/workflows/{id}/events (text/event-stream).
func (h *APIHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	changes, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	interval := h.opts.SSEInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := h.sendState(w, rc, ctrl); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ctrl.Done():
			_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			_ = rc.Flush()
			return
		case <-changes:
		case <-ticker.C:
		}
		if err := h.sendState(w, rc, ctrl); err != nil {
			h.logger.Debug("SSE-поток прерван",
				slog.String("workflow_id", ctrl.ID()),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// sendState пишет одно событие state.
func (h *APIHandler) sendState(w http.ResponseWriter, rc *http.ResponseController, ctrl *service.Controller) error {
	data, err := json.Marshal(workflowResponse{ID: ctrl.ID(), State: publicState(ctrl.Snapshot())})
	if err != nil {
		return fmt.Errorf("сериализация состояния: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
