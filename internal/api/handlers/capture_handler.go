package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/ender-watch/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// CaptureHandler exposes the start and stop signals for the sensors.
type CaptureHandler struct {
	capture monitoring.CaptureController
}

// NewCaptureHandler creates a new CaptureHandler.
func NewCaptureHandler(capture monitoring.CaptureController) *CaptureHandler {
	return &CaptureHandler{capture: capture}
}

type captureStatus struct {
	Running bool `json:"running"`
}

// Status reports whether capture is running.
func (h *CaptureHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, http.StatusOK)
}

// Start activates both sensors.
func (h *CaptureHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Start(); err != nil {
		if errors.Is(err, monitoring.ErrCaptureRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Error().Err(err).Msg("Failed to start capture")
		http.Error(w, "Failed to start capture: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeStatus(w, http.StatusAccepted)
}

// Stop cancels both sensors and waits for them to finish.
func (h *CaptureHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Stop(); err != nil {
		if errors.Is(err, monitoring.ErrCaptureStopped) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Error().Err(err).Msg("Failed to stop capture")
		http.Error(w, "Failed to stop capture: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeStatus(w, http.StatusOK)
}

func (h *CaptureHandler) writeStatus(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(captureStatus{Running: h.capture.Running()})
}
