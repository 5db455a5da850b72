package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/isdelr/ender-watch/internal/services"
)

// AnalysisHandler runs the analyzer on demand.
type AnalysisHandler struct {
	service            services.AnalysisServiceProvider
	defaultWindowHours int
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(service services.AnalysisServiceProvider, defaultWindowHours int) *AnalysisHandler {
	return &AnalysisHandler{service: service, defaultWindowHours: defaultWindowHours}
}

// Run handles GET /analysis?window_hours=N. A window of 0 analyzes every event.
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	window := h.defaultWindowHours
	if s := r.URL.Query().Get("window_hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "Invalid window_hours parameter", http.StatusBadRequest)
			return
		}
		window = n
	}

	report := h.service.Run(r.Context(), window)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
