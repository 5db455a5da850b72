package websocket

import (
	"encoding/json"

	"github.com/isdelr/ender-watch/internal/models"
)

const (
	ActionAnalysisReport = "analysis_report"
	ActionRunAnalysis    = "run_analysis"
	ActionError          = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewReportMessage encodes an analysis report message.
func NewReportMessage(report models.Report) ([]byte, error) {
	return json.Marshal(Message{Action: ActionAnalysisReport, Payload: report})
}

// NewErrorMessage encodes an error message for a single client.
func NewErrorMessage(text string) []byte {
	return encode(Message{Action: ActionError, Payload: map[string]string{"error": text}})
}
