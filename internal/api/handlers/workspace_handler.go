package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/rs/zerolog/log"
)

// WorkspaceHandler handles file and folder operations inside the watched root.
type WorkspaceHandler struct {
	service services.WorkspaceServiceProvider
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(service services.WorkspaceServiceProvider) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

// NamePayload is the expected JSON body for create requests.
type NamePayload struct {
	Name string `json:"name"`
}

// CreateFile handles POST /workspace/files.
func (h *WorkspaceHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.service.CreateFile)
}

// CreateFolder handles POST /workspace/folders.
func (h *WorkspaceHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.service.CreateFolder)
}

// DeleteFile handles DELETE /workspace/files/{name}.
func (h *WorkspaceHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.service.DeleteFile)
}

// DeleteFolder handles DELETE /workspace/folders/{name}.
func (h *WorkspaceHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.service.DeleteFolder)
}

func (h *WorkspaceHandler) create(w http.ResponseWriter, r *http.Request, fn func(string) (string, error)) {
	var payload NamePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	path, err := fn(payload.Name)
	if err != nil {
		writeWorkspaceError(w, payload.Name, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"path": path})
}

func (h *WorkspaceHandler) delete(w http.ResponseWriter, r *http.Request, fn func(string) error) {
	name := chi.URLParam(r, "name")
	if err := fn(name); err != nil {
		writeWorkspaceError(w, name, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeWorkspaceError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, services.ErrInvalidName) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Error().Err(err).Str("name", name).Msg("Workspace operation failed")
	http.Error(w, "Workspace operation failed: "+err.Error(), http.StatusInternalServerError)
}
