package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/isdelr/ender-watch/internal/database"
)

// ErrInvalidName is returned for names that are empty, resolve outside the
// watched root, or would touch the event store's files.
var ErrInvalidName = errors.New("invalid name")

const workspaceFileContent = "Test file created by Security Event Recorder"

// WorkspaceServiceProvider defines the interface for workspace file operations.
type WorkspaceServiceProvider interface {
	CreateFile(name string) (string, error)
	CreateFolder(name string) (string, error)
	DeleteFile(name string) error
	DeleteFolder(name string) error
}

// WorkspaceService creates and removes entries under the watched root so the
// file sensor can be exercised from the control surface.
type WorkspaceService struct {
	root     string
	reserved []string // absolute paths of the store file and its companions
}

// NewWorkspaceService creates a new WorkspaceService rooted at root. The
// store at storePath, its companion files and their parent folders can never
// be created over or deleted.
func NewWorkspaceService(root, storePath string) *WorkspaceService {
	s := &WorkspaceService{root: root}
	if storePath == "" {
		return s
	}
	abs, err := filepath.Abs(storePath)
	if err != nil {
		abs = filepath.Clean(storePath)
	}
	dir := filepath.Dir(abs)
	for _, name := range database.CompanionFiles(abs) {
		s.reserved = append(s.reserved, filepath.Join(dir, name))
	}
	return s
}

// touchesStore reports whether p is a store file or a folder containing one.
func (s *WorkspaceService) touchesStore(p string) bool {
	prefix := p + string(filepath.Separator)
	for _, r := range s.reserved {
		if r == p || strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}

// resolve maps name to a path strictly inside the root.
func (s *WorkspaceService) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrInvalidName
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, name)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if s.touchesStore(p) {
		return "", fmt.Errorf("%w: %q is reserved for the event store", ErrInvalidName, name)
	}
	return p, nil
}

// CreateFile writes a small marker file and returns its path.
func (s *WorkspaceService) CreateFile(name string) (string, error) {
	p, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, []byte(workspaceFileContent), 0o644); err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	return p, nil
}

// CreateFolder creates the folder (and parents) and returns its path.
func (s *WorkspaceService) CreateFolder(name string) (string, error) {
	p, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return p, nil
}

// DeleteFile removes a regular file. Missing files and directories are left alone.
func (s *WorkspaceService) DeleteFile(name string) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return nil
	}
	return os.Remove(p)
}

// DeleteFolder removes a folder and everything under it. Missing folders and
// files are left alone.
func (s *WorkspaceService) DeleteFolder(name string) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return nil
	}
	return os.RemoveAll(p)
}
