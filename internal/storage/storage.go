// Package storage is the file-system collaborator behind the annotation
// session: directory listing split into image and JSON files, raw and JSON
// reads/writes, and deletion. Everything the session persists goes through
// the Store interface so tests can substitute an in-memory implementation.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one listed file.
type FileInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty"`
}

// Store is the external file API the session engine writes through.
type Store interface {
	// ListImages returns the image files directly inside dir, in a stable
	// (name-sorted) order.
	ListImages(dir string) ([]FileInfo, error)
	// ListJSON returns the JSON files directly inside dir.
	ListJSON(dir string) ([]FileInfo, error)
	ReadFile(path string) ([]byte, error)
	// WriteFile writes data to path, creating parent directories as needed.
	WriteFile(path string, data []byte) error
	// Delete removes path. Deleting a missing file is not an error.
	Delete(path string) error
}

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tiff": true, "webp": true,
}

// IsImageFile checks if a file has an image extension.
func IsImageFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return imageExtensions[ext]
}

// Disk is the local-filesystem Store.
type Disk struct{}

// NewDisk creates a local-filesystem store.
func NewDisk() *Disk {
	return &Disk{}
}

func (d *Disk) list(dir string, keep func(string) bool) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() || !keep(e.Name()) {
			continue
		}
		fi := FileInfo{Name: e.Name(), Path: filepath.Join(dir, e.Name())}
		if info, err := e.Info(); err == nil {
			fi.ModifiedAt = info.ModTime()
		}
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListImages lists image files in dir, sorted by name.
func (d *Disk) ListImages(dir string) ([]FileInfo, error) {
	return d.list(dir, IsImageFile)
}

// ListJSON lists JSON files in dir, sorted by name.
func (d *Disk) ListJSON(dir string) ([]FileInfo, error) {
	return d.list(dir, func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ".json")
	})
}

// ReadFile reads the file at path.
func (d *Disk) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories first.
func (d *Disk) WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Delete removes path; a missing file is a no-op.
func (d *Disk) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// WriteJSON marshals v with indentation and writes it through s.
func WriteJSON(s Store, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return s.WriteFile(path, data)
}

// ReadJSON reads path through s and unmarshals it into v.
func ReadJSON(s Store, path string, v any) error {
	data, err := s.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
