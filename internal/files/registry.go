// Package files tracks uploads to the provider's Files API: a local registry
// mapping remote file ids to metadata, mime classification for upload
// gating, and the uploader that talks to the API itself. The registry is
// independent of conversation content: messages reference files by remote
// id and keep those references even after the file is removed here.
package files

import (
	"strings"
	"sync"
	"time"

	"github.com/cachet-ai/cachet/internal/chat"
)

// UploadedFile describes one file uploaded to the Files API.
type UploadedFile struct {
	ID         string    `json:"id"` // remote id
	Name       string    `json:"name"`
	LocalPath  string    `json:"local_path"`
	Size       int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RegistryStore persists registry entries across restarts.
// *SQLiteStore implements it; a nil store keeps the registry memory-only.
type RegistryStore interface {
	LoadAll() ([]UploadedFile, error)
	Put(f UploadedFile) error
	Delete(id string) error
	Clear() error
}

// Registry is the in-memory file registry, ordered by upload time.
type Registry struct {
	mu    sync.Mutex
	files []UploadedFile
	store RegistryStore
}

// NewRegistry creates a registry, loading persisted entries when a store is
// given. Persistence errors on individual operations are returned to the
// caller but never corrupt the in-memory view.
func NewRegistry(store RegistryStore) (*Registry, error) {
	r := &Registry{store: store}
	if store != nil {
		loaded, err := store.LoadAll()
		if err != nil {
			return nil, err
		}
		r.files = loaded
	}
	return r, nil
}

// Add records an uploaded file.
func (r *Registry) Add(f UploadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	if r.store != nil {
		return r.store.Put(f)
	}
	return nil
}

// Remove deletes the entry with the given remote id. It reports whether an
// entry was removed. Historical messages referencing the id are untouched.
func (r *Registry) Remove(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.files {
		if f.ID == id {
			r.files = append(r.files[:i], r.files[i+1:]...)
			if r.store != nil {
				return true, r.store.Delete(id)
			}
			return true, nil
		}
	}
	return false, nil
}

// Clear empties the registry.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = nil
	if r.store != nil {
		return r.store.Clear()
	}
	return nil
}

// List returns a copy of all entries in upload order.
func (r *Registry) List() []UploadedFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UploadedFile, len(r.files))
	copy(out, r.files)
	return out
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Get returns the entry with the exact remote id.
func (r *Registry) Get(id string) (UploadedFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.ID == id {
			return f, true
		}
	}
	return UploadedFile{}, false
}

// Resolve maps a user-supplied handle to a file: exact remote id first, then
// unique id prefix, then display name. Implements chat.FileResolver.
func (r *Registry) Resolve(handle string) (chat.FileRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.files {
		if f.ID == handle {
			return chat.FileRef{ID: f.ID, Name: f.Name}, true
		}
	}

	var prefixMatch *UploadedFile
	for i := range r.files {
		if len(handle) >= 4 && strings.HasPrefix(r.files[i].ID, handle) {
			if prefixMatch != nil {
				prefixMatch = nil // ambiguous
				break
			}
			prefixMatch = &r.files[i]
		}
	}
	if prefixMatch != nil {
		return chat.FileRef{ID: prefixMatch.ID, Name: prefixMatch.Name}, true
	}

	for _, f := range r.files {
		if f.Name == handle {
			return chat.FileRef{ID: f.ID, Name: f.Name}, true
		}
	}
	return chat.FileRef{}, false
}
