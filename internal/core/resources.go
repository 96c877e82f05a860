package core

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Resource is a downloadable copy of one file's content.
// Its lifetime belongs to whoever created it; call Resources.Release when
// the link that points at it goes away.
type Resource struct {
	ID   string
	MIME string
	Name string

	data []byte
}

// Size returns the content length in bytes.
func (r *Resource) Size() int {
	return len(r.data)
}

// Reader returns a fresh reader over the content.
func (r *Resource) Reader() io.ReadSeeker {
	return bytes.NewReader(r.data)
}

// Resources tracks live download handles.
type Resources struct {
	mu    sync.RWMutex
	items map[string]*Resource
}

// NewResources creates an empty handle table.
func NewResources() *Resources {
	return &Resources{items: make(map[string]*Resource)}
}

// Create decodes a transport string into a new downloadable resource.
func (r *Resources) Create(transport, mimeHint string) (*Resource, error) {
	data, err := DecodeTransport(transport)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	if mimeHint == "" {
		mimeHint = "application/octet-stream"
	}

	res := &Resource{
		ID:   uuid.NewString(),
		MIME: mimeHint,
		data: data,
	}

	r.mu.Lock()
	r.items[res.ID] = res
	r.mu.Unlock()

	return res, nil
}

// Open returns a live resource by id.
func (r *Resources) Open(id string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	return res, nil
}

// Release drops a resource. Releasing an unknown id is a no-op.
func (r *Resources) Release(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

// Len returns the number of live resources.
func (r *Resources) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
