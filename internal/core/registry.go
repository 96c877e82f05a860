package core

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry tracks live widgets by id. It is an explicit instance owned by
// whoever serves the widgets; there is no package-level registry.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]*Widget
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{widgets: make(map[string]*Widget)}
}

// Add registers a widget. Returns an error if the id is already taken.
func (r *Registry) Add(w *Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.widgets[w.ID()]; exists {
		return fmt.Errorf("widget already registered: %s", w.ID())
	}
	r.widgets[w.ID()] = w
	return nil
}

// Get returns a widget by id, or ErrWidgetNotFound.
func (r *Registry) Get(id string) (*Widget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.widgets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWidgetNotFound, id)
	}
	return w, nil
}

// Remove unregisters and destroys a widget.
// Returns false if the id was unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()

	if ok {
		w.Destroy()
	}
	return ok
}

// All returns every registered widget, sorted by id for stable output.
func (r *Registry) All() []*Widget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Widget, 0, len(r.widgets))
	for _, w := range r.widgets {
		result = append(result, w)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// Len returns the number of registered widgets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Sweep destroys widgets idle since before now-idle and returns their ids.
func (r *Registry) Sweep(now time.Time, idle time.Duration) []string {
	cutoff := now.Add(-idle)

	r.mu.Lock()
	var expired []*Widget
	for id, w := range r.widgets {
		if w.LastActive().Before(cutoff) {
			expired = append(expired, w)
			delete(r.widgets, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, w := range expired {
		w.Destroy()
		ids = append(ids, w.ID())
	}
	sort.Strings(ids)
	return ids
}

// DestroyAll destroys and unregisters every widget.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	widgets := r.widgets
	r.widgets = make(map[string]*Widget)
	r.mu.Unlock()

	for _, w := range widgets {
		w.Destroy()
	}
}
