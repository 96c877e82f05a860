package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/JonMunkholm/csvsubmit/internal/logging"
)

const (
	subscriberBuffer = 8
	mirrorBuffer     = 256
	mirrorTimeout    = 5 * time.Second
	heartbeatEvery   = 15 * time.Second
)

// FieldCache mirrors hidden field values outside the process.
type FieldCache interface {
	Put(ctx context.Context, widgetID, value string) error
	Get(ctx context.Context, widgetID string) (string, bool, error)
	Delete(ctx context.Context, widgetID string) error
}

// Hub fans widget snapshots out to event stream subscribers and mirrors
// field values to the cache. It is the render sink of every widget the
// server creates.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan core.Snapshot]struct{}
	cache  FieldCache
	mirror chan mirrorMsg
}

// mirrorMsg is a snapshot to write, or with forget set, the end of a
// widget id. Both travel on one queue so they stay ordered.
type mirrorMsg struct {
	snap   core.Snapshot
	forget bool
}

// NewHub creates a hub. cache may be nil.
func NewHub(cache FieldCache) *Hub {
	h := &Hub{
		subs:  make(map[string]map[chan core.Snapshot]struct{}),
		cache: cache,
	}
	if cache != nil {
		h.mirror = make(chan mirrorMsg, mirrorBuffer)
	}
	return h
}

// Sink returns the render sink for widgets.
func (h *Hub) Sink() core.RenderSink {
	return core.RenderFunc(h.Publish)
}

// Publish delivers snap to the widget's subscribers. A slow subscriber
// loses its oldest pending snapshot rather than blocking the widget.
func (h *Hub) Publish(snap core.Snapshot) {
	h.mu.Lock()
	for ch := range h.subs[snap.ID] {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	h.mu.Unlock()

	if h.mirror != nil {
		select {
		case h.mirror <- mirrorMsg{snap: snap}:
		default:
			slog.Warn("field mirror queue full, dropping snapshot", "widget_id", snap.ID, "version", snap.Version)
		}
	}
}

// Subscribe registers a subscriber for widgetID. Call cancel when done.
func (h *Hub) Subscribe(widgetID string) (updates <-chan core.Snapshot, cancel func()) {
	ch := make(chan core.Snapshot, subscriberBuffer)

	h.mu.Lock()
	if h.subs[widgetID] == nil {
		h.subs[widgetID] = make(map[chan core.Snapshot]struct{})
	}
	h.subs[widgetID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[widgetID][ch]; ok {
			delete(h.subs[widgetID], ch)
			close(ch)
			if len(h.subs[widgetID]) == 0 {
				delete(h.subs, widgetID)
			}
		}
	}
}

// Close ends every stream for widgetID and resets its mirror version, so
// a widget created later under the same id is mirrored from scratch.
func (h *Hub) Close(widgetID string) {
	h.mu.Lock()
	for ch := range h.subs[widgetID] {
		close(ch)
	}
	delete(h.subs, widgetID)
	h.mu.Unlock()

	if h.mirror != nil {
		select {
		case h.mirror <- mirrorMsg{snap: core.Snapshot{ID: widgetID}, forget: true}:
		default:
			slog.Warn("field mirror queue full, dropping reset", "widget_id", widgetID)
		}
	}
}

// Subscribers returns the number of open streams for widgetID.
func (h *Hub) Subscribers(widgetID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[widgetID])
}

// RunMirror writes field values to the cache until ctx is done. Snapshots
// older than one already written for the same widget are skipped until
// the widget is closed.
func (h *Hub) RunMirror(ctx context.Context) {
	if h.mirror == nil {
		return
	}
	written := make(map[string]uint64)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.mirror:
			snap := msg.snap
			if msg.forget {
				delete(written, snap.ID)
				continue
			}
			if v, ok := written[snap.ID]; ok && snap.Version < v {
				continue
			}
			written[snap.ID] = snap.Version

			putCtx, cancel := context.WithTimeout(ctx, mirrorTimeout)
			if err := h.cache.Put(putCtx, snap.ID, snap.FieldValue); err != nil {
				slog.Warn("field mirror failed", "widget_id", snap.ID, "error", err)
			}
			cancel()
		}
	}
}

// handleEvents streams snapshots as server-sent events. The current
// snapshot is sent first; later ones only when their version is newer.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	widget, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	rc := http.NewResponseController(w)
	updates, cancel := s.hub.Subscribe(widget.ID())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := logging.ForWidget(r.Context(), widget.ID())
	var sent uint64
	send := func(snap core.Snapshot) bool {
		if sent != 0 && snap.Version <= sent {
			return true
		}
		data, err := json.Marshal(snap)
		if err != nil {
			logger.Error("encode snapshot", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, data); err != nil {
			return false
		}
		sent = snap.Version
		return rc.Flush() == nil
	}

	if !send(widget.Snapshot()) {
		return
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				rc.Flush()
				return
			}
			if !send(snap) {
				return
			}
		case <-heartbeat.C:
			if widget.Destroyed() {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				rc.Flush()
				return
			}
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}
