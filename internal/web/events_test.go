package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvsubmit/internal/core"
)

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub(nil)
	updates, cancel := h.Subscribe("w")
	defer cancel()

	h.Publish(core.Snapshot{ID: "other", Version: 1})
	h.Publish(core.Snapshot{ID: "w", Version: 2})

	select {
	case snap := <-updates:
		assert.Equal(t, uint64(2), snap.Version)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	assert.Equal(t, 1, h.Subscribers("w"))
}

func TestHub_SlowSubscriberKeepsNewest(t *testing.T) {
	h := NewHub(nil)
	updates, cancel := h.Subscribe("w")
	defer cancel()

	total := subscriberBuffer + 5
	for v := 1; v <= total; v++ {
		h.Publish(core.Snapshot{ID: "w", Version: uint64(v)})
	}

	var last uint64
	for len(updates) > 0 {
		last = (<-updates).Version
	}
	assert.Equal(t, uint64(total), last)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil)
	updates, cancel := h.Subscribe("w")

	h.Close("w")
	_, ok := <-updates
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers("w"))

	// cancel after Close must not close the channel twice.
	assert.NotPanics(t, cancel)
}

func TestHub_Mirror(t *testing.T) {
	cache := newMemCache()
	h := NewHub(cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.RunMirror(ctx)

	h.Publish(core.Snapshot{ID: "w", Version: 2, FieldValue: "new"})
	h.Publish(core.Snapshot{ID: "w", Version: 1, FieldValue: "stale"})
	h.Publish(core.Snapshot{ID: "w", Version: 3, FieldValue: "newest"})

	require.Eventually(t, func() bool {
		v, _, _ := cache.Get(ctx, "w")
		return v == "newest"
	}, time.Second, 10*time.Millisecond)
}

func TestHub_MirrorAfterClose(t *testing.T) {
	cache := newMemCache()
	h := NewHub(cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.RunMirror(ctx)

	h.Publish(core.Snapshot{ID: "w", Version: 4, FieldValue: "old"})
	require.Eventually(t, func() bool {
		v, _, _ := cache.Get(ctx, "w")
		return v == "old"
	}, time.Second, 10*time.Millisecond)

	// Versions restart at zero for a widget recreated under the same id.
	h.Close("w")
	h.Publish(core.Snapshot{ID: "w", Version: 1, FieldValue: "fresh"})

	require.Eventually(t, func() bool {
		v, _, _ := cache.Get(ctx, "w")
		return v == "fresh"
	}, time.Second, 10*time.Millisecond)
}

func TestDeleteWidget_RecreatedWidgetIsMirrored(t *testing.T) {
	cache := newMemCache()
	s := newTestServer(t, Deps{Cache: cache})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.RunMirror(ctx)

	cached := func() string {
		v, _, _ := cache.Get(ctx, "w1")
		return v
	}

	createWidget(t, s, createWidgetRequest{ID: "w1"})
	w, err := s.Registry().Get("w1")
	require.NoError(t, err)
	for i := range 4 {
		w.SaveFile("a.csv", []byte{'a' + byte(i), '\n'})
	}
	last := w.FieldValue()
	require.Eventually(t, func() bool { return cached() == last }, time.Second, 10*time.Millisecond)

	rec := do(t, s, http.MethodDelete, "/api/widgets/w1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	createWidget(t, s, createWidgetRequest{ID: "w1"})
	w, err = s.Registry().Get("w1")
	require.NoError(t, err)
	w.SaveFile("a.csv", []byte("fresh\n"))

	want := w.FieldValue()
	assert.Equal(t, core.EncodeTransport([]byte("fresh\n")), want)
	require.Eventually(t, func() bool { return cached() == want }, time.Second, 10*time.Millisecond)
}

func TestHandleEvents(t *testing.T) {
	s := newTestServer(t, Deps{})
	createWidget(t, s, createWidgetRequest{ID: "e"})
	w, err := s.Registry().Get("e")
	require.NoError(t, err)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/widgets/e/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(resp)

	first := <-events
	assert.Equal(t, "snapshot", first.name)
	assert.Equal(t, "e", first.snap.ID)

	require.Eventually(t, func() bool { return s.hub.Subscribers("e") == 1 }, time.Second, 10*time.Millisecond)
	w.Drop(ctx, core.Blob{Name: "a.csv", Type: "text/csv", Body: strings.NewReader("x\n")})

	next := <-events
	assert.Equal(t, "snapshot", next.name)
	assert.Greater(t, next.snap.Version, first.snap.Version)
	assert.NotEmpty(t, next.snap.FieldValue)

	s.hub.Close("e")
	closed := <-events
	assert.Equal(t, "closed", closed.name)
}

func TestHandleEvents_UnknownWidget(t *testing.T) {
	s := newTestServer(t, Deps{})
	rec := do(t, s, http.MethodGet, "/api/widgets/nope/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type sseEvent struct {
	name string
	snap core.Snapshot
}

// readEvents parses the stream until it ends. Comment lines are skipped.
func readEvents(resp *http.Response) <-chan sseEvent {
	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				if ev.name != "" {
					out <- ev
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.snap)
			}
		}
	}()
	return out
}
