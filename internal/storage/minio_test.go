package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// fakeS3 serves a single bucket over path-style requests.
func fakeS3(t *testing.T, bucket string, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest, ok := strings.CutPrefix(r.URL.Path, "/"+bucket)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		key := strings.TrimPrefix(rest, "/")

		if key == "" {
			// Bucket existence check
			w.WriteHeader(http.StatusOK)
			return
		}

		body, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(noSuchKeyXML))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestObjectStore(t *testing.T, objects map[string]string, maxSize int64) *ObjectStore {
	t.Helper()
	srv := fakeS3(t, "submissions", objects)
	store, err := NewObjectStore(context.Background(), ObjectConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "submissions",
		Prefix:    "term-1/",
		Region:    "us-east-1",
		MaxSize:   maxSize,
	})
	require.NoError(t, err)
	return store
}

func TestObjectStore_ObjectKey(t *testing.T) {
	s := &ObjectStore{prefix: "term-1/"}
	assert.Equal(t, "term-1/sub-1/data.csv", s.ObjectKey("sub-1", "data.csv"))
	assert.Equal(t, "term-1/sub-1/passwd", s.ObjectKey("sub-1", "../../etc/passwd"))
}

func TestObjectStore_Fetch(t *testing.T) {
	store := newTestObjectStore(t, map[string]string{
		"term-1/sub-1/data.csv": "name,score\n1,2\n",
		"term-1/sub-1/big.csv":  strings.Repeat("x", 64),
	}, 32)
	ctx := context.Background()

	transport, err := store.Fetch(ctx, "sub-1", "data.csv")
	require.NoError(t, err)
	assert.Equal(t, core.EncodeTransport([]byte("name,score\n1,2\n")), transport)

	_, err = store.Fetch(ctx, "sub-1", "missing.csv")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.Fetch(ctx, "sub-1", "big.csv")
	assert.ErrorIs(t, err, core.ErrFileTooLarge)
}

func TestNewObjectStore_MissingBucket(t *testing.T) {
	srv := fakeS3(t, "other", nil)
	_, err := NewObjectStore(context.Background(), ObjectConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "submissions",
		Region:    "us-east-1",
	})
	require.Error(t, err)
}
