package web

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/JonMunkholm/csvsubmit/internal/logging"
)

const (
	// maxDropFiles bounds the file parts of one multipart drop.
	maxDropFiles = 32
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 32 << 20
)

type dropResponse struct {
	Result   core.DropResult `json:"result"`
	Snapshot core.Snapshot   `json:"snapshot"`
}

// handleDropFiles saves the "file" parts of a multipart form, as if the
// user had dropped them on the widget. Per-file failures are reported in
// the result; the request itself succeeds.
//
// POST /api/widgets/{id}/files
func (s *Server) handleDropFiles(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Widget.MaxFileSize
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize*maxDropFiles+maxJSONBody)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.respondError(w, r, fmt.Errorf("%w: no file provided", errBadRequest), 0)
		return
	}
	if len(headers) > maxDropFiles {
		s.respondError(w, r, fmt.Errorf("%w: at most %d files per drop", errBadRequest, maxDropFiles), 0)
		return
	}

	blobs := make([]core.Blob, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		files = append(files, f)
		blobs = append(blobs, core.Blob{
			Name: h.Filename,
			Type: h.Header.Get("Content-Type"),
			Body: f,
		})
	}

	result := widget.Drop(r.Context(), blobs...)
	logging.ForWidget(r.Context(), widget.ID()).Info("files dropped",
		"saved", len(result.Saved),
		"rejected", len(result.Rejected),
	)
	s.respondDrop(w, r, widget, result)
}

type dataURLRequest struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// handleDropDataURL saves a file delivered as a data URL, the form a
// browser FileReader produces.
//
// POST /api/widgets/{id}/data-url
func (s *Server) handleDropDataURL(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}

	// base64 grows content by 4/3.
	limit := int64(maxJSONBody)
	if s.cfg.Widget.MaxFileSize > 0 {
		limit += s.cfg.Widget.MaxFileSize/3*4 + 4
	} else {
		limit = 1 << 30
	}

	var req dataURLRequest
	if err := decodeJSON(w, r, limit, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if req.Name == "" || req.DataURL == "" {
		s.respondError(w, r, fmt.Errorf("%w: name and dataUrl are required", errBadRequest), 0)
		return
	}

	result := widget.DropDataURL(req.Name, req.DataURL)
	s.respondDrop(w, r, widget, result)
}

func (s *Server) respondDrop(w http.ResponseWriter, r *http.Request, widget *core.Widget, result core.DropResult) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := widgetView(widget.Snapshot()).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render widget", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, dropResponse{Result: result, Snapshot: widget.Snapshot()})
}

// fileParam returns the {name} segment. chi matches on RawPath when the
// path holds escapes such as %2F, and the segment is still escaped then.
func fileParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			return "", fmt.Errorf("%w: file name: %w", errBadRequest, err)
		}
	}
	if name == "" {
		return "", fmt.Errorf("%w: file name", errBadRequest)
	}
	return name, nil
}

// handleDownload serves a file's bytes. The download handle is reused until
// the file changes.
//
// GET /api/widgets/{id}/files/{name}/download
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	name, err := fileParam(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	res, err := widget.DownloadResource(name)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", res.MIME)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}))
	w.Header().Set("ETag", `"`+res.ID+`"`)
	http.ServeContent(w, r, res.Name, time.Time{}, res.Reader())
}

// handlePreview returns a file's decoded text.
//
// GET /api/widgets/{id}/files/{name}/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	name, err := fileParam(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	text, err := widget.PreviewText(name)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}
