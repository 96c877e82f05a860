package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/JonMunkholm/csvsubmit/internal/logging"
)

// maxJSONBody bounds JSON request bodies other than data-URL drops.
const maxJSONBody = 1 << 20

var widgetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// createWidgetRequest configures a new widget.
type createWidgetRequest struct {
	ID            string    `json:"id,omitempty"`
	Mode          core.Mode `json:"mode"`
	FileName      string    `json:"fileName,omitempty"`
	ExpectedFiles []string  `json:"expectedFiles,omitempty"`
	AcceptedTypes []string  `json:"acceptedTypes,omitempty"`

	// RequiredColumns wins over RequiredColumnsAttr, the raw
	// comma-separated attribute with backslash escapes.
	RequiredColumns     []string `json:"requiredColumns,omitempty"`
	RequiredColumnsAttr string   `json:"requiredColumnsAttr,omitempty"`

	// Serialization is "single", "quoted" or "structured"; empty picks
	// the mode default.
	Serialization string `json:"serialization,omitempty"`

	// FieldValue restores a previously submitted field value. When empty,
	// a cached value for ID is used if one exists.
	FieldValue        string            `json:"fieldValue,omitempty"`
	ColumnAssignments map[string]string `json:"columnAssignments,omitempty"`

	// SubmissionID starts a background load of prior submitted files.
	SubmissionID string `json:"submissionId,omitempty"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, tooBig.Limit)
		}
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func serializerFor(name string) (core.Serializer, error) {
	switch name {
	case "":
		return nil, nil
	case "single":
		return core.SingleValue{}, nil
	case "quoted":
		return core.SingleValue{Quoted: true}, nil
	case "structured":
		return core.Structured{}, nil
	}
	return nil, fmt.Errorf("%w: unknown serialization %q", errBadRequest, name)
}

func (s *Server) widgetOptions(req createWidgetRequest) (core.Options, error) {
	serializer, err := serializerFor(req.Serialization)
	if err != nil {
		return core.Options{}, err
	}

	columns := req.RequiredColumns
	if len(columns) == 0 && req.RequiredColumnsAttr != "" {
		if columns, err = core.ParseClist(req.RequiredColumnsAttr); err != nil {
			return core.Options{}, fmt.Errorf("%w: required columns: %v", errBadRequest, err)
		}
	}

	accepted := req.AcceptedTypes
	if len(accepted) == 0 {
		accepted = s.cfg.Widget.AcceptedTypes
	}

	return core.Options{
		ID:                req.ID,
		Mode:              req.Mode,
		FileName:          req.FileName,
		AcceptedTypes:     accepted,
		RequiredColumns:   columns,
		ExpectedFiles:     req.ExpectedFiles,
		ColumnAssignments: req.ColumnAssignments,
		Serializer:        serializer,
		Render:            s.hub.Sink(),
		Limiter:           s.limiter,
		Resources:         s.resources,
		MaxFileSize:       s.cfg.Widget.MaxFileSize,
		Logger:            logging.WithFields(context.Background(), "submission_id", req.SubmissionID),
	}, nil
}

// handleCreateWidget creates and registers a widget.
//
// POST /api/widgets
func (s *Server) handleCreateWidget(w http.ResponseWriter, r *http.Request) {
	var req createWidgetRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if !widgetIDPattern.MatchString(req.ID) {
		s.respondError(w, r, fmt.Errorf("%w: widget id %q", errBadRequest, req.ID), 0)
		return
	}

	opts, err := s.widgetOptions(req)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	widget, err := core.NewWidget(opts)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), 0)
		return
	}

	logger := logging.ForWidget(r.Context(), widget.ID())

	fieldValue := req.FieldValue
	if fieldValue == "" && s.cache != nil {
		cached, ok, err := s.cache.Get(r.Context(), widget.ID())
		if err != nil {
			logger.Warn("field cache lookup failed", "error", err)
		} else if ok {
			fieldValue = cached
		}
	}
	if fieldValue != "" {
		if err := widget.RestoreFieldValue(fieldValue); err != nil {
			logger.Warn("could not restore field value", "error", err)
			widget.Warn("Your previous answer could not be restored. Please upload the file again.")
		}
	}

	if err := s.registry.Add(widget); err != nil {
		widget.Destroy()
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), http.StatusConflict)
		return
	}

	s.startLoad(r.Context(), widget, req.SubmissionID)

	logger.Info("widget created", "mode", widget.Mode(), "files", len(widget.Names()))
	writeJSON(w, http.StatusCreated, widget.Snapshot())
}

// startLoad fetches prior submitted files in the background. The load keeps
// the request's trace as parent but not its deadline.
func (s *Server) startLoad(reqCtx context.Context, widget *core.Widget, submissionID string) {
	if s.source == nil || submissionID == "" {
		return
	}
	fetcher := s.source.Fetcher(submissionID)

	s.loads.Add(1)
	go func() {
		defer s.loads.Done()

		ctx := trace.ContextWithSpanContext(s.bgCtx, trace.SpanContextFromContext(reqCtx))
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Widget.LoadTimeout)
		defer cancel()

		report := core.LoadPriorSubmission(ctx, widget, fetcher, s.cfg.Widget.FetchConcurrency)
		logging.ForWidget(ctx, widget.ID()).Info("prior submission loaded",
			"submission_id", submissionID,
			"loaded", len(report.Loaded),
			"missing", len(report.Missing),
			"failed", len(report.Failed),
			"skipped", len(report.Skipped),
		)
	}()
}

func (s *Server) widget(w http.ResponseWriter, r *http.Request) (*core.Widget, bool) {
	widget, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return nil, false
	}
	return widget, true
}

// handleGetWidget returns the widget snapshot.
//
// GET /api/widgets/{id}
func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, widget.Snapshot())
}

// handleDeleteWidget destroys the widget, ends its event streams and drops
// the cached field value.
//
// DELETE /api/widgets/{id}
func (s *Server) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.registry.Remove(id) {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrWidgetNotFound, id), 0)
		return
	}
	s.hub.Close(id)
	if s.cache != nil {
		if err := s.cache.Delete(r.Context(), id); err != nil {
			logging.ForWidget(r.Context(), id).Warn("could not drop cached field", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type loadRequest struct {
	SubmissionID string `json:"submissionId"`
}

// handleLoadPrior fetches prior submitted files and waits for the result.
// Files already present are skipped, so it doubles as a retry for failed
// fetches.
//
// POST /api/widgets/{id}/load
func (s *Server) handleLoadPrior(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	var req loadRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if req.SubmissionID == "" {
		s.respondError(w, r, fmt.Errorf("%w: submissionId is required", errBadRequest), 0)
		return
	}
	if s.source == nil {
		s.respondError(w, r, fmt.Errorf("no prior submission source configured"), http.StatusNotImplemented)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Widget.LoadTimeout)
	defer cancel()
	report := core.LoadPriorSubmission(ctx, widget, s.source.Fetcher(req.SubmissionID), s.cfg.Widget.FetchConcurrency)

	writeJSON(w, http.StatusOK, map[string]any{
		"report":   report,
		"snapshot": widget.Snapshot(),
	})
}

// handleGetField returns the hidden field value. For a widget that was
// swept or destroyed the cached value is returned instead.
//
// GET /api/widgets/{id}/field
func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	widget, err := s.registry.Get(id)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":  answerFieldName(widget.Snapshot()),
			"value": widget.FieldValue(),
		})
		return
	}

	if s.cache != nil {
		value, ok, cacheErr := s.cache.Get(r.Context(), id)
		if cacheErr != nil {
			logging.ForWidget(r.Context(), id).Warn("field cache lookup failed", "error", cacheErr)
		} else if ok {
			writeJSON(w, http.StatusOK, map[string]any{"value": value, "cached": true})
			return
		}
	}
	s.respondError(w, r, err, 0)
}

type columnsRequest struct {
	Assignments map[string]string `json:"assignments"`
}

// handleAssignColumns records column choices. An empty header clears one.
//
// PUT /api/widgets/{id}/columns
func (s *Server) handleAssignColumns(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	var req columnsRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	for column, header := range req.Assignments {
		if err := widget.AssignColumn(column, header); err != nil {
			s.respondError(w, r, err, 0)
			return
		}
	}
	writeJSON(w, http.StatusOK, widget.Snapshot())
}

// handleClearWarnings dismisses the widget's warnings.
//
// DELETE /api/widgets/{id}/warnings
func (s *Server) handleClearWarnings(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	widget.ClearWarnings()
	writeJSON(w, http.StatusOK, widget.Snapshot())
}

type parseRequest struct {
	// Values are posted form values. When empty, the widget's own field
	// and column assignments are parsed.
	Values          map[string]string `json:"values,omitempty"`
	ValidateColumns bool              `json:"validateColumns,omitempty"`
}

type parseResponse struct {
	core.ParsedSubmission
	Size   int      `json:"size"`
	Header []string `json:"header"`
}

// handleParseSubmission parses submitted values of a single-file widget
// the way the grader would receive them.
//
// POST /api/widgets/{id}/parse
func (s *Server) handleParseSubmission(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	if widget.Mode() != core.ModeSingle {
		s.respondError(w, r, fmt.Errorf("%w: parse applies to single-file widgets", errBadRequest), 0)
		return
	}

	var req parseRequest
	if err := decodeJSON(w, r, s.cfg.Widget.MaxFileSize*2+maxJSONBody, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, r, err, 0)
		return
	}

	values := req.Values
	if len(values) == 0 {
		values = widget.ColumnAssignments()
		values[core.AnswerName(widget.FileName())] = widget.FieldValue()
	}

	quoted := false
	if sv, ok := widget.Serializer().(core.SingleValue); ok {
		quoted = sv.Quoted
	}

	parsed := core.ParseSubmission(values, core.ParseOptions{
		FileName:        widget.FileName(),
		Instance:        widget.ID(),
		Columns:         widget.RequiredColumns(),
		Quoted:          quoted,
		ValidateColumns: req.ValidateColumns,
	})

	resp := parseResponse{ParsedSubmission: parsed, Size: len(parsed.Contents)}
	if parsed.Contents != nil && !core.IsBinary(parsed.Contents) {
		resp.Header, _ = core.ExtractHeaderRow(string(parsed.Contents))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWidgetPage renders the widget as HTML.
//
// GET /widgets/{id}
func (s *Server) handleWidgetPage(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.widget(w, r)
	if !ok {
		return
	}
	snap := widget.Snapshot()
	if isHTMX(r) {
		templ.Handler(widgetView(snap)).ServeHTTP(w, r)
		return
	}
	templ.Handler(widgetPage(snap)).ServeHTTP(w, r)
}
