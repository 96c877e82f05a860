package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultFileName is the single-mode storage key and download name.
const DefaultFileName = "student-uploaded.csv"

// maxWarnings bounds the warning list; older entries are dropped first.
const maxWarnings = 20

// Options configures a Widget. Zero values select the defaults noted on
// each field.
type Options struct {
	ID   string // Instance id; a random UUID when empty
	Mode Mode   // ModeSingle when empty

	// Single mode
	FileName        string   // Storage key, DefaultFileName when empty
	AcceptedTypes   []string // DefaultAcceptedTypes when nil
	RequiredColumns []string

	// Multi mode
	ExpectedFiles []string

	// ColumnAssignments pre-populates column fields from a saved map.
	ColumnAssignments map[string]string

	Serializer  Serializer     // DefaultSerializer(Mode) when nil
	Field       FormField      // A fresh *HiddenField when nil
	Render      RenderSink     // No-op when nil
	Limiter     *DecodeLimiter // Unbounded decodes when nil
	Resources   *Resources     // Private table when nil
	MaxFileSize int64          // Unbounded when <= 0
	Logger      *slog.Logger   // slog.Default() when nil
}

type origin int

const (
	originUser origin = iota
	originLoad
)

// fetchState holds the externally reported states. Present is never
// stored here; it is derived from the file store.
type fetchState struct {
	status FetchStatus
	err    string
}

// Widget is one file submission widget instance. It owns the file store,
// the per-file fetch status and the serialized field value, and is safe
// for concurrent use.
//
// Every mutation runs the serializer before returning and then notifies the
// render sink outside the lock. Snapshot versions let sinks ignore
// snapshots that arrive out of order.
type Widget struct {
	id         string
	mode       Mode
	fileName   string
	expected   []ExpectedFile
	required   []string
	accepted   []string
	serializer Serializer
	field      FormField
	render     RenderSink
	limiter    *DecodeLimiter
	resources  *Resources
	maxSize    int64
	logger     *slog.Logger

	mu          sync.Mutex
	store       *fileStore
	fetches     map[string]fetchState
	gens        map[string]uint64
	downloads   map[string]string
	assignments map[string]string
	header      []string
	headerErr   string
	warnings    []string
	value       string
	unloadCheck bool
	version     uint64
	destroyed   bool
	lastActive  time.Time
}

// NewWidget validates opts and creates an empty widget. The form field is
// written with the empty serialization before NewWidget returns.
func NewWidget(opts Options) (*Widget, error) {
	if opts.Mode == "" {
		opts.Mode = ModeSingle
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown widget mode %q", opts.Mode)
	}

	w := &Widget{
		id:          opts.ID,
		mode:        opts.Mode,
		fileName:    opts.FileName,
		required:    slices.Clone(opts.RequiredColumns),
		accepted:    opts.AcceptedTypes,
		serializer:  opts.Serializer,
		field:       opts.Field,
		render:      opts.Render,
		limiter:     opts.Limiter,
		resources:   opts.Resources,
		maxSize:     opts.MaxFileSize,
		store:       newFileStore(),
		fetches:     make(map[string]fetchState),
		gens:        make(map[string]uint64),
		downloads:   make(map[string]string),
		assignments: make(map[string]string),
		lastActive:  time.Now(),
	}

	if w.mode == ModeMulti {
		if len(opts.ExpectedFiles) == 0 {
			return nil, errors.New("multi mode needs at least one expected file")
		}
		expected, err := newExpectedFiles(opts.ExpectedFiles)
		if err != nil {
			return nil, err
		}
		w.expected = expected
	}

	if w.id == "" {
		w.id = uuid.NewString()
	}
	if w.fileName == "" {
		w.fileName = DefaultFileName
	}
	if w.accepted == nil {
		w.accepted = DefaultAcceptedTypes
	}
	if w.serializer == nil {
		w.serializer = DefaultSerializer(w.mode)
	}
	if _, single := w.serializer.(SingleValue); single && w.mode == ModeMulti {
		return nil, errors.New("multi mode needs the structured serializer")
	}
	if w.field == nil {
		w.field = &HiddenField{}
	}
	if w.render == nil {
		w.render = nopRender{}
	}
	if w.resources == nil {
		w.resources = NewResources()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w.logger = logger.With("widget_id", w.id)

	w.restoreAssignmentsLocked(opts.ColumnAssignments)
	w.syncFieldLocked()

	return w, nil
}

// ID returns the widget instance id.
func (w *Widget) ID() string { return w.id }

// Mode returns the widget mode.
func (w *Widget) Mode() Mode { return w.mode }

// Field returns the form field the serializer writes to.
func (w *Widget) Field() FormField { return w.field }

// Serializer returns the field encoding in use.
func (w *Widget) Serializer() Serializer { return w.serializer }

// FileName returns the single-mode storage key.
func (w *Widget) FileName() string { return w.fileName }

// ExpectedFiles returns the multi-mode expected files in display order.
func (w *Widget) ExpectedFiles() []ExpectedFile {
	return slices.Clone(w.expected)
}

// RequiredColumns returns the advisory column list.
func (w *Widget) RequiredColumns() []string {
	return slices.Clone(w.required)
}

// =============================================================================
// FILE STORE
// =============================================================================

// SaveFile inserts or overwrites the entry for name as a user save.
//
// In single mode the entry is stored under FileName; in multi mode a name
// matching an expected file is stored under its display name. Saving
// identical contents reports changed == false, but the field is still
// rewritten and the render sink still notified.
func (w *Widget) SaveFile(name string, contents []byte) (changed bool) {
	changed, err := w.save(name, contents, originUser)
	if err != nil {
		w.logger.Warn("save ignored", "file", name, "error", err)
		return false
	}
	return changed
}

// FileContents returns the stored contents for an exact storage key.
// ok is false when nothing was saved under name.
func (w *Widget) FileContents(name string) (contents []byte, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.store.get(name)
	if !ok {
		return nil, false
	}
	return bytes.Clone(b), true
}

// Files returns a copy of the stored files in insertion order.
func (w *Widget) Files() []SubmittedFile {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := w.store.list()
	for i := range files {
		files[i].Contents = bytes.Clone(files[i].Contents)
	}
	return files
}

func (w *Widget) save(name string, contents []byte, from origin) (bool, error) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return false, ErrWidgetDestroyed
	}
	changed := w.saveLocked(w.storageKey(name), contents, from)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
	return changed, nil
}

// saveTransport decodes a transport string and saves the result.
func (w *Widget) saveTransport(key, transport string, from origin) (bool, error) {
	contents, err := DecodeTransport(transport)
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, ErrEmptyBlob
	}
	return w.save(key, contents, from)
}

func (w *Widget) saveLocked(key string, contents []byte, from origin) bool {
	cleared := w.clearPendingAndFailed(key)
	w.gens[key]++

	changed := w.store.put(key, contents)
	if changed {
		w.releaseDownloadLocked(key)
	}
	if changed || cleared {
		w.version++
	}

	stored, _ := w.store.get(key)
	w.inspectHeaderLocked(key, stored, changed)
	w.syncFieldLocked()

	if from == originUser && !w.unloadCheck {
		w.unloadCheck = true
		w.field.EnableUnloadCheck()
	}
	w.lastActive = time.Now()

	w.logger.Debug("file saved",
		"file", key,
		"bytes", len(contents),
		"changed", changed,
		"user", from == originUser,
	)
	return changed
}

// clearPendingAndFailed moves key out of Pending/Failed. A save is the only
// transition that resolves either state.
func (w *Widget) clearPendingAndFailed(key string) bool {
	if _, ok := w.fetches[key]; !ok {
		return false
	}
	delete(w.fetches, key)
	return true
}

func (w *Widget) syncFieldLocked() {
	value, err := w.serializer.Serialize(w.store.list())
	if err != nil {
		w.logger.Error("serialize field", "error", err)
		return
	}
	w.value = value
	w.field.SetValue(value)
}

// inspectHeaderLocked recomputes the header row from the latest save.
func (w *Widget) inspectHeaderLocked(key string, contents []byte, changed bool) {
	header, err := headerFromContents(contents)
	if err != nil {
		w.header = nil
		w.headerErr = FormatUserError(err)
		if changed {
			w.addWarningLocked(fmt.Sprintf("Could not read the header row of %s.", key))
		}
		w.logger.Debug("header inspection failed", "file", key, "error", err)
		return
	}
	w.header = header
	w.headerErr = ""
}

// storageKey maps a user-supplied name to the key it is stored under.
func (w *Widget) storageKey(name string) string {
	if w.mode == ModeSingle {
		return w.fileName
	}
	if ef, ok := MatchExpected(w.expected, name); ok {
		return ef.DisplayName
	}
	return name
}

// RestoreFieldValue pre-populates the store from a previously persisted
// field value. Restored files do not enable the unload check.
func (w *Widget) RestoreFieldValue(value string) error {
	var files []SubmittedFile

	switch s := w.serializer.(type) {
	case SingleValue:
		contents, ok, err := ParseSingleValue(value, s.Quoted)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, SubmittedFile{Name: w.fileName, Contents: contents})
		}
	case Structured:
		parsed, err := ParseStructured(value)
		if err != nil {
			return err
		}
		files = parsed
	default:
		return fmt.Errorf("cannot restore field value for %T", w.serializer)
	}

	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return ErrWidgetDestroyed
	}
	for _, f := range files {
		if len(f.Contents) == 0 {
			continue
		}
		w.saveLocked(w.storageKey(f.Name), f.Contents, originLoad)
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
	return nil
}

// =============================================================================
// DROPS
// =============================================================================

// Rejection explains why a dropped file was not saved.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
	Err    error  `json:"-"`
}

// SavedFile is one accepted drop.
type SavedFile struct {
	Name    string `json:"name"`
	Changed bool   `json:"changed"`
}

// DropResult reports the outcome of a drop, in completion order.
type DropResult struct {
	Saved    []SavedFile `json:"saved"`
	Rejected []Rejection `json:"rejected"`
}

func newRejection(name string, err error) Rejection {
	msg := MapError(err)
	return Rejection{Name: name, Reason: msg.Message, Code: msg.Code, Err: err}
}

// accept applies the acceptance predicate and returns the storage key.
func (w *Widget) accept(name, mimeType string) (string, string, error) {
	if w.mode == ModeMulti {
		ef, ok := MatchExpected(w.expected, name)
		if !ok {
			return "", fmt.Sprintf("%s did not match any accepted file for this question.", name), ErrUnacceptedFile
		}
		return ef.DisplayName, "", nil
	}
	if !AcceptsType(w.accepted, name, mimeType) {
		return "", fmt.Sprintf("%s is not an accepted file type.", name), ErrUnacceptedFile
	}
	return w.fileName, "", nil
}

// warningFor renders the user warning for a failed decode or save.
func warningFor(name string, err error) string {
	if errors.Is(err, ErrEmptyBlob) {
		return fmt.Sprintf("%s is empty, ignoring file.", name)
	}
	return fmt.Sprintf("%s: %s", name, FormatUserError(err))
}

// Drop accepts dropped blobs. Unaccepted files are rejected before any
// decode starts; accepted blobs are decoded concurrently and each completion
// saves its own entry, so the last completion for a name wins. In single
// mode only the first accepted blob is kept.
//
// Drop never fails as a whole: every problem is recorded as a rejection and
// a widget warning.
func (w *Widget) Drop(ctx context.Context, blobs ...Blob) DropResult {
	var (
		result   DropResult
		resultMu sync.Mutex
		g        errgroup.Group
		accepted int
	)

	reject := func(name, warning string, err error) {
		resultMu.Lock()
		result.Rejected = append(result.Rejected, newRejection(name, err))
		resultMu.Unlock()
		w.Warn(warning)
		w.logger.Info("file rejected", "file", name, "error", err)
	}

	for _, blob := range blobs {
		key, warning, err := w.accept(blob.Name, blob.Type)
		if err == nil && w.mode == ModeSingle && accepted > 0 {
			warning = fmt.Sprintf("Only one file may be uploaded; ignoring %s.", blob.Name)
			err = fmt.Errorf("%w: only one file allowed", ErrUnacceptedFile)
		}
		if err != nil {
			reject(blob.Name, warning, err)
			continue
		}
		accepted++

		g.Go(func() error {
			if w.limiter != nil {
				if err := w.limiter.Acquire(ctx); err != nil {
					reject(blob.Name, warningFor(blob.Name, err), err)
					return nil
				}
				defer w.limiter.Release()
			}

			transport, err := DecodeBlobToTransportString(ctx, blob.Body, w.maxSize)
			if err != nil {
				reject(blob.Name, warningFor(blob.Name, err), err)
				return nil
			}

			changed, err := w.saveTransport(key, transport, originUser)
			if err != nil {
				reject(blob.Name, warningFor(blob.Name, err), err)
				return nil
			}

			resultMu.Lock()
			result.Saved = append(result.Saved, SavedFile{Name: key, Changed: changed})
			resultMu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return result
}

// DropDataURL accepts one file delivered as a data URL.
func (w *Widget) DropDataURL(name, dataURL string) DropResult {
	var result DropResult

	key, warning, err := w.accept(name, dataURLMediaType(dataURL))
	if err == nil {
		var contents []byte
		contents, err = w.dataURLContents(dataURL)
		if err == nil {
			var changed bool
			changed, err = w.save(key, contents, originUser)
			if err == nil {
				result.Saved = append(result.Saved, SavedFile{Name: key, Changed: changed})
				return result
			}
		}
		warning = warningFor(name, err)
	}

	result.Rejected = append(result.Rejected, newRejection(name, err))
	w.Warn(warning)
	return result
}

// dataURLContents decodes a data URL payload and applies the file size limit.
func (w *Widget) dataURLContents(dataURL string) ([]byte, error) {
	transport, err := TransportFromDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	contents, err := DecodeTransport(transport)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, ErrEmptyBlob
	}
	if w.maxSize > 0 && int64(len(contents)) > w.maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, w.maxSize)
	}
	return contents, nil
}

// =============================================================================
// PRIOR SUBMISSION FETCHES
// =============================================================================

// FetchTicket identifies one in-flight fetch. A ticket goes stale as soon as
// the same file is saved or fetched again.
type FetchTicket struct {
	Name string
	gen  uint64
}

// BeginFetch marks name Pending. ok is false when the file already has
// content or the widget was destroyed.
func (w *Widget) BeginFetch(name string) (FetchTicket, bool) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return FetchTicket{}, false
	}
	key := w.storageKey(name)
	if w.store.has(key) {
		w.mu.Unlock()
		return FetchTicket{}, false
	}

	w.gens[key]++
	ticket := FetchTicket{Name: key, gen: w.gens[key]}
	w.fetches[key] = fetchState{status: StatusPending}
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
	return ticket, true
}

func (w *Widget) ticketValidLocked(t FetchTicket) bool {
	return !w.destroyed && t.gen != 0 && w.gens[t.Name] == t.gen
}

// CompleteFetch saves fetched content. Results for a stale ticket are
// discarded with ErrStaleFetch. Empty or corrupt content fails the fetch.
func (w *Widget) CompleteFetch(t FetchTicket, transport string) error {
	contents, err := DecodeTransport(transport)
	if err == nil && len(contents) == 0 {
		err = ErrEmptyBlob
	}
	if err != nil {
		if !w.FailFetch(t, err) {
			return ErrStaleFetch
		}
		return err
	}

	w.mu.Lock()
	if !w.ticketValidLocked(t) {
		w.mu.Unlock()
		w.logger.Debug("discarding stale fetch", "file", t.Name)
		return ErrStaleFetch
	}
	w.saveLocked(t.Name, contents, originLoad)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
	return nil
}

// FailFetch marks the file Failed. Returns false for a stale ticket.
func (w *Widget) FailFetch(t FetchTicket, cause error) bool {
	err := fmt.Errorf("%w: %v", ErrFetchFailed, cause)

	w.mu.Lock()
	if !w.ticketValidLocked(t) {
		w.mu.Unlock()
		return false
	}
	w.fetches[t.Name] = fetchState{status: StatusFailed, err: FormatUserError(err)}
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.logger.Warn("prior submission fetch failed", "file", t.Name, "error", cause)
	w.render.Refresh(snap)
	return true
}

// CancelFetch returns the file to NotStarted, for example when no prior
// content exists. Returns false for a stale ticket.
func (w *Widget) CancelFetch(t FetchTicket) bool {
	w.mu.Lock()
	if !w.ticketValidLocked(t) {
		w.mu.Unlock()
		return false
	}
	delete(w.fetches, t.Name)
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
	return true
}

// Status returns the fetch status of one file.
func (w *Widget) Status(name string) FetchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statusLocked(w.storageKey(name))
}

func (w *Widget) statusLocked(key string) FetchStatus {
	if w.store.has(key) {
		return StatusPresent
	}
	if fs, ok := w.fetches[key]; ok {
		return fs.status
	}
	return StatusNotStarted
}

// Names returns the files the widget tracks: the expected files in multi
// mode plus anything saved under another name, or FileName in single mode.
func (w *Widget) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.namesLocked()
}

func (w *Widget) namesLocked() []string {
	if w.mode == ModeSingle {
		return []string{w.fileName}
	}

	names := make([]string, 0, len(w.expected))
	for _, ef := range w.expected {
		names = append(names, ef.DisplayName)
	}
	for _, f := range w.store.list() {
		if !slices.Contains(names, f.Name) {
			names = append(names, f.Name)
		}
	}
	return names
}

// =============================================================================
// HEADER AND COLUMNS
// =============================================================================

// Header returns the header row of the most recent save. It is empty when
// nothing is stored, the content is binary, or the header could not be read.
func (w *Widget) Header() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.header)
}

// AssignColumn records which header a required column maps to. An empty
// header clears the assignment. Assignments are advisory and are not
// checked against the current header row.
func (w *Widget) AssignColumn(column, header string) error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return ErrWidgetDestroyed
	}
	if !slices.Contains(w.required, column) {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}

	if header == "" {
		delete(w.assignments, column)
	} else {
		w.assignments[column] = header
	}
	w.version++
	w.lastActive = time.Now()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
	return nil
}

// RestoreColumnAssignments pre-populates column fields from a saved map.
// Keys that are not required columns are ignored.
func (w *Widget) RestoreColumnAssignments(saved map[string]string) {
	w.mu.Lock()
	w.restoreAssignmentsLocked(saved)
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
}

func (w *Widget) restoreAssignmentsLocked(saved map[string]string) {
	for column, header := range saved {
		if header != "" && slices.Contains(w.required, column) {
			w.assignments[column] = header
		}
	}
}

// ColumnAssignments returns the assignment fields keyed by field name.
func (w *Widget) ColumnAssignments() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]string, len(w.assignments))
	for column, header := range w.assignments {
		out[ColumnFieldName(w.id, column)] = header
	}
	return out
}

// =============================================================================
// WARNINGS
// =============================================================================

// Warn appends a user-visible warning.
func (w *Widget) Warn(msg string) {
	w.mu.Lock()
	w.addWarningLocked(msg)
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
}

func (w *Widget) addWarningLocked(msg string) {
	w.warnings = append(w.warnings, msg)
	if over := len(w.warnings) - maxWarnings; over > 0 {
		w.warnings = slices.Delete(w.warnings, 0, over)
	}
}

// Warnings returns the current warnings, oldest first.
func (w *Widget) Warnings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.warnings)
}

// ClearWarnings dismisses all warnings.
func (w *Widget) ClearWarnings() {
	w.mu.Lock()
	w.warnings = nil
	w.version++
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.render.Refresh(snap)
}

// =============================================================================
// DOWNLOADS AND PREVIEW
// =============================================================================

// DownloadResource returns the download handle for a stored file, creating
// it on first use. The handle is released when the file is overwritten or
// the widget is destroyed.
func (w *Widget) DownloadResource(name string) (*Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.destroyed {
		return nil, ErrWidgetDestroyed
	}
	key := w.storageKey(name)
	contents, ok := w.store.get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, key)
	}

	if id, ok := w.downloads[key]; ok {
		if res, err := w.resources.Open(id); err == nil {
			return res, nil
		}
	}

	res, err := w.resources.Create(EncodeTransport(contents), mimeForName(key))
	if err != nil {
		return nil, err
	}
	res.Name = key
	w.downloads[key] = res.ID
	return res, nil
}

func (w *Widget) releaseDownloadLocked(key string) {
	if id, ok := w.downloads[key]; ok {
		w.resources.Release(id)
		delete(w.downloads, key)
	}
}

// PreviewText returns the stored file as text. Binary content fails with
// ErrBinaryContent and invalid UTF-8 with ErrInvalidText.
func (w *Widget) PreviewText(name string) (string, error) {
	w.mu.Lock()
	key := w.storageKey(name)
	contents, ok := w.store.get(key)
	binary := w.store.isBinary(key)
	w.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoContent, key)
	}
	if binary {
		return "", fmt.Errorf("%w: %s", ErrBinaryContent, key)
	}
	return decodeText(contents)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Destroy releases every download handle and drops the stored files.
// Later mutations fail with ErrWidgetDestroyed. The form field keeps its
// last value.
func (w *Widget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.destroyed {
		return
	}
	w.destroyed = true
	for key := range w.downloads {
		w.releaseDownloadLocked(key)
	}
	w.store.clear()
	w.fetches = make(map[string]fetchState)
	w.logger.Debug("widget destroyed")
}

// Destroyed reports whether Destroy was called.
func (w *Widget) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// LastActive returns the time of the last mutation.
func (w *Widget) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// FieldValue returns the current serialized value.
func (w *Widget) FieldValue() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Widget) snapshotLocked() Snapshot {
	names := w.namesLocked()
	files := make([]FileState, 0, len(names))
	for _, name := range names {
		fs := FileState{Name: name, Status: w.statusLocked(name)}
		if contents, ok := w.store.get(name); ok {
			fs.Size = len(contents)
			fs.Binary = w.store.isBinary(name)
		}
		if f, ok := w.fetches[name]; ok && f.status == StatusFailed {
			fs.Error = f.err
		}
		files = append(files, fs)
	}

	columns := make([]ColumnField, 0, len(w.required))
	for _, column := range w.required {
		columns = append(columns, ColumnField{
			Column:    column,
			FieldName: ColumnFieldName(w.id, column),
			Assigned:  w.assignments[column],
		})
	}

	header := slices.Clone(w.header)
	if header == nil {
		header = []string{}
	}
	warnings := slices.Clone(w.warnings)
	if warnings == nil {
		warnings = []string{}
	}

	snap := Snapshot{
		ID:          w.id,
		Mode:        w.mode,
		Version:     w.version,
		Files:       files,
		Header:      header,
		HeaderError: w.headerErr,
		Columns:     columns,
		FieldValue:  w.value,
		UnloadCheck: w.unloadCheck,
		Warnings:    warnings,
	}
	if w.mode == ModeSingle {
		snap.FileName = w.fileName
	}
	return snap
}
