package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Messages are matched by MapError, so keep the
// lowercase phrases in sync with errorPatterns.
var (
	// ErrEmptyBlob is returned when a dropped blob has no usable payload.
	ErrEmptyBlob = errors.New("empty file")

	// ErrUnacceptedFile is returned when a dropped file does not match the
	// expected names or the type allow-list.
	ErrUnacceptedFile = errors.New("file not accepted")

	// ErrHeaderParse is matched by every *HeaderParseError.
	ErrHeaderParse = errors.New("invalid csv header")

	// ErrFetchFailed wraps loader failures for a prior submission.
	ErrFetchFailed = errors.New("prior submission fetch failed")

	// ErrNotFound is returned by a Fetcher when no prior content exists.
	ErrNotFound = errors.New("prior submission not found")

	// ErrInvalidText is returned when decoded content is not valid UTF-8.
	ErrInvalidText = errors.New("encoding error: content is not valid UTF-8")

	// ErrInvalidTransport is returned for strings that are not valid base64.
	ErrInvalidTransport = errors.New("invalid transport string")

	// ErrFileTooLarge is returned when a blob exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrWidgetNotFound is returned by Registry lookups.
	ErrWidgetNotFound = errors.New("widget not found")

	// ErrNoContent is returned when an operation needs content that is absent.
	ErrNoContent = errors.New("no content for file")

	// ErrResourceNotFound is returned for unknown or released download handles.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrWidgetDestroyed is returned by operations on a destroyed widget.
	ErrWidgetDestroyed = errors.New("widget destroyed")

	// ErrUnknownColumn is returned when assigning a column the widget does
	// not require.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrBinaryContent is returned when text is requested for binary content.
	ErrBinaryContent = errors.New("binary content has no text preview")

	// ErrStaleFetch is returned when a fetch result arrives after a newer
	// save or fetch for the same file. The result is discarded.
	ErrStaleFetch = errors.New("fetch superseded by a newer save")
)

// HeaderParseError reports a malformed CSV header row.
type HeaderParseError struct {
	Line int   // 1-based line where the problem was found
	Err  error // Underlying csv error
}

func (e *HeaderParseError) Error() string {
	return fmt.Sprintf("invalid csv header (line %d): %v", e.Line, e.Err)
}

func (e *HeaderParseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrHeaderParse) hold for every HeaderParseError.
func (e *HeaderParseError) Is(target error) bool {
	return target == ErrHeaderParse
}
