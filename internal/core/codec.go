package core

// codec.go converts between raw file bytes and the transport string stored in
// the hidden form field.
//
// The transport string is standard base64 of the raw bytes with no data-URL
// prefix. It is the only wire format the widget owns and must round-trip
// exactly with whatever stores the field value.

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"
)

var transportEncoding = base64.StdEncoding

// EncodeTransport returns the transport string for raw bytes.
func EncodeTransport(b []byte) string {
	return transportEncoding.EncodeToString(b)
}

// DecodeTransport returns the raw bytes of a transport string.
func DecodeTransport(s string) ([]byte, error) {
	b, err := transportEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransport, err)
	}
	return b, nil
}

// DecodeBlobToTransportString reads r fully and returns its transport string.
//
// A limit > 0 bounds the number of bytes read; larger blobs fail with
// ErrFileTooLarge. A blob with no bytes fails with ErrEmptyBlob, and the
// caller must leave any existing entry untouched.
func DecodeBlobToTransportString(ctx context.Context, r io.Reader, limit int64) (string, error) {
	data, err := readBlob(ctx, r, limit)
	if err != nil {
		return "", err
	}
	return EncodeTransport(data), nil
}

// readBlob reads at most limit bytes (unbounded when limit <= 0).
func readBlob(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, ErrEmptyBlob
	}

	src := io.Reader(newContextReader(ctx, r))
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}
	if len(data) == 0 {
		return nil, ErrEmptyBlob
	}
	return data, nil
}

// TransportFromDataURL strips the data-URL prefix (everything up to the first
// comma) and returns the transport string of the payload.
//
// Base64 payloads are validated and passed through; percent-encoded payloads
// are decoded and re-encoded. A data URL without a comma or with an empty
// payload is an empty blob.
func TransportFromDataURL(dataURL string) (string, error) {
	idx := strings.IndexByte(dataURL, ',')
	if idx == -1 {
		return "", ErrEmptyBlob
	}

	meta, payload := dataURL[:idx], dataURL[idx+1:]
	if payload == "" {
		return "", ErrEmptyBlob
	}

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		raw, err := DecodeTransport(payload)
		if err != nil {
			return "", err
		}
		if len(raw) == 0 {
			return "", ErrEmptyBlob
		}
		return EncodeTransport(raw), nil
	}

	raw, err := url.PathUnescape(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTransport, err)
	}
	return EncodeTransport([]byte(raw)), nil
}

// dataURLMediaType returns the media type declared before the first comma
// of a data URL, or "" when none is declared.
func dataURLMediaType(dataURL string) string {
	meta, _, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(meta, ";")
	return mediaType
}

// DataURL renders a transport string as a data URL for download links.
func DataURL(transport, mimeHint string) string {
	if mimeHint == "" {
		mimeHint = "application/octet-stream"
	}
	return "data:" + mimeHint + ";base64," + transport
}

// IsBinary reports whether b contains a NUL byte anywhere.
// The whole buffer is scanned; content is already in memory.
func IsBinary(b []byte) bool {
	return bytes.IndexByte(b, 0) >= 0
}

// DecodeTransportStringToUnicodeText decodes a transport string into text.
//
// Bytes are interpreted as UTF-8 exactly as stored, so multi-byte characters
// round-trip. Content that is not valid UTF-8 fails with ErrInvalidText
// rather than being silently replaced.
func DecodeTransportStringToUnicodeText(s string) (string, error) {
	b, err := DecodeTransport(s)
	if err != nil {
		return "", err
	}
	return decodeText(b)
}

func decodeText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidText
	}
	return string(b), nil
}
