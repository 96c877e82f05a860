package core

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ExtractHeaderRow parses text as CSV and returns the fields of the first
// record. A leading BOM is ignored and parsing stops after the first record,
// so malformed data rows never affect the result.
//
// Empty text yields an empty header. Malformed input before the first record
// boundary (for example an unterminated quote) returns a *HeaderParseError.
func ExtractHeaderRow(text string) ([]string, error) {
	r := csv.NewReader(NewBOMSkippingReader(strings.NewReader(text)))
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		line := 1
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			line = pe.StartLine
		}
		return nil, &HeaderParseError{Line: line, Err: err}
	}

	return record, nil
}

// headerFromContents runs ExtractHeaderRow on stored bytes.
// Binary content has no header; invalid UTF-8 is reported as ErrInvalidText.
func headerFromContents(contents []byte) ([]string, error) {
	if IsBinary(contents) {
		return nil, nil
	}
	text, err := decodeText(contents)
	if err != nil {
		return nil, err
	}
	return ExtractHeaderRow(text)
}
