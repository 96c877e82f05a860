package core

// submission.go handles the server side of a submitted widget: the names
// of the form fields it writes and parsing of the values the form posts.

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Format errors reported by ParseSubmission.
const (
	msgNoAnswer          = "No submitted answer for single CSV upload."
	msgUnparseable       = "Could not parse submitted files."
	msgDuplicateColumns  = "Some columns have duplicate names. Please ensure that each column has a unique name."
	msgMissingColumnsFmt = "The following columns are missing from the uploaded CSV file: %s"
)

var errDanglingEscape = errors.New("column list ends with an escape character")

// AnswerName returns the form field name for a single-mode widget. It is
// derived from the file name, so the same question always posts the same
// field.
func AnswerName(fileName string) string {
	sum := sha1.Sum([]byte(fileName))
	return "_single_csv_upload_" + hex.EncodeToString(sum[:])
}

// ColumnFieldName returns the assignment field name for one required column.
func ColumnFieldName(instance, column string) string {
	return instance + "-" + column
}

// ParseClist splits a comma-separated column list. A backslash escapes the
// next character, quotes have no special meaning, and spaces right after a
// separator are skipped. Only the first line is read.
func ParseClist(raw string) ([]string, error) {
	var (
		fields  []string
		field   strings.Builder
		escaped bool
		started bool
		skip    = true
	)

	for _, r := range raw {
		if escaped {
			field.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\n' || r == '\r' {
			break
		}
		if skip && r == ' ' {
			started = true
			continue
		}
		skip = false
		started = true

		switch r {
		case '\\':
			escaped = true
		case ',':
			fields = append(fields, field.String())
			field.Reset()
			skip = true
		default:
			field.WriteRune(r)
		}
	}

	if escaped {
		return nil, errDanglingEscape
	}
	if !started {
		return []string{}, nil
	}
	return append(fields, field.String()), nil
}

// ParseOptions describes the widget whose values are being parsed.
type ParseOptions struct {
	FileName string   // DefaultFileName when empty
	Instance string   // Prefix of the column fields; AnswerName(FileName) when empty
	Columns  []string // Required columns
	Quoted   bool     // The answer is a JSON-encoded transport string

	// ValidateColumns turns on the duplicate and missing column checks.
	// Off by default: required columns are advisory.
	ValidateColumns bool
}

// ParsedSubmission is the result of ParseSubmission.
type ParsedSubmission struct {
	FileName string            `json:"fileName"`
	Contents []byte            `json:"-"`
	Columns  map[string]string `json:"columns"` // Required column -> chosen header
	Errors   []string          `json:"errors"`
}

// Valid reports whether parsing produced no format errors.
func (p ParsedSubmission) Valid() bool {
	return len(p.Errors) == 0
}

// ParseSubmission reads the posted form values of a single-mode widget.
// Problems are collected as user-facing format errors rather than returned.
func ParseSubmission(values map[string]string, opts ParseOptions) ParsedSubmission {
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	answer := AnswerName(opts.FileName)
	if opts.Instance == "" {
		opts.Instance = answer
	}

	result := ParsedSubmission{
		FileName: opts.FileName,
		Columns:  make(map[string]string, len(opts.Columns)),
		Errors:   []string{},
	}

	raw := values[answer]
	if raw == "" {
		result.Errors = append(result.Errors, msgNoAnswer)
		return result
	}

	contents, ok, err := ParseSingleValue(raw, opts.Quoted)
	switch {
	case err != nil:
		result.Errors = append(result.Errors, msgUnparseable)
	case !ok:
		result.Errors = append(result.Errors, msgNoAnswer)
		return result
	default:
		result.Contents = contents
	}

	for _, wanted := range opts.Columns {
		chosen := strings.TrimSpace(values[ColumnFieldName(opts.Instance, wanted)])
		if chosen == "" {
			chosen = wanted
		}
		result.Columns[wanted] = chosen
	}

	if !opts.ValidateColumns || result.Contents == nil {
		return result
	}

	if problem := checkColumns(result.Contents, opts.Columns, result.Columns); problem != "" {
		result.Errors = append(result.Errors, problem)
	}
	return result
}

// checkColumns verifies the chosen headers are distinct and present in the
// file's header row.
func checkColumns(contents []byte, wanted []string, chosen map[string]string) string {
	distinct := make(map[string]struct{}, len(chosen))
	for _, name := range chosen {
		distinct[name] = struct{}{}
	}
	if len(distinct) != len(wanted) {
		return msgDuplicateColumns
	}

	header, err := headerFromContents(contents)
	if err != nil {
		return msgUnparseable
	}
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = struct{}{}
	}

	var missing []string
	for name := range distinct {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	sort.Strings(missing)
	return fmt.Sprintf(msgMissingColumnsFmt, strings.Join(missing, ", "))
}
