package core

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Serializer renders the File Store into the hidden form field value.
type Serializer interface {
	Serialize(files []SubmittedFile) (string, error)
}

// SingleValue is the single-file encoding: the transport string of the one
// file, or an absence marker when nothing is stored.
//
// The legacy form writes the bare transport string and "" when absent. The
// quoted form writes a JSON string and null when absent.
type SingleValue struct {
	Quoted bool
}

// Serialize implements Serializer.
func (s SingleValue) Serialize(files []SubmittedFile) (string, error) {
	switch len(files) {
	case 0:
		if s.Quoted {
			return "null", nil
		}
		return "", nil
	case 1:
	default:
		return "", fmt.Errorf("single-value form holds one file, got %d", len(files))
	}

	transport := EncodeTransport(files[0].Contents)
	if !s.Quoted {
		return transport, nil
	}

	b, err := json.Marshal(transport)
	if err != nil {
		return "", fmt.Errorf("encode single value: %w", err)
	}
	return string(b), nil
}

// Structured is the multi-file encoding: a JSON array of
// {"name", "contents"} records in insertion order.
type Structured struct{}

type structuredRecord struct {
	Name     string `json:"name"`
	Contents string `json:"contents"`
}

// Serialize implements Serializer.
func (Structured) Serialize(files []SubmittedFile) (string, error) {
	records := make([]structuredRecord, 0, len(files))
	for _, f := range files {
		records = append(records, structuredRecord{
			Name:     f.Name,
			Contents: EncodeTransport(f.Contents),
		})
	}

	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode structured value: %w", err)
	}
	return string(b), nil
}

// ParseStructured reverses Structured.Serialize.
func ParseStructured(value string) ([]SubmittedFile, error) {
	var records []structuredRecord
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, fmt.Errorf("decode structured value: %w", err)
	}

	files := make([]SubmittedFile, 0, len(records))
	for _, rec := range records {
		contents, err := DecodeTransport(rec.Contents)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", rec.Name, err)
		}
		files = append(files, SubmittedFile{Name: rec.Name, Contents: contents})
	}
	return files, nil
}

// ParseSingleValue reverses SingleValue.Serialize. ok is false for the
// absence marker.
func ParseSingleValue(value string, quoted bool) (contents []byte, ok bool, err error) {
	transport := value
	if quoted {
		var s *string
		if err := json.Unmarshal([]byte(value), &s); err != nil {
			return nil, false, fmt.Errorf("decode single value: %w", err)
		}
		if s == nil {
			return nil, false, nil
		}
		transport = *s
	}
	if transport == "" {
		return nil, false, nil
	}

	contents, err = DecodeTransport(transport)
	if err != nil {
		return nil, false, err
	}
	return contents, true, nil
}

// FormField is the hidden input the surrounding form submits.
type FormField interface {
	// SetValue replaces the field value.
	SetValue(value string)
	// EnableUnloadCheck turns on the unsaved-changes navigation guard.
	EnableUnloadCheck()
}

// HiddenField is an in-memory FormField.
type HiddenField struct {
	mu          sync.RWMutex
	value       string
	unloadCheck bool
}

// SetValue implements FormField.
func (f *HiddenField) SetValue(value string) {
	f.mu.Lock()
	f.value = value
	f.mu.Unlock()
}

// EnableUnloadCheck implements FormField.
func (f *HiddenField) EnableUnloadCheck() {
	f.mu.Lock()
	f.unloadCheck = true
	f.mu.Unlock()
}

// Value returns the current field value.
func (f *HiddenField) Value() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// UnloadCheckEnabled reports whether the navigation guard is on.
func (f *HiddenField) UnloadCheckEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unloadCheck
}

// DefaultSerializer returns the encoding used by a mode when none is set.
func DefaultSerializer(mode Mode) Serializer {
	if mode == ModeMulti {
		return Structured{}
	}
	return SingleValue{}
}
