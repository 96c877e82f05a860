package core

import (
	"fmt"
	"io"
)

// Mode selects how a widget matches and stores dropped files.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModeMulti
}

// FetchStatus is the lifecycle state of one expected file.
type FetchStatus int

const (
	StatusNotStarted FetchStatus = iota
	StatusPending
	StatusFailed
	StatusPresent
)

var fetchStatusNames = [...]string{
	StatusNotStarted: "not_started",
	StatusPending:    "pending",
	StatusFailed:     "failed",
	StatusPresent:    "present",
}

func (s FetchStatus) String() string {
	if s < 0 || int(s) >= len(fetchStatusNames) {
		return fmt.Sprintf("FetchStatus(%d)", int(s))
	}
	return fetchStatusNames[s]
}

// MarshalText encodes the status by name so snapshots read well as JSON.
func (s FetchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *FetchStatus) UnmarshalText(b []byte) error {
	for i, name := range fetchStatusNames {
		if name == string(b) {
			*s = FetchStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown fetch status %q", string(b))
}

// SubmittedFile is one stored file. Contents is never nil once stored.
type SubmittedFile struct {
	Name     string
	Contents []byte
}

// ExpectedFile is a file the widget anticipates in multi mode.
// DisplayName is the canonical storage key.
type ExpectedFile struct {
	DisplayName string
}

// Blob is a dropped file as handed over by the drop source.
type Blob struct {
	Name string    // Name reported by the user's file system
	Type string    // MIME type reported by the client, may be empty
	Body io.Reader // Raw bytes
}

// FileState is the rendered view of one file.
type FileState struct {
	Name   string      `json:"name"`
	Status FetchStatus `json:"status"`
	Size   int         `json:"size"`
	Binary bool        `json:"binary"`
	Error  string      `json:"error,omitempty"`
}

// ColumnField describes one required column and its assignment field.
type ColumnField struct {
	Column    string `json:"column"`
	FieldName string `json:"fieldName"`
	Assigned  string `json:"assigned,omitempty"`
}

// Snapshot is an immutable copy of widget state handed to render sinks.
// Version increases on every content change, so sinks can drop stale
// snapshots that arrive out of order.
type Snapshot struct {
	ID          string        `json:"id"`
	Mode        Mode          `json:"mode"`
	Version     uint64        `json:"version"`
	FileName    string        `json:"fileName,omitempty"`
	Files       []FileState   `json:"files"`
	Header      []string      `json:"header"`
	HeaderError string        `json:"headerError,omitempty"`
	Columns     []ColumnField `json:"columns"`
	FieldValue  string        `json:"fieldValue"`
	UnloadCheck bool          `json:"unloadCheck"`
	Warnings    []string      `json:"warnings"`
}

// File returns the state of the named file.
func (s Snapshot) File(name string) (FileState, bool) {
	for _, f := range s.Files {
		if f.Name == name {
			return f, true
		}
	}
	return FileState{}, false
}

// RenderSink is notified after every widget mutation.
type RenderSink interface {
	Refresh(Snapshot)
}

// RenderFunc adapts a function to RenderSink.
type RenderFunc func(Snapshot)

// Refresh calls f(s).
func (f RenderFunc) Refresh(s Snapshot) { f(s) }

type nopRender struct{}

func (nopRender) Refresh(Snapshot) {}
