// Package core provides the file submission state manager behind the CSV
// upload widget.
//
// This package holds all widget logic independent of any UI or transport
// layer. The web package drives it over HTTP, but it can equally be used by
// tests or a CLI without modification.
//
// # Architecture
//
// The package is organized around four responsibilities:
//
//   - File Store: a [Widget] keeps the submitted files for one widget instance,
//     keyed by their canonical name and ordered by first insertion.
//   - Codec: binary content travels as base64 "transport strings"
//     ([EncodeTransport], [DecodeBlobToTransportString],
//     [DecodeTransportStringToUnicodeText], [IsBinary]).
//   - Header Inspector: [ExtractHeaderRow] reads the first CSV record to drive
//     column selection.
//   - Serializer: a [Serializer] renders the File Store into the hidden form
//     field after every mutation.
//
// # Modes
//
// A widget runs in one of two modes:
//
//	core.NewWidget(core.Options{
//	    Mode:            core.ModeSingle,
//	    FileName:        "grades.csv",
//	    RequiredColumns: []string{"name", "score"},
//	})
//
//	core.NewWidget(core.Options{
//	    Mode:          core.ModeMulti,
//	    ExpectedFiles: []string{"data.csv", "notes.txt"},
//	})
//
// Single mode accepts one file matching a MIME/extension allow-list and
// stores it under the configured file name. Multi mode matches dropped files
// case-insensitively against the expected names and stores them under the
// canonical expected name.
//
// # Prior Submissions
//
// Previously submitted content is fetched through a [Fetcher]. While a fetch
// is in flight the file reports [StatusPending]; it becomes [StatusPresent] or
// [StatusFailed] when the fetch completes. A user save always wins: a fetch
// result that arrives after a newer save of the same name is discarded.
//
// # Error Handling
//
// Every failure in this package is local to one file. Errors wrap the
// sentinels in errors.go and map to user-facing messages through [MapError]:
//
//   - FILE001-FILE007: blob and content errors (size, CSV, encoding, empty, unaccepted, binary)
//   - SUB001-SUB002: prior submission errors
//   - WID001-WID004: widget, resource and column lookups
//   - UPL002-UPL005: decode capacity and request lifetime
//   - REQ001: malformed requests
package core
